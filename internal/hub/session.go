package hub

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/odvcencio/hubsync/internal/models"
)

type ProbeReason string

const (
	ProbeConnected ProbeReason = "connected"
	ProbeNoAPIKey  ProbeReason = "no_api_key"
	ProbeFailed    ProbeReason = "failed"
)

// ProbeResult is the outcome of the one availability check a Session runs.
type ProbeResult struct {
	Available bool
	Reason    ProbeReason
	Err       error
}

const apiKeyLogPrefix = 6

// Session gates Hub access behind a single availability decision and caches
// the current user and organization.
//
// Lifecycle: the first Available or Probe call resolves the user, then the
// organization. The result is stored and returned by every later call; the
// Hub is never probed twice for the same Session. Concurrent first calls share
// one probe. Cached identities never change once set.
type Session struct {
	transport Transport
	apiKey    string
	hubURL    string
	logger    *slog.Logger

	probes singleflight.Group

	mu    sync.Mutex
	probe *ProbeResult
	user  *models.User
	org   *models.Organization
}

func NewSession(transport Transport, apiKey string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		transport: transport,
		apiKey:    strings.TrimSpace(apiKey),
		logger:    logger,
	}
	if u, ok := transport.(interface{ HubURL() string }); ok {
		s.hubURL = u.HubURL()
	}
	return s
}

// Available reports whether the Hub can be used. It never returns an error;
// every failure collapses to false and is logged.
func (s *Session) Available(ctx context.Context) bool {
	return s.Probe(ctx).Available
}

// Probe runs the availability check on first use and returns the cached
// result afterwards. The check ignores cancellation of ctx; it is bounded by
// the transport timeout instead.
func (s *Session) Probe(ctx context.Context) ProbeResult {
	if r, ok := s.LastProbe(); ok {
		return r
	}
	v, _, _ := s.probes.Do("probe", func() (any, error) {
		if r, ok := s.LastProbe(); ok {
			return r, nil
		}
		r := s.runProbe(context.WithoutCancel(ctx))
		s.mu.Lock()
		s.probe = &r
		s.mu.Unlock()
		return r, nil
	})
	return v.(ProbeResult)
}

// LastProbe returns the stored probe result, if a probe has completed.
func (s *Session) LastProbe() (ProbeResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.probe == nil {
		return ProbeResult{}, false
	}
	return *s.probe, true
}

func (s *Session) runProbe(ctx context.Context) ProbeResult {
	if s.apiKey == "" {
		s.logger.Info("not connecting to Hub: API key was not specified")
		return ProbeResult{Reason: ProbeNoAPIKey}
	}
	if _, err := s.ResolveUser(ctx); err != nil {
		return s.probeFailed(err)
	}
	if _, err := s.ResolveOrganization(ctx); err != nil {
		return s.probeFailed(err)
	}
	s.logger.Info("connected to Hub", "hub_url", s.hubURL, "api_key_prefix", keyPrefix(s.apiKey))
	return ProbeResult{Available: true, Reason: ProbeConnected}
}

func (s *Session) probeFailed(err error) ProbeResult {
	s.logger.Warn("not connecting to Hub: error interacting with Hub", "hub_url", s.hubURL, "error", err)
	return ProbeResult{Reason: ProbeFailed, Err: err}
}

// ResolveUser returns the current user, fetching it only when no user is
// cached yet.
func (s *Session) ResolveUser(ctx context.Context) (models.User, error) {
	s.mu.Lock()
	if s.user != nil {
		u := *s.user
		s.mu.Unlock()
		return u, nil
	}
	s.mu.Unlock()

	user, err := fetchCurrentUser(ctx, s.transport)
	if err != nil {
		return models.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		s.user = &user
	}
	return *s.user, nil
}

// ResolveOrganization returns the cached organization, or fetches and caches
// the first organization when none is cached.
func (s *Session) ResolveOrganization(ctx context.Context) (models.Organization, error) {
	s.mu.Lock()
	if s.org != nil {
		o := *s.org
		s.mu.Unlock()
		return o, nil
	}
	s.mu.Unlock()
	return s.refreshOrganization(ctx)
}

// OrganizationID is the id every organization-scoped request is issued under.
func (s *Session) OrganizationID(ctx context.Context) (uuid.UUID, error) {
	org, err := s.ResolveOrganization(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return org.ID, nil
}

// UserID returns the cached user id, or uuid.Nil before resolution.
func (s *Session) UserID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return uuid.Nil
	}
	return s.user.ID
}

// refreshOrganization always fetches the organization list. A cached id wins
// over the id in the list; the name always comes from the list.
func (s *Session) refreshOrganization(ctx context.Context) (models.Organization, error) {
	payload, err := fetchFirstOrganization(ctx, s.transport)
	if err != nil {
		return models.Organization{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	org := models.Organization{Name: payload.Name}
	switch {
	case s.org != nil:
		org.ID = s.org.ID
	case payload.ID != nil && *payload.ID != uuid.Nil:
		org.ID = *payload.ID
		cached := org
		s.org = &cached
	default:
		return models.Organization{}, &NotFoundError{Op: "GET " + routeOrganizations, Message: "first organization has no id"}
	}
	return org, nil
}

func fetchCurrentUser(ctx context.Context, t Transport) (models.User, error) {
	var payload userPayload
	if err := t.Do(ctx, Request{Method: "GET", Path: routeCurrentUser, Route: routeCurrentUser}, &payload); err != nil {
		return models.User{}, err
	}
	return models.User{ID: payload.ID, Username: payload.UserName}, nil
}

func fetchFirstOrganization(ctx context.Context, t Transport) (organizationPayload, error) {
	var page models.Page[organizationPayload]
	if err := t.Do(ctx, Request{Method: "GET", Path: routeOrganizations, Route: routeOrganizations}, &page); err != nil {
		return organizationPayload{}, err
	}
	if len(page.Content) == 0 {
		return organizationPayload{}, &NotFoundError{Op: "GET " + routeOrganizations, Message: "no organizations returned"}
	}
	return page.Content[0], nil
}

func keyPrefix(key string) string {
	if len(key) <= apiKeyLogPrefix {
		return key
	}
	return key[:apiKeyLogPrefix]
}
