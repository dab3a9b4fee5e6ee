// Package hub is the client for the remote Hub catalog: availability and
// identity resolution (Session) and the typed resource operations (Client).
package hub

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/odvcencio/hubsync/internal/models"
	"github.com/odvcencio/hubsync/internal/search"
)

const (
	routeCurrentUser         = "/api/v1/users/me"
	routeOrganizations       = "/api/v1/organizations"
	routeProjects            = "/api/v1/organizations/{orgId}/projects"
	routeChangeLogs          = "/api/v1/organizations/{orgId}/projects/{projectId}/changelogs"
	routeChangeLog           = "/api/v1/organizations/{orgId}/projects/{projectId}/changelogs/{changeLogId}"
	routeChanges             = "/api/v1/organizations/{orgId}/environments/{envId}/changes"
	routeEnvironment         = "/api/v1/environments/{envId}"
	routeEnvironments        = "/api/v1/organizations/{orgId}/environments"
	routeProjectEnvironments = "/api/v1/organizations/{orgId}/projects/{projectId}/environments"
	routeOperations          = "/api/v1/operations"
)

// The Hub requires a file name and display name on changelog creation; these
// are the values sent until the caller registers the real file.
const placeholderChangeLogField = "string"

// Plugin priorities reported by Priority.
const (
	PriorityNotApplicable = -1
	PriorityDefault       = 1
)

// Client performs the Hub resource operations. Callers check
// Session.Available before use; operations do not re-check it.
type Client struct {
	session   *Session
	transport Transport
	logger    *slog.Logger
	newID     func() uuid.UUID
}

func NewClient(session *Session, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		session:   session,
		transport: session.transport,
		logger:    logger,
		newID:     uuid.New,
	}
}

type Options struct {
	URL            string
	APIKey         string
	Timeout        time.Duration
	UserAgent      string
	Logger         *slog.Logger
	Registerer     prometheus.Registerer
	TracerProvider trace.TracerProvider
}

// New wires an HTTPTransport, a Session and a Client together.
func New(opts Options) (*Client, error) {
	transport, err := NewHTTPTransport(opts.URL, opts.APIKey, TransportOptions{
		Timeout:        opts.Timeout,
		UserAgent:      opts.UserAgent,
		Logger:         opts.Logger,
		Registerer:     opts.Registerer,
		TracerProvider: opts.TracerProvider,
	})
	if err != nil {
		return nil, err
	}
	return NewClient(NewSession(transport, opts.APIKey, opts.Logger), opts.Logger), nil
}

func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) Available(ctx context.Context) bool {
	return c.session.Available(ctx)
}

// Priority ranks this client against offline implementations.
func (c *Client) Priority(ctx context.Context) int {
	if c.session.Available(ctx) {
		return PriorityDefault + 100
	}
	return PriorityNotApplicable
}

func (c *Client) GetUser(ctx context.Context) (*models.User, error) {
	user, err := fetchCurrentUser(ctx, c.transport)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetOrganization fetches the first organization. Once an organization id
// has been cached for the session it replaces the id in the response.
func (c *Client) GetOrganization(ctx context.Context) (*models.Organization, error) {
	org, err := c.session.refreshOrganization(ctx)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// ListProjects returns the organization's projects. A project whose create
// date cannot be parsed is returned with a nil CreateDate and a warning is
// logged.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	orgID, err := c.session.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}
	var page models.Page[projectPayload]
	req := Request{Method: http.MethodGet, Path: expand(routeProjects, orgID.String()), Route: routeProjects}
	if err := c.transport.Do(ctx, req, &page); err != nil {
		return nil, err
	}

	projects := make([]models.Project, 0, len(page.Content))
	for _, item := range page.Content {
		project, err := item.toModel()
		if err != nil {
			c.logger.Warn("project has an invalid create date", "project", item.Name, "create_date", deref(item.CreateDate), "error", err)
			project.CreateDate = nil
		}
		projects = append(projects, project)
	}
	return projects, nil
}

// CreateProject creates a project in the organization. The created project is
// returned even when its create date cannot be parsed.
func (c *Client) CreateProject(ctx context.Context, project models.Project) (*models.Project, error) {
	if strings.TrimSpace(project.Name) == "" {
		return nil, &ValidationError{Field: "name", Message: "project name is required to create a project"}
	}
	orgID, err := c.session.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}
	var payload projectPayload
	req := Request{
		Method: http.MethodPost,
		Path:   expand(routeProjects, orgID.String()),
		Route:  routeProjects,
		Body:   projectRequest{Name: project.Name},
	}
	if err := c.transport.Do(ctx, req, &payload); err != nil {
		return nil, err
	}
	created, err := payload.toModel()
	if err != nil {
		c.logger.Warn("project has an invalid create date", "project", payload.Name, "create_date", deref(payload.CreateDate), "error", err)
		created.CreateDate = nil
	}
	return &created, nil
}

// CreateChangeLog registers a new changelog under project with a freshly
// generated external correlation id.
func (c *Client) CreateChangeLog(ctx context.Context, project *models.Project) (*models.ChangeLog, error) {
	if !project.HasID() {
		return nil, &ValidationError{Field: "project.id", Message: "projectId is required to create a changelog"}
	}
	orgID, err := c.session.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}
	var payload changeLogPayload
	req := Request{
		Method: http.MethodPost,
		Path:   expand(routeChangeLogs, orgID.String(), project.ID.String()),
		Route:  routeChangeLogs,
		Body: changeLogRequest{
			ExternalChangelogID: c.newID().String(),
			FileName:            placeholderChangeLogField,
			Name:                placeholderChangeLogField,
		},
	}
	if err := c.transport.Do(ctx, req, &payload); err != nil {
		return nil, err
	}
	changeLog := payload.toModel()
	changeLog.Project = project
	return &changeLog, nil
}

// RecordAppliedChanges replaces the applied-change history of env with changes.
func (c *Client) RecordAppliedChanges(ctx context.Context, env *models.Environment, changes []models.AppliedChange) error {
	if !env.HasID() {
		return &ValidationError{Field: "environment.id", Message: "environmentId is required to record applied changes"}
	}
	orgID, err := c.session.OrganizationID(ctx)
	if err != nil {
		return err
	}
	body := make([]appliedChangePayload, 0, len(changes))
	for _, change := range changes {
		body = append(body, newAppliedChangePayload(change))
	}
	req := Request{
		Method: http.MethodPut,
		Path:   expand(routeChanges, orgID.String(), env.ID.String()),
		Route:  routeChanges,
		Body:   body,
	}
	return c.transport.Do(ctx, req, nil)
}

// GetEnvironment looks an environment up by id.
func (c *Client) GetEnvironment(ctx context.Context, id uuid.UUID) (*models.Environment, error) {
	var payload environmentPayload
	req := Request{Method: http.MethodGet, Path: expand(routeEnvironment, id.String()), Route: routeEnvironment}
	if err := c.transport.Do(ctx, req, &payload); err != nil {
		return nil, err
	}
	env, err := payload.toModel()
	if err != nil {
		return nil, err
	}
	return &env, nil
}

// ResolveEnvironment finds the environment described by example.
//
// With a known id the environment is fetched directly and the outcome is
// final; createIfMissing is ignored. Otherwise the example is searched: no
// match creates it (createIfMissing) or fails with NotFoundError, one match
// is returned, several fail with AmbiguityError.
func (c *Client) ResolveEnvironment(ctx context.Context, example *models.Environment, createIfMissing bool) (*models.Environment, error) {
	if example == nil {
		return nil, &ValidationError{Field: "environment", Message: "an example environment is required"}
	}
	if example.HasID() {
		return c.GetEnvironment(ctx, example.ID)
	}

	matches, err := c.ListEnvironments(ctx, example)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		if createIfMissing {
			return c.CreateEnvironment(ctx, example)
		}
		return nil, &NotFoundError{Message: "Environment not found"}
	case 1:
		return &matches[0], nil
	default:
		return nil, &AmbiguityError{JdbcURL: example.JdbcURL, Matches: len(matches)}
	}
}

// ListEnvironments returns the environments matching every non-null field of
// example.
func (c *Client) ListEnvironments(ctx context.Context, example *models.Environment) ([]models.Environment, error) {
	orgID, err := c.session.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}
	var page models.Page[environmentPayload]
	req := Request{
		Method: http.MethodGet,
		Path:   expand(routeEnvironments, orgID.String()),
		Route:  routeEnvironments,
		Query:  url.Values{"search": {search.Encode(example)}},
	}
	if err := c.transport.Do(ctx, req, &page); err != nil {
		// Compatibility shim: the Hub answers an empty search with 404
		// instead of an empty page.
		if IsNotFound(err) {
			return []models.Environment{}, nil
		}
		return nil, err
	}

	envs := make([]models.Environment, 0, len(page.Content))
	for _, item := range page.Content {
		env, err := item.toModel()
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	return envs, nil
}

// CreateEnvironment creates env under its project. The project reference is
// not sent; an empty name defaults to the JDBC URL.
func (c *Client) CreateEnvironment(ctx context.Context, env *models.Environment) (*models.Environment, error) {
	if env == nil || !env.Project.HasID() {
		return nil, &ValidationError{Field: "project.id", Message: "projectId is required to create an environment"}
	}
	orgID, err := c.session.OrganizationID(ctx)
	if err != nil {
		return nil, err
	}
	body := environmentRequest{
		JdbcURL:     env.JdbcURL,
		Name:        env.Name,
		Description: env.Description,
	}
	if body.Name == "" {
		body.Name = body.JdbcURL
	}

	var payload environmentPayload
	req := Request{
		Method: http.MethodPost,
		Path:   expand(routeProjectEnvironments, orgID.String(), env.Project.ID.String()),
		Route:  routeProjectEnvironments,
		Body:   body,
	}
	if err := c.transport.Do(ctx, req, &payload); err != nil {
		return nil, err
	}
	created, err := payload.toModel()
	if err != nil {
		return nil, err
	}
	created.Project = env.Project
	return &created, nil
}

// ScanOutcome is the result of looking a changelog up under one project.
type ScanOutcome string

const (
	ScanFound   ScanOutcome = "found"
	ScanSkipped ScanOutcome = "skipped"
	ScanFailed  ScanOutcome = "failed"
)

type ScanAttempt struct {
	Project models.Project
	Outcome ScanOutcome
	Err     error
}

// ChangeLogScan is the full record of a changelog lookup across projects.
type ChangeLogScan struct {
	ChangeLog *models.ChangeLog
	Attempts  []ScanAttempt
}

// Degraded reports whether any project lookup failed for a reason other
// than not found.
func (s ChangeLogScan) Degraded() bool {
	for _, a := range s.Attempts {
		if a.Outcome == ScanFailed {
			return true
		}
	}
	return false
}

// GetChangeLog looks id up under each project in turn and returns the first
// match with its project attached. Per-project errors are skipped; nil, nil
// means no project produced a match.
func (c *Client) GetChangeLog(ctx context.Context, id uuid.UUID) (*models.ChangeLog, error) {
	scan, err := c.ScanChangeLog(ctx, id)
	if err != nil {
		return nil, err
	}
	return scan.ChangeLog, nil
}

// ScanChangeLog is GetChangeLog with the per-project outcomes kept. Only a
// failure to list projects is returned as an error.
func (c *Client) ScanChangeLog(ctx context.Context, id uuid.UUID) (ChangeLogScan, error) {
	var scan ChangeLogScan
	orgID, err := c.session.OrganizationID(ctx)
	if err != nil {
		return scan, err
	}
	projects, err := c.ListProjects(ctx)
	if err != nil {
		return scan, err
	}

	for _, project := range projects {
		var payload changeLogPayload
		req := Request{
			Method: http.MethodGet,
			Path:   expand(routeChangeLog, orgID.String(), project.ID.String(), id.String()),
			Route:  routeChangeLog,
		}
		err := c.transport.Do(ctx, req, &payload)
		switch {
		case err == nil:
			scan.Attempts = append(scan.Attempts, ScanAttempt{Project: project, Outcome: ScanFound})
			changeLog := payload.toModel()
			owner := project
			changeLog.Project = &owner
			scan.ChangeLog = &changeLog
			return scan, nil
		case IsNotFound(err):
			scan.Attempts = append(scan.Attempts, ScanAttempt{Project: project, Outcome: ScanSkipped, Err: err})
		default:
			c.logger.Debug("changelog lookup failed", "project", project.ID, "changelog", id, "error", err)
			scan.Attempts = append(scan.Attempts, ScanAttempt{Project: project, Outcome: ScanFailed, Err: err})
		}
	}
	return scan, nil
}

// CreateOperation records an operation of operationType for changeLog
// against env. Operations are always created with the PASS status.
func (c *Client) CreateOperation(ctx context.Context, operationType string, changeLog *models.ChangeLog, env *models.Environment, params map[string]string) (*models.Operation, error) {
	if !env.HasID() {
		return nil, &ValidationError{Field: "environment.id", Message: "environmentId is required to create an operation"}
	}
	if !changeLog.HasID() {
		return nil, &ValidationError{Field: "changelog.id", Message: "changelogId is required to create an operation"}
	}
	body := operationRequest{
		EnvID:               env.ID,
		EnvJdbcURL:          env.JdbcURL,
		EnvName:             env.Name,
		EnvDescription:      env.Description,
		ChangelogID:         changeLog.ID,
		OperationType:       operationType,
		OperationStatusType: models.OperationStatusPass,
		StatusMessage:       operationType,
		OperationParameters: params,
	}

	var payload operationPayload
	req := Request{Method: http.MethodPost, Path: routeOperations, Route: routeOperations, Body: body}
	if err := c.transport.Do(ctx, req, &payload); err != nil {
		return nil, err
	}
	op := &models.Operation{
		ID:                  payload.ID,
		OperationType:       payload.OperationType,
		OperationStatusType: payload.OperationStatusType,
		StatusMessage:       payload.StatusMessage,
		Environment:         env,
		ChangeLog:           changeLog,
	}
	if op.OperationType == "" {
		op.OperationType = operationType
	}
	if op.OperationStatusType == "" {
		op.OperationStatusType = models.OperationStatusPass
	}
	return op, nil
}

// SendOperationEvent is accepted and dropped; the Hub has no event endpoint yet.
func (c *Client) SendOperationEvent(ctx context.Context, event models.OperationEvent) error {
	return nil
}

// expand fills the {placeholders} of route in order.
func expand(route string, values ...string) string {
	var b strings.Builder
	rest := route
	for _, v := range values {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			break
		}
		b.WriteString(rest[:open])
		b.WriteString(url.PathEscape(v))
		rest = rest[open+end+1:]
	}
	b.WriteString(rest)
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
