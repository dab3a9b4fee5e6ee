// Package hubtest serves an in-memory Hub over HTTP. It backs the hub and
// CLI tests and the fake-hub command used for local development.
package hubtest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxBodyBytes int64 = 2 << 20

// Server is an in-memory Hub. The zero value is not usable; use NewServer.
type Server struct {
	apiKey string
	logger *slog.Logger
	mux    *http.ServeMux
	now    func() time.Time

	mu           sync.Mutex
	user         user
	org          organization
	projects     []*project
	changeLogs   map[uuid.UUID]*changeLog
	environments []*environment
	changes      map[uuid.UUID][]AppliedChange
	operations   []Operation
	calls        map[string]int
	failures     map[string]int
}

func NewServer(apiKey string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		apiKey:     apiKey,
		logger:     logger,
		mux:        http.NewServeMux(),
		now:        time.Now,
		user:       user{ID: uuid.New(), UserName: "hubsync"},
		org:        organization{ID: uuid.New(), Name: "Default Organization"},
		changeLogs: make(map[uuid.UUID]*changeLog),
		changes:    make(map[uuid.UUID][]AppliedChange),
		calls:      make(map[string]int),
		failures:   make(map[string]int),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := requestLoggingMiddleware(s.logger, bodyLimitMiddleware(s.authMiddleware(s.mux)))
	handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.handle("GET /api/v1/users/me", s.handleCurrentUser)
	s.handle("GET /api/v1/organizations", s.handleListOrganizations)

	s.handle("GET /api/v1/organizations/{orgId}/projects", s.handleListProjects)
	s.handle("POST /api/v1/organizations/{orgId}/projects", s.handleCreateProject)
	s.handle("POST /api/v1/organizations/{orgId}/projects/{projectId}/changelogs", s.handleCreateChangeLog)
	s.handle("GET /api/v1/organizations/{orgId}/projects/{projectId}/changelogs/{changeLogId}", s.handleGetChangeLog)

	s.handle("GET /api/v1/environments/{envId}", s.handleGetEnvironment)
	s.handle("GET /api/v1/organizations/{orgId}/environments", s.handleSearchEnvironments)
	s.handle("POST /api/v1/organizations/{orgId}/projects/{projectId}/environments", s.handleCreateEnvironment)
	s.handle("PUT /api/v1/organizations/{orgId}/environments/{envId}/changes", s.handlePutChanges)

	s.handle("POST /api/v1/operations", s.handleCreateOperation)
}

// handle registers h under pattern with call counting and failure injection.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[pattern]++
		status := s.failures[pattern]
		s.mu.Unlock()
		if status != 0 {
			jsonError(w, "injected failure", status)
			return
		}
		h(w, r)
	})
}

// Calls returns how many requests reached pattern, e.g. "GET /api/v1/users/me".
func (s *Server) Calls(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[pattern]
}

// Fail makes every later request to pattern answer with status. A zero
// status clears the failure.
func (s *Server) Fail(pattern string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, pattern)
		return
	}
	s.failures[pattern] = status
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" || token != s.apiKey {
			jsonError(w, "invalid API key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLoggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("fake hub request", "method", r.Method, "uri", r.URL.RequestURI(), "status", rec.status, "duration", time.Since(start))
	})
}

func bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut:
		default:
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > maxBodyBytes {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(key))
	if err != nil {
		jsonError(w, "invalid "+key, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

type page[T any] struct {
	Content []T `json:"content"`
}
