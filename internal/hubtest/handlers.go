package hubtest

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/odvcencio/hubsync/internal/isodate"
)

type user struct {
	ID       uuid.UUID `json:"id"`
	UserName string    `json:"userName"`
}

type organization struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type project struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	CreateDate string    `json:"createDate,omitempty"`
}

type changeLog struct {
	ID                  uuid.UUID `json:"id"`
	ExternalChangelogID string    `json:"externalChangelogId"`
	FileName            string    `json:"fileName"`
	Name                string    `json:"name"`
	projectID           uuid.UUID
}

type environment struct {
	ID          uuid.UUID `json:"id"`
	JdbcURL     string    `json:"jdbcUrl"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreateDate  string    `json:"createDate,omitempty"`
	UpdateDate  string    `json:"updateDate,omitempty"`
	RemoveDate  string    `json:"removeDate,omitempty"`
	projectID   uuid.UUID
}

// AppliedChange is one entry of a recorded change history as received.
type AppliedChange struct {
	ChangesetID       string `json:"changesetId"`
	ChangesetAuthor   string `json:"changesetAuthor"`
	ChangesetFilename string `json:"changesetFilename"`
	OrderExecuted     int    `json:"orderExecuted"`
	ExecType          string `json:"execType"`
	DateExecuted      string `json:"dateExecuted,omitempty"`
}

// Operation is an operation as received by the fake.
type Operation struct {
	ID                  uuid.UUID         `json:"id"`
	EnvID               uuid.UUID         `json:"envId"`
	EnvJdbcURL          string            `json:"envJdbcUrl"`
	ChangelogID         uuid.UUID         `json:"changelogId"`
	OperationType       string            `json:"operationType"`
	OperationStatusType string            `json:"operationStatusType"`
	StatusMessage       string            `json:"statusMessage"`
	OperationParameters map[string]string `json:"operationParameters,omitempty"`
}

func (s *Server) timestamp() string {
	return isodate.Format(s.now())
}

// UserID and OrganizationID identify the fixed identity the fake serves.
func (s *Server) UserID() uuid.UUID         { return s.user.ID }
func (s *Server) OrganizationID() uuid.UUID { return s.org.ID }

// AddProject seeds a project. createDate is stored verbatim so tests can
// serve malformed timestamps.
func (s *Server) AddProject(name, createDate string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &project{ID: uuid.New(), Name: name, CreateDate: createDate}
	s.projects = append(s.projects, p)
	return p.ID
}

func (s *Server) AddChangeLog(projectID uuid.UUID, name string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &changeLog{ID: uuid.New(), ExternalChangelogID: uuid.NewString(), FileName: name, Name: name, projectID: projectID}
	s.changeLogs[c.ID] = c
	return c.ID
}

func (s *Server) AddEnvironment(projectID uuid.UUID, jdbcURL, name string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &environment{ID: uuid.New(), JdbcURL: jdbcURL, Name: name, CreateDate: s.timestamp(), projectID: projectID}
	s.environments = append(s.environments, e)
	return e.ID
}

// Changes returns the last change history recorded for envID.
func (s *Server) Changes(envID uuid.UUID) []AppliedChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AppliedChange(nil), s.changes[envID]...)
}

func (s *Server) Operations() []Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Operation(nil), s.operations...)
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.user)
}

func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, page[organization]{Content: []organization{s.org}})
}

// requireOrg rejects requests for any organization but the served one.
func (s *Server) requireOrg(w http.ResponseWriter, r *http.Request) bool {
	id, ok := pathID(w, r, "orgId")
	if !ok {
		return false
	}
	if id != s.org.ID {
		jsonError(w, "organization not found", http.StatusNotFound)
		return false
	}
	return true
}

// findProject must be called with s.mu held.
func (s *Server) findProject(id uuid.UUID) *project {
	for _, p := range s.projects {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	if !s.requireOrg(w, r) {
		return
	}
	s.mu.Lock()
	out := make([]project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, *p)
	}
	s.mu.Unlock()
	jsonResponse(w, http.StatusOK, page[project]{Content: out})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	if !s.requireOrg(w, r) {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	p := &project{ID: uuid.New(), Name: req.Name, CreateDate: s.timestamp()}
	s.projects = append(s.projects, p)
	out := *p
	s.mu.Unlock()
	jsonResponse(w, http.StatusCreated, out)
}

func (s *Server) handleCreateChangeLog(w http.ResponseWriter, r *http.Request) {
	if !s.requireOrg(w, r) {
		return
	}
	projectID, ok := pathID(w, r, "projectId")
	if !ok {
		return
	}
	var req changeLog
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ExternalChangelogID == "" {
		jsonError(w, "externalChangelogId is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findProject(projectID) == nil {
		jsonError(w, "project not found", http.StatusNotFound)
		return
	}
	req.ID = uuid.New()
	req.projectID = projectID
	s.changeLogs[req.ID] = &req
	jsonResponse(w, http.StatusCreated, req)
}

func (s *Server) handleGetChangeLog(w http.ResponseWriter, r *http.Request) {
	if !s.requireOrg(w, r) {
		return
	}
	projectID, ok := pathID(w, r, "projectId")
	if !ok {
		return
	}
	id, ok := pathID(w, r, "changeLogId")
	if !ok {
		return
	}
	s.mu.Lock()
	c, found := s.changeLogs[id]
	s.mu.Unlock()
	if !found || c.projectID != projectID {
		jsonError(w, "changelog not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

func (s *Server) handleGetEnvironment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "envId")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.environments {
		if e.ID == id {
			jsonResponse(w, http.StatusOK, e)
			return
		}
	}
	jsonError(w, "Environment not found", http.StatusNotFound)
}

// handleSearchEnvironments answers 404 rather than an empty page when
// nothing matches, as the Hub does.
func (s *Server) handleSearchEnvironments(w http.ResponseWriter, r *http.Request) {
	if !s.requireOrg(w, r) {
		return
	}
	filter, err := parseSearch(r.URL.Query().Get("search"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	var out []environment
	for _, e := range s.environments {
		if filter.matches(e) {
			out = append(out, *e)
		}
	}
	s.mu.Unlock()
	if len(out) == 0 {
		jsonError(w, "Environment not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, page[environment]{Content: out})
}

func (s *Server) handleCreateEnvironment(w http.ResponseWriter, r *http.Request) {
	if !s.requireOrg(w, r) {
		return
	}
	projectID, ok := pathID(w, r, "projectId")
	if !ok {
		return
	}
	var req environment
	if !decodeBody(w, r, &req) {
		return
	}
	if req.JdbcURL == "" {
		jsonError(w, "jdbcUrl is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findProject(projectID) == nil {
		jsonError(w, "project not found", http.StatusNotFound)
		return
	}
	e := &environment{
		ID:          uuid.New(),
		JdbcURL:     req.JdbcURL,
		Name:        req.Name,
		Description: req.Description,
		CreateDate:  s.timestamp(),
		projectID:   projectID,
	}
	s.environments = append(s.environments, e)
	jsonResponse(w, http.StatusCreated, e)
}

func (s *Server) handlePutChanges(w http.ResponseWriter, r *http.Request) {
	if !s.requireOrg(w, r) {
		return
	}
	envID, ok := pathID(w, r, "envId")
	if !ok {
		return
	}
	var req []AppliedChange
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	s.changes[envID] = req
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateOperation(w http.ResponseWriter, r *http.Request) {
	var req Operation
	if !decodeBody(w, r, &req) {
		return
	}
	if req.EnvID == uuid.Nil || req.ChangelogID == uuid.Nil {
		jsonError(w, "envId and changelogId are required", http.StatusBadRequest)
		return
	}
	req.ID = uuid.New()
	s.mu.Lock()
	s.operations = append(s.operations, req)
	s.mu.Unlock()
	jsonResponse(w, http.StatusCreated, req)
}
