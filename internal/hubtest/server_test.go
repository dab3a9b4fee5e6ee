package hubtest

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/hubsync/internal/hub"
	"github.com/odvcencio/hubsync/internal/models"
)

const testKey = "hubtest-api-key"

// start serves a fresh Server on a loopback listener for the test's lifetime.
func start(t *testing.T, apiKey string) (*Server, string) {
	t.Helper()
	s := NewServer(apiKey, slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return s, srv.URL
}

func newClient(t *testing.T, url, key string) *hub.Client {
	t.Helper()
	c, err := hub.New(hub.Options{URL: url, APIKey: key, Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	return c
}

func TestServerRejectsWrongKey(t *testing.T) {
	srv, url := start(t, testKey)
	c := newClient(t, url, "wrong")

	assert.False(t, c.Available(context.Background()))
	r, _ := c.Session().LastProbe()
	assert.True(t, hub.IsConnectivity(r.Err))
	assert.Zero(t, srv.Calls("GET /api/v1/users/me"))
}

func TestEndToEndEnvironmentLifecycle(t *testing.T) {
	srv, url := start(t, testKey)
	c := newClient(t, url, testKey)
	ctx := context.Background()

	require.True(t, c.Available(ctx))
	assert.Equal(t, srv.UserID(), c.Session().UserID())

	project, err := c.CreateProject(ctx, models.Project{Name: "inventory"})
	require.NoError(t, err)
	require.NotNil(t, project.CreateDate)

	example := &models.Environment{JdbcURL: "jdbc:h2:mem:test", Project: project}
	created, err := c.ResolveEnvironment(ctx, example, true)
	require.NoError(t, err)
	assert.Equal(t, "jdbc:h2:mem:test", created.Name)

	again, err := c.ResolveEnvironment(ctx, example, true)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, 1, srv.Calls("POST /api/v1/organizations/{orgId}/projects/{projectId}/environments"))

	byID, err := c.ResolveEnvironment(ctx, &models.Environment{ID: created.ID}, false)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byID.ID)

	srv.AddEnvironment(project.ID, "jdbc:h2:mem:test", "duplicate")
	_, err = c.ResolveEnvironment(ctx, example, true)
	assert.True(t, hub.IsAmbiguous(err))

	assert.Equal(t, 1, srv.Calls("GET /api/v1/users/me"))
	assert.Equal(t, 1, srv.Calls("GET /api/v1/organizations"))
}

func TestEndToEndChangeLogAndOperation(t *testing.T) {
	srv, url := start(t, testKey)
	c := newClient(t, url, testKey)
	ctx := context.Background()
	require.True(t, c.Available(ctx))

	srv.AddProject("empty", "")
	projectID := srv.AddProject("main", "2020-10-05T10:42:33.000Z")
	envID := srv.AddEnvironment(projectID, "jdbc:postgresql://db/app", "app")

	log, err := c.CreateChangeLog(ctx, &models.Project{ID: projectID})
	require.NoError(t, err)
	_, err = uuid.Parse(log.ExternalChangelogID)
	assert.NoError(t, err)

	found, err := c.GetChangeLog(ctx, log.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, projectID, found.Project.ID)

	missing, err := c.GetChangeLog(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	env := &models.Environment{ID: envID, JdbcURL: "jdbc:postgresql://db/app"}
	err = c.RecordAppliedChanges(ctx, env, []models.AppliedChange{{ChangesetID: "1", ChangesetAuthor: "dev", ChangesetFilename: "db.xml", OrderExecuted: 1, ExecType: "EXECUTED"}})
	require.NoError(t, err)
	require.Len(t, srv.Changes(envID), 1)

	op, err := c.CreateOperation(ctx, models.OperationTypeUpdate, log, env, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OperationStatusPass, op.OperationStatusType)
	ops := srv.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, models.OperationTypeUpdate, ops[0].StatusMessage)
	assert.Nil(t, ops[0].OperationParameters)
}

func TestEndToEndInvalidProjectDate(t *testing.T) {
	srv, url := start(t, testKey)
	srv.AddProject("broken", "not-a-date")
	c := newClient(t, url, testKey)

	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Nil(t, projects[0].CreateDate)
}

func TestFailInjection(t *testing.T) {
	srv, url := start(t, testKey)
	c := newClient(t, url, testKey)
	ctx := context.Background()
	require.True(t, c.Available(ctx))

	srv.Fail("GET /api/v1/organizations/{orgId}/environments", http.StatusServiceUnavailable)
	_, err := c.ListEnvironments(ctx, &models.Environment{JdbcURL: "jdbc:x"})
	assert.True(t, hub.IsConnectivity(err))

	srv.Fail("GET /api/v1/organizations/{orgId}/environments", 0)
	envs, err := c.ListEnvironments(ctx, &models.Environment{JdbcURL: "jdbc:x"})
	require.NoError(t, err)
	assert.Empty(t, envs)
}

func TestParseSearch(t *testing.T) {
	f, err := parseSearch(`jdbcUrl:"jdbc:h2:mem:a AND b" AND name:"say \"hi\""`)
	require.NoError(t, err)
	assert.Equal(t, searchFilter{"jdbcUrl": "jdbc:h2:mem:a AND b", "name": `say "hi"`}, f)

	f, err = parseSearch(`name:"a\\" AND description:"x"`)
	require.NoError(t, err)
	assert.Equal(t, searchFilter{"name": `a\`, "description": "x"}, f)

	_, err = parseSearch(`jdbcUrl=jdbc`)
	assert.Error(t, err)

	empty, err := parseSearch("")
	require.NoError(t, err)
	assert.True(t, empty.matches(&environment{JdbcURL: "anything"}))
}

func TestBodyLimit(t *testing.T) {
	srv := NewServer(testKey, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/operations", http.NoBody)
	req.ContentLength = maxBodyBytes + 1
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
