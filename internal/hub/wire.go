package hub

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odvcencio/hubsync/internal/isodate"
	"github.com/odvcencio/hubsync/internal/models"
)

// Wire shapes for the Hub REST surface. Timestamps stay strings here so the
// caller decides whether a malformed value is fatal.

type userPayload struct {
	ID       uuid.UUID `json:"id"`
	UserName string    `json:"userName"`
}

type organizationPayload struct {
	ID   *uuid.UUID `json:"id"`
	Name string     `json:"name"`
}

type projectPayload struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	CreateDate *string   `json:"createDate"`
}

type projectRequest struct {
	Name string `json:"name"`
}

type changeLogPayload struct {
	ID                  uuid.UUID `json:"id"`
	ExternalChangelogID string    `json:"externalChangelogId"`
	FileName            string    `json:"fileName"`
	Name                string    `json:"name"`
}

type changeLogRequest struct {
	ExternalChangelogID string `json:"externalChangelogId"`
	FileName            string `json:"fileName"`
	Name                string `json:"name"`
}

type environmentPayload struct {
	ID          uuid.UUID `json:"id"`
	JdbcURL     string    `json:"jdbcUrl"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreateDate  *string   `json:"createDate"`
	UpdateDate  *string   `json:"updateDate"`
	RemoveDate  *string   `json:"removeDate"`
}

// environmentRequest never carries the project; the Hub takes it from the path.
type environmentRequest struct {
	JdbcURL     string `json:"jdbcUrl"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type appliedChangePayload struct {
	ChangesetID       string  `json:"changesetId"`
	ChangesetAuthor   string  `json:"changesetAuthor"`
	ChangesetFilename string  `json:"changesetFilename"`
	Description       string  `json:"description,omitempty"`
	Comments          string  `json:"comments,omitempty"`
	Tag               string  `json:"tag,omitempty"`
	ToolVersion       string  `json:"liquibase,omitempty"`
	OrderExecuted     int     `json:"orderExecuted"`
	ExecType          string  `json:"execType"`
	DeploymentID      string  `json:"deploymentId,omitempty"`
	DateExecuted      *string `json:"dateExecuted,omitempty"`
	MD5Sum            string  `json:"md5sum,omitempty"`
}

type operationRequest struct {
	EnvID               uuid.UUID         `json:"envId"`
	EnvJdbcURL          string            `json:"envJdbcUrl"`
	EnvName             string            `json:"envName"`
	EnvDescription      string            `json:"envDescription"`
	ChangelogID         uuid.UUID         `json:"changelogId"`
	OperationType       string            `json:"operationType"`
	OperationStatusType string            `json:"operationStatusType"`
	StatusMessage       string            `json:"statusMessage"`
	OperationParameters map[string]string `json:"operationParameters,omitempty"`
}

type operationPayload struct {
	ID                  uuid.UUID `json:"id"`
	OperationType       string    `json:"operationType"`
	OperationStatusType string    `json:"operationStatusType"`
	StatusMessage       string    `json:"statusMessage"`
}

func (p projectPayload) toModel() (models.Project, error) {
	project := models.Project{ID: p.ID, Name: p.Name}
	date, err := isodate.ParseOptional(p.CreateDate)
	if err != nil {
		return project, fmt.Errorf("project %q create date: %w", p.Name, err)
	}
	project.CreateDate = date
	return project, nil
}

func (p changeLogPayload) toModel() models.ChangeLog {
	return models.ChangeLog{
		ID:                  p.ID,
		ExternalChangelogID: p.ExternalChangelogID,
		FileName:            p.FileName,
		Name:                p.Name,
	}
}

func (p environmentPayload) toModel() (models.Environment, error) {
	env := models.Environment{
		ID:          p.ID,
		JdbcURL:     p.JdbcURL,
		Name:        p.Name,
		Description: p.Description,
	}
	dates := []struct {
		name string
		raw  *string
		dst  **time.Time
	}{
		{"create", p.CreateDate, &env.CreateDate},
		{"update", p.UpdateDate, &env.UpdateDate},
		{"remove", p.RemoveDate, &env.RemoveDate},
	}
	for _, d := range dates {
		t, err := isodate.ParseOptional(d.raw)
		if err != nil {
			return env, fmt.Errorf("environment %s %s date: %w", p.ID, d.name, err)
		}
		*d.dst = t
	}
	return env, nil
}

func newAppliedChangePayload(c models.AppliedChange) appliedChangePayload {
	return appliedChangePayload{
		ChangesetID:       c.ChangesetID,
		ChangesetAuthor:   c.ChangesetAuthor,
		ChangesetFilename: c.ChangesetFilename,
		Description:       c.Description,
		Comments:          c.Comments,
		Tag:               c.Tag,
		ToolVersion:       c.ToolVersion,
		OrderExecuted:     c.OrderExecuted,
		ExecType:          c.ExecType,
		DeploymentID:      c.DeploymentID,
		DateExecuted:      isodate.FormatOptional(c.DateExecuted),
		MD5Sum:            c.MD5Sum,
	}
}
