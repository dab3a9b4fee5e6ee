package models

import (
	"time"

	"github.com/google/uuid"
)

// Operation status and type values understood by the Hub.
const (
	OperationStatusPass = "PASS"
	OperationStatusFail = "FAIL"

	OperationTypeUpdate        = "UPDATE"
	OperationTypeRollback      = "ROLLBACK"
	OperationTypeChangeLogSync = "SYNC"
	OperationTypeDropAll       = "DROP_ALL"
)

type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"userName"`
}

type Organization struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type Project struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	CreateDate *time.Time `json:"createDate,omitempty"`
}

type ChangeLog struct {
	ID                  uuid.UUID `json:"id"`
	ExternalChangelogID string    `json:"externalChangelogId"`
	FileName            string    `json:"fileName"`
	Name                string    `json:"name"`
	Project             *Project  `json:"project,omitempty"` // attached by the client, never sent
}

type Environment struct {
	ID          uuid.UUID  `json:"id"`
	JdbcURL     string     `json:"jdbcUrl"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreateDate  *time.Time `json:"createDate,omitempty"`
	UpdateDate  *time.Time `json:"updateDate,omitempty"`
	RemoveDate  *time.Time `json:"removeDate,omitempty"`
	Project     *Project   `json:"project,omitempty"`
}

type Operation struct {
	ID                  uuid.UUID    `json:"id"`
	OperationType       string       `json:"operationType"`
	OperationStatusType string       `json:"operationStatusType"`
	StatusMessage       string       `json:"statusMessage"`
	Environment         *Environment `json:"environment,omitempty"`
	ChangeLog           *ChangeLog   `json:"changelog,omitempty"`
}

type OperationEvent struct {
	EventType string     `json:"eventType"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Status    string     `json:"status"`
	Message   string     `json:"message,omitempty"`
}

// AppliedChange is one change set that has been run against an environment.
type AppliedChange struct {
	ChangesetID       string     `json:"changesetId"`
	ChangesetAuthor   string     `json:"changesetAuthor"`
	ChangesetFilename string     `json:"changesetFilename"`
	Description       string     `json:"description,omitempty"`
	Comments          string     `json:"comments,omitempty"`
	Tag               string     `json:"tag,omitempty"`
	ToolVersion       string     `json:"liquibase,omitempty"`
	OrderExecuted     int        `json:"orderExecuted"`
	ExecType          string     `json:"execType"`
	DeploymentID      string     `json:"deploymentId,omitempty"`
	DateExecuted      *time.Time `json:"dateExecuted,omitempty"`
	MD5Sum            string     `json:"md5sum,omitempty"`
}

// Page is the envelope the Hub wraps list responses in.
type Page[T any] struct {
	Content []T `json:"content"`
}

func (u *User) HasID() bool         { return u != nil && u.ID != uuid.Nil }
func (o *Organization) HasID() bool { return o != nil && o.ID != uuid.Nil }
func (p *Project) HasID() bool      { return p != nil && p.ID != uuid.Nil }
func (c *ChangeLog) HasID() bool    { return c != nil && c.ID != uuid.Nil }
func (e *Environment) HasID() bool  { return e != nil && e.ID != uuid.Nil }
func (o *Operation) HasID() bool    { return o != nil && o.ID != uuid.Nil }

func IsOperationStatus(status string) bool {
	switch status {
	case OperationStatusPass, OperationStatusFail:
		return true
	default:
		return false
	}
}
