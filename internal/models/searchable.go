package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/odvcencio/hubsync/internal/isodate"
)

// SearchField describes one field of an entity for search-query building.
// Exactly one of Value or Nested is set for a non-null field; both nil means
// the field is null and contributes nothing.
type SearchField struct {
	Name   string
	Value  *string
	Nested Searchable
}

// Searchable is implemented by every entity that can be used as a search
// example. Field names are the Hub's wire names.
type Searchable interface {
	SearchID() (uuid.UUID, bool)
	SearchFields() []SearchField
}

func (u *User) SearchID() (uuid.UUID, bool) {
	if !u.HasID() {
		return uuid.Nil, false
	}
	return u.ID, true
}

func (u *User) SearchFields() []SearchField {
	if u == nil {
		return nil
	}
	return []SearchField{
		idField(u.ID),
		stringField("userName", u.Username),
	}
}

func (o *Organization) SearchID() (uuid.UUID, bool) {
	if !o.HasID() {
		return uuid.Nil, false
	}
	return o.ID, true
}

func (o *Organization) SearchFields() []SearchField {
	if o == nil {
		return nil
	}
	return []SearchField{
		idField(o.ID),
		stringField("name", o.Name),
	}
}

func (p *Project) SearchID() (uuid.UUID, bool) {
	if !p.HasID() {
		return uuid.Nil, false
	}
	return p.ID, true
}

func (p *Project) SearchFields() []SearchField {
	if p == nil {
		return nil
	}
	return []SearchField{
		idField(p.ID),
		stringField("name", p.Name),
		timeField("createDate", p.CreateDate),
	}
}

func (c *ChangeLog) SearchID() (uuid.UUID, bool) {
	if !c.HasID() {
		return uuid.Nil, false
	}
	return c.ID, true
}

func (c *ChangeLog) SearchFields() []SearchField {
	if c == nil {
		return nil
	}
	return []SearchField{
		idField(c.ID),
		stringField("externalChangelogId", c.ExternalChangelogID),
		stringField("fileName", c.FileName),
		stringField("name", c.Name),
		projectField("prj", c.Project),
	}
}

func (e *Environment) SearchID() (uuid.UUID, bool) {
	if !e.HasID() {
		return uuid.Nil, false
	}
	return e.ID, true
}

// SearchFields lists the owning project as "prj", the name the Hub indexes
// it under.
func (e *Environment) SearchFields() []SearchField {
	if e == nil {
		return nil
	}
	return []SearchField{
		idField(e.ID),
		stringField("jdbcUrl", e.JdbcURL),
		stringField("name", e.Name),
		stringField("description", e.Description),
		timeField("createDate", e.CreateDate),
		timeField("updateDate", e.UpdateDate),
		timeField("removeDate", e.RemoveDate),
		projectField("prj", e.Project),
	}
}

func idField(id uuid.UUID) SearchField {
	if id == uuid.Nil {
		return SearchField{Name: "id"}
	}
	s := id.String()
	return SearchField{Name: "id", Value: &s}
}

func stringField(name, value string) SearchField {
	if value == "" {
		return SearchField{Name: name}
	}
	return SearchField{Name: name, Value: &value}
}

func timeField(name string, t *time.Time) SearchField {
	return SearchField{Name: name, Value: isodate.FormatOptional(t)}
}

// projectField keeps a nil *Project out of the Searchable interface.
func projectField(name string, p *Project) SearchField {
	if p == nil {
		return SearchField{Name: name}
	}
	return SearchField{Name: name, Nested: p}
}
