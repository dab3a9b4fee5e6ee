package search

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/hubsync/internal/models"
)

func TestEncodeEmptyEntity(t *testing.T) {
	assert.Equal(t, "", Encode(&models.Environment{}))
	assert.Equal(t, "", Encode(&models.Project{}))
	assert.Equal(t, "", Encode(&models.ChangeLog{}))
	assert.Equal(t, "", Encode(nil))
	assert.Nil(t, Clauses(&models.Organization{}))
}

func TestEncodeNilTypedPointer(t *testing.T) {
	var env *models.Environment
	assert.Equal(t, "", Encode(env))
}

func TestEncodeScalarFields(t *testing.T) {
	got := Encode(&models.Environment{
		JdbcURL:     "jdbc:h2:mem:test",
		Name:        "dev",
		Description: "local h2",
	})
	assert.Equal(t, `description:"local h2" AND jdbcUrl:"jdbc:h2:mem:test" AND name:"dev"`, got)
}

func TestEncodeEscapesQuotes(t *testing.T) {
	got := Encode(&models.Environment{Name: `the "prod" db`})
	assert.Equal(t, `name:"the \"prod\" db"`, got)
}

func TestEncodeEscapesBackslashes(t *testing.T) {
	assert.Equal(t, `name:"a\\"`, Encode(&models.Environment{Name: `a\`}))
	assert.Equal(t, `name:"c:\\dir \\\"x\\\""`, Encode(&models.Environment{Name: `c:\dir \"x\"`}))
}

func TestEncodeNestedWithIDUsesOnlyID(t *testing.T) {
	prjID := uuid.MustParse("7d1f64b2-5ad0-4c9c-9d62-2b3b1f3c9a10")
	got := Clauses(&models.Environment{
		JdbcURL: "jdbc:postgresql://db/app",
		Project: &models.Project{ID: prjID, Name: "ignored"},
	})
	require.Equal(t, []string{
		`jdbcUrl:"jdbc:postgresql://db/app"`,
		`prj.id:"7d1f64b2-5ad0-4c9c-9d62-2b3b1f3c9a10"`,
	}, got)
	for _, c := range got {
		assert.NotContains(t, c, "ignored")
		assert.NotContains(t, c, "prj.name")
	}
}

func TestEncodeNestedWithoutIDRecurses(t *testing.T) {
	created := time.Date(2020, time.May, 1, 8, 0, 0, 0, time.UTC)
	got := Encode(&models.Environment{
		JdbcURL: "jdbc:h2:mem:test",
		Project: &models.Project{Name: "warehouse", CreateDate: &created},
	})
	assert.Equal(t, `jdbcUrl:"jdbc:h2:mem:test" AND prj.createDate:"2020-05-01T08:00:00.000Z" AND prj.name:"warehouse"`, got)
}

func TestEncodeTopLevelID(t *testing.T) {
	id := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	assert.Equal(t, `id:"0f8fad5b-d9cb-469f-a165-70867728950e"`, Encode(&models.Project{ID: id}))
}

func TestEncodeDeterministicAcrossConstructionOrder(t *testing.T) {
	prj := &models.Project{Name: "warehouse"}

	a := &models.Environment{}
	a.Name = "dev"
	a.Project = prj
	a.JdbcURL = "jdbc:h2:mem:test"
	a.Description = "z"

	b := &models.Environment{Description: "z", JdbcURL: "jdbc:h2:mem:test"}
	b.Project = &models.Project{Name: "warehouse"}
	b.Name = "dev"

	assert.Equal(t, Encode(a), Encode(b))
	assert.Equal(t, Encode(a), Encode(a))

	clauses := Clauses(a)
	assert.IsIncreasing(t, clauses)
}

func TestEncodeChangeLog(t *testing.T) {
	got := Encode(&models.ChangeLog{
		FileName: "db.changelog.xml",
		Project:  &models.Project{Name: "warehouse"},
	})
	assert.Equal(t, `fileName:"db.changelog.xml" AND prj.name:"warehouse"`, got)
}
