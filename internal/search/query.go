// Package search builds the filter expressions accepted by the Hub listing
// endpoints, e.g. `jdbcUrl:"jdbc:h2:mem:test" AND prj.id:"<uuid>"`.
package search

import (
	"sort"
	"strings"

	"github.com/odvcencio/hubsync/internal/models"
)

const clauseSeparator = " AND "

// Encode returns the query for every non-null field of example. A nil or
// all-null example yields "".
func Encode(example models.Searchable) string {
	return strings.Join(Clauses(example), clauseSeparator)
}

// Clauses returns the de-duplicated clauses of example in lexical order.
func Clauses(example models.Searchable) []string {
	if example == nil {
		return nil
	}
	set := make(map[string]struct{})
	collect(example, "", set)
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for clause := range set {
		out = append(out, clause)
	}
	sort.Strings(out)
	return out
}

// collect walks the declared fields of s. A nested entity with a known id is
// referenced by id only; its other fields are never visited.
func collect(s models.Searchable, prefix string, set map[string]struct{}) {
	for _, f := range s.SearchFields() {
		path := strings.TrimPrefix(prefix+f.Name, ".")
		switch {
		case f.Nested != nil:
			if id, ok := f.Nested.SearchID(); ok {
				set[clause(path+".id", id.String())] = struct{}{}
				continue
			}
			collect(f.Nested, path+".", set)
		case f.Value != nil:
			set[clause(path, *f.Value)] = struct{}{}
		}
	}
}

var valueEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// clause quotes value, escaping backslashes before quotes so a trailing
// backslash cannot swallow the closing quote.
func clause(path, value string) string {
	return path + `:"` + valueEscaper.Replace(value) + `"`
}
