package hubtest

import (
	"fmt"
	"strings"
)

var valueUnescaper = strings.NewReplacer(`\\`, `\`, `\"`, `"`)

// searchFilter is a parsed `key:"value" AND ...` expression.
type searchFilter map[string]string

func parseSearch(raw string) (searchFilter, error) {
	filter := make(searchFilter)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return filter, nil
	}
	for _, part := range splitClauses(raw) {
		key, value, ok := strings.Cut(part, ":")
		if !ok || len(value) < 2 || value[0] != '"' || value[len(value)-1] != '"' {
			return nil, fmt.Errorf("malformed search clause %q", part)
		}
		filter[key] = valueUnescaper.Replace(value[1:len(value)-1])
	}
	return filter, nil
}

// splitClauses splits on " AND " outside quoted values.
func splitClauses(raw string) []string {
	const sep = " AND "
	var parts []string
	inQuote, start := false, 0
	for i := 0; i < len(raw); i++ {
		switch {
		case raw[i] == '\\' && inQuote:
			i++
		case raw[i] == '"':
			inQuote = !inQuote
		case !inQuote && strings.HasPrefix(raw[i:], sep):
			parts = append(parts, raw[start:i])
			i += len(sep) - 1
			start = i + 1
		}
	}
	return append(parts, raw[start:])
}

func (f searchFilter) matches(e *environment) bool {
	for key, want := range f {
		var got string
		switch key {
		case "id":
			got = e.ID.String()
		case "jdbcUrl":
			got = e.JdbcURL
		case "name":
			got = e.Name
		case "description":
			got = e.Description
		case "createDate":
			got = e.CreateDate
		case "prj.id":
			got = e.projectID.String()
		default:
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}
