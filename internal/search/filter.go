package search

import "strings"

// Filter builds a Meilisearch filter expression of equality clauses joined
// with AND. Values are always quoted and escaped here, never by callers.
type Filter struct {
	clauses []string
}

func NewFilter() *Filter {
	return &Filter{}
}

// Eq adds field = value. Empty values are ignored so optional query
// parameters can be passed straight through.
func (f *Filter) Eq(field, value string) *Filter {
	if value == "" {
		return f
	}
	f.clauses = append(f.clauses, field+" = "+Quote(value))
	return f
}

func (f *Filter) Empty() bool {
	return len(f.clauses) == 0
}

func (f *Filter) String() string {
	return strings.Join(f.clauses, " AND ")
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Quote renders s as a double-quoted filter literal.
func Quote(s string) string {
	return `"` + quoteReplacer.Replace(s) + `"`
}
