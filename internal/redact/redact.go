// Package redact removes the names of users and communities that asked to be
// excluded from search before anything reaches the index.
package redact

import (
	"fmt"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"discuit_search/internal/domain"
)

const (
	Placeholder   = "[REDACTED]"
	GhostUsername = "Ghost"
)

// Lists is the on-disk format of the redactions file.
type Lists struct {
	Usernames   []string `yaml:"usernames"`
	Communities []string `yaml:"communities"`
}

// Redactor rewrites text mentioning listed usernames and communities.
// It is safe for concurrent use.
type Redactor struct {
	usernames   []string
	communities []string
	patterns    []*regexp.Regexp
}

func New(usernames, communities []string) *Redactor {
	r := &Redactor{
		usernames:   slices.Clone(usernames),
		communities: slices.Clone(communities),
	}
	for _, name := range slices.Concat(usernames, communities) {
		if name == "" {
			continue
		}
		r.patterns = append(r.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(name)+`\b`))
	}
	return r
}

// LoadFile reads the redaction lists from a YAML file.
func LoadFile(path string) (*Redactor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read redactions: %w", err)
	}
	var lists Lists
	if err := yaml.Unmarshal(data, &lists); err != nil {
		return nil, fmt.Errorf("parse redactions: %w", err)
	}
	return New(lists.Usernames, lists.Communities), nil
}

// Empty reports whether nothing will ever be redacted.
func (r *Redactor) Empty() bool {
	return len(r.patterns) == 0
}

// Text replaces every whole-word, case-insensitive mention of a listed
// username or community with the placeholder.
func (r *Redactor) Text(text string) string {
	if text == "" {
		return text
	}
	for _, re := range r.patterns {
		text = re.ReplaceAllLiteralString(text, Placeholder)
	}
	return text
}

// Username ghosts a listed author.
func (r *Redactor) Username(name string) string {
	if slices.Contains(r.usernames, name) {
		return GhostUsername
	}
	return name
}

// Community hides a listed community name.
func (r *Redactor) Community(name string) string {
	if slices.Contains(r.communities, name) {
		return Placeholder
	}
	return name
}

// Post returns a redacted copy of p. The argument is not modified.
func (r *Redactor) Post(p domain.Post) domain.Post {
	p.Title = r.Text(p.Title)
	if p.Body != nil {
		body := r.Text(*p.Body)
		p.Body = &body
	}
	p.Username = r.Username(p.Username)
	p.CommunityName = r.Community(p.CommunityName)
	return p
}

// Posts redacts every post into a new slice.
func (r *Redactor) Posts(posts []domain.Post) []domain.Post {
	out := make([]domain.Post, len(posts))
	for i := range posts {
		out[i] = r.Post(posts[i])
	}
	return out
}
