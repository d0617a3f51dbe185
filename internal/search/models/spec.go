package models

import (
	"strings"
	"unicode/utf8"

	dErrors "scout/pkg/domain-errors"
	pstrings "scout/pkg/platform/strings"
)

// MaxQueryLength bounds the free-text query, in characters.
const MaxQueryLength = 1000

// EntityKind is the type of entity a search looks for.
type EntityKind string

const (
	EntityPerson        EntityKind = "person"
	EntityCompany       EntityKind = "company"
	EntityResearchPaper EntityKind = "research_paper"
	EntityArticle       EntityKind = "article"
)

// ParseEntityKind accepts the known kinds case-insensitively. Empty means
// person.
func ParseEntityKind(raw string) (EntityKind, error) {
	switch kind := EntityKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case "":
		return EntityPerson, nil
	case EntityPerson, EntityCompany, EntityResearchPaper, EntityArticle:
		return kind, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "entity must be one of person, company, research_paper, article")
	}
}

// Spec is what the caller asked for.
type Spec struct {
	Query           string     `json:"query"`
	EntityKind      EntityKind `json:"entity_kind"`
	Criteria        []string   `json:"criteria"`
	ExcludeCriteria []string   `json:"exclude_criteria"`
	Enrichments     []string   `json:"enrichments"`
	RequestedCount  int        `json:"requested_count"`
}

// CountPolicy holds the default and ceiling for requested counts.
type CountPolicy struct {
	Default int
	Max     int
}

// Resolve applies the count policy: 0 means the default, anything above the
// ceiling is clamped to it, negatives are invalid.
func (p CountPolicy) Resolve(count int) (int, error) {
	switch {
	case count < 0:
		return 0, dErrors.New(dErrors.CodeValidation, "count must not be negative")
	case count == 0:
		return min(p.Default, p.Max), nil
	case count > p.Max:
		return p.Max, nil
	default:
		return count, nil
	}
}

// Normalize trims and deduplicates the spec's lists, resolves the entity kind
// and the requested count, and validates the query.
func (s Spec) Normalize(policy CountPolicy) (Spec, error) {
	out := Spec{
		Query:           strings.TrimSpace(s.Query),
		Criteria:        pstrings.DedupeAndTrim(s.Criteria),
		ExcludeCriteria: pstrings.DedupeAndTrim(s.ExcludeCriteria),
		Enrichments:     pstrings.DedupeAndTrim(s.Enrichments),
	}
	if out.Query == "" {
		return Spec{}, dErrors.New(dErrors.CodeValidation, "query is required")
	}
	if utf8.RuneCountInString(out.Query) > MaxQueryLength {
		return Spec{}, dErrors.New(dErrors.CodeValidation, "query must be at most 1000 characters")
	}

	kind, err := ParseEntityKind(string(s.EntityKind))
	if err != nil {
		return Spec{}, err
	}
	out.EntityKind = kind

	count, err := policy.Resolve(s.RequestedCount)
	if err != nil {
		return Spec{}, err
	}
	out.RequestedCount = count
	return out, nil
}
