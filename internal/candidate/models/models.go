package models

import (
	"reflect"
	"slices"
	"time"
)

// EnrichmentStatus is the state of one requested enrichment for a candidate.
type EnrichmentStatus string

const (
	EnrichmentPending   EnrichmentStatus = "pending"
	EnrichmentCompleted EnrichmentStatus = "completed"
	EnrichmentFailed    EnrichmentStatus = "failed"
)

// CriterionResult is the provider's verdict on one requested criterion.
type CriterionResult struct {
	Description string   `json:"description"`
	Passed      bool     `json:"passed"`
	Reasoning   string   `json:"reasoning"`
	References  []string `json:"references"`
}

// Verification holds per-criterion results. Passed is true only when every
// result passed, and vacuously true when there are none.
type Verification struct {
	Passed          bool              `json:"passed"`
	CriteriaResults []CriterionResult `json:"criteria_results"`
}

// Clone returns a deep copy, or nil for nil.
func (v *Verification) Clone() *Verification {
	if v == nil {
		return nil
	}
	out := &Verification{Passed: v.Passed, CriteriaResults: make([]CriterionResult, len(v.CriteriaResults))}
	for i, r := range v.CriteriaResults {
		r.References = slices.Clone(r.References)
		out.CriteriaResults[i] = r
	}
	return out
}

// EnrichmentResult is one extracted datum. Value stays nil until the
// provider completes the enrichment.
type EnrichmentResult struct {
	Description string           `json:"description"`
	Status      EnrichmentStatus `json:"status"`
	Value       *PropertyValue   `json:"result,omitempty"`
}

// Candidate is one entity discovered for a search. It is owned by exactly
// one search through SearchID.
type Candidate struct {
	ID           string             `json:"id"`
	SearchID     string             `json:"search_id"`
	SourceURL    string             `json:"url"`
	Title        string             `json:"title"`
	Verification *Verification      `json:"verification,omitempty"`
	Properties   Properties         `json:"properties"`
	Enrichments  []EnrichmentResult `json:"enrichments"`
	Score        *float64           `json:"score,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Observation is what one reconciliation pass learned about a candidate.
// Empty strings, nil pointers and missing keys mean "not reported".
type Observation struct {
	ID           string
	SourceURL    string
	Title        string
	Verification *Verification
	Score        *float64
	Properties   Properties
	Enrichments  []EnrichmentResult
}

// NewCandidate creates a candidate from its first observation.
func NewCandidate(searchID string, obs Observation, now time.Time) *Candidate {
	c := &Candidate{
		ID:          obs.ID,
		SearchID:    searchID,
		Properties:  Properties{},
		Enrichments: []EnrichmentResult{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.apply(obs)
	return c
}

// Merge folds a later observation into c. Reported fields overwrite,
// unreported fields are kept. UpdatedAt only moves when something changed,
// so merging the same observation twice is a no-op.
func (c *Candidate) Merge(obs Observation, now time.Time) bool {
	before := c.Clone()
	c.apply(obs)
	before.UpdatedAt = c.UpdatedAt
	if reflect.DeepEqual(before, c) {
		return false
	}
	c.UpdatedAt = now
	return true
}

func (c *Candidate) apply(obs Observation) {
	if obs.SourceURL != "" {
		c.SourceURL = obs.SourceURL
	}
	if obs.Title != "" {
		c.Title = obs.Title
	}
	if obs.Verification != nil {
		c.Verification = obs.Verification.Clone()
		c.Score = cloneFloat(obs.Score)
	}
	if len(obs.Properties) > 0 && c.Properties == nil {
		c.Properties = Properties{}
	}
	for key, value := range obs.Properties {
		if value.IsZero() {
			continue
		}
		c.Properties[key] = value.clone()
	}
	for _, incoming := range obs.Enrichments {
		c.mergeEnrichment(incoming)
	}
}

func (c *Candidate) mergeEnrichment(incoming EnrichmentResult) {
	for i := range c.Enrichments {
		existing := &c.Enrichments[i]
		if existing.Description != incoming.Description {
			continue
		}
		if incoming.Status != "" {
			existing.Status = incoming.Status
		}
		if incoming.Value != nil {
			v := incoming.Value.clone()
			existing.Value = &v
		}
		return
	}
	if incoming.Status == "" {
		incoming.Status = EnrichmentPending
	}
	if incoming.Value != nil {
		v := incoming.Value.clone()
		incoming.Value = &v
	}
	c.Enrichments = append(c.Enrichments, incoming)
}

// IsVerified reports whether the candidate passed every criterion.
func (c *Candidate) IsVerified() bool {
	return c.Verification != nil && c.Verification.Passed
}

// Clone returns a deep copy so stores never share memory with callers.
func (c *Candidate) Clone() *Candidate {
	if c == nil {
		return nil
	}
	out := *c
	out.Verification = c.Verification.Clone()
	out.Properties = c.Properties.Clone()
	out.Score = cloneFloat(c.Score)
	if c.Enrichments != nil {
		out.Enrichments = make([]EnrichmentResult, len(c.Enrichments))
		for i, e := range c.Enrichments {
			if e.Value != nil {
				v := e.Value.clone()
				e.Value = &v
			}
			out.Enrichments[i] = e
		}
	}
	return &out
}

// Filter selects candidates. All set fields must match.
type Filter struct {
	SearchID     string
	MinScore     *float64
	VerifiedOnly bool
}

// Matches evaluates the filter against c. Unscored candidates never satisfy
// a minimum score.
func (f Filter) Matches(c *Candidate) bool {
	if f.SearchID != "" && c.SearchID != f.SearchID {
		return false
	}
	if f.MinScore != nil && (c.Score == nil || *c.Score < *f.MinScore) {
		return false
	}
	if f.VerifiedOnly && !c.IsVerified() {
		return false
	}
	return true
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
