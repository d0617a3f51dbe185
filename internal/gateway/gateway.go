// Package gateway defines the boundary to the external search provider: a
// job is submitted once, then fetched repeatedly until the provider reports
// it done or errored.
package gateway

import (
	"context"

	"scout/internal/candidate/models"
)

//go:generate mockgen -source=gateway.go -destination=mocks/gateway-mocks.go -package=mocks Gateway

// Gateway is implemented by provider clients and by the Resilient decorator.
type Gateway interface {
	Submit(ctx context.Context, spec JobSpec) (JobRef, error)
	Fetch(ctx context.Context, ref JobRef) (*FetchResult, error)
	Cancel(ctx context.Context, ref JobRef) error
}

// JobRef is the provider's handle for a submitted job.
type JobRef string

func (r JobRef) String() string { return string(r) }

// Status is the provider's view of a job, reduced to what the lifecycle
// manager acts on.
type Status string

const (
	StatusSearching Status = "searching"
	StatusDone      Status = "done"
	StatusErrored   Status = "errored"
)

// ExcludePrefix marks an exclusion sent upstream as an ordinary criterion.
const ExcludePrefix = "Does not match: "

// JobSpec is everything the provider needs to start a job.
type JobSpec struct {
	SearchID        string
	Query           string
	EntityKind      string
	Criteria        []string
	ExcludeCriteria []string
	Enrichments     []string
	Count           int
}

// AllCriteria lists the criteria sent upstream: the requested ones followed
// by one negated criterion per exclusion.
func (s JobSpec) AllCriteria() []string {
	out := make([]string, 0, len(s.Criteria)+len(s.ExcludeCriteria))
	out = append(out, s.Criteria...)
	for _, ex := range s.ExcludeCriteria {
		out = append(out, ExcludePrefix+ex)
	}
	return out
}

// Progress is the provider's optional progress signal.
type Progress struct {
	Found             int
	Analyzed          int
	CompletionPercent *float64
	TimeLeftSeconds   *int
}

// Item is one provider result. Verification is nil when the provider has
// not evaluated the item yet.
type Item struct {
	ID           string
	URL          string
	Title        string
	Verification *models.Verification
	Properties   models.Properties
	Enrichments  []models.EnrichmentResult
}

// FetchResult is a snapshot of a job. Items is the full current result set,
// not a delta.
type FetchResult struct {
	Status   Status
	Items    []Item
	Progress *Progress
	// Message explains an errored job when the provider says why.
	Message string
}
