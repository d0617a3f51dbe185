// Package simulated is an in-process gateway.Gateway used when no provider
// API key is configured. Results are derived deterministically from the job
// spec, revealed a batch per Fetch, and enriched one Fetch after they appear.
package simulated

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"scout/internal/candidate/models"
	"scout/internal/gateway"
)

const defaultBatches = 4

var namespace = uuid.MustParse("6f1c51a8-1f55-4d4a-9c43-3b7b8a1de0a2")

var (
	firstNames = []string{"Ada", "Grace", "Linus", "Margaret", "Alan", "Barbara", "Ken", "Frances"}
	lastNames  = []string{"Lovelace", "Hopper", "Torvalds", "Hamilton", "Turing", "Liskov", "Thompson", "Allen"}
	positions  = []string{"ML Engineer", "Data Scientist", "Backend Engineer", "Research Scientist", "Engineering Manager"}
	locations  = []string{"Berlin", "London", "Amsterdam", "Paris", "Lisbon", "Remote"}
)

type job struct {
	spec      gateway.JobSpec
	fetches   int
	cancelled bool
}

// Provider is safe for concurrent use.
type Provider struct {
	mu      sync.Mutex
	jobs    map[gateway.JobRef]*job
	batches int
}

type Option func(*Provider)

// WithBatches sets how many fetches it takes to reveal every item.
func WithBatches(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.batches = n
		}
	}
}

func New(opts ...Option) *Provider {
	p := &Provider{
		jobs:    make(map[gateway.JobRef]*job),
		batches: defaultBatches,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit registers a job. Resubmitting the same search returns the same ref.
func (p *Provider) Submit(_ context.Context, spec gateway.JobSpec) (gateway.JobRef, error) {
	if strings.TrimSpace(spec.Query) == "" {
		return "", gateway.NewError(gateway.CategoryRejected, "submit", "query is required", nil)
	}
	if spec.Count <= 0 {
		return "", gateway.NewError(gateway.CategoryRejected, "submit", "count must be positive", nil)
	}

	ref := gateway.JobRef("sim_" + uuid.NewSHA1(namespace, []byte(spec.SearchID+"\x00"+spec.Query)).String())
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.jobs[ref]; !ok {
		p.jobs[ref] = &job{spec: spec}
	}
	return ref, nil
}

func (p *Provider) Fetch(_ context.Context, ref gateway.JobRef) (*gateway.FetchResult, error) {
	p.mu.Lock()
	j, ok := p.jobs[ref]
	if !ok {
		p.mu.Unlock()
		return nil, gateway.NewError(gateway.CategoryRejected, "fetch", fmt.Sprintf("unknown job %s", ref), nil)
	}
	if !j.cancelled {
		j.fetches++
	}
	fetches, cancelled, spec := j.fetches, j.cancelled, j.spec
	p.mu.Unlock()

	step := p.step(spec.Count)
	revealed := min(spec.Count, fetches*step)

	result := &gateway.FetchResult{
		Status: gateway.StatusSearching,
		Items:  make([]gateway.Item, 0, revealed),
	}
	for i := range revealed {
		// an item's enrichments complete on the fetch after it first appears
		enriched := fetches > i/step+1
		result.Items = append(result.Items, p.item(ref, spec, i, enriched))
	}

	pct := 100 * float64(revealed) / float64(spec.Count)
	doneAt := (spec.Count-1)/step + 1
	if len(spec.Enrichments) > 0 {
		doneAt++
	}
	switch {
	case cancelled:
		result.Status = gateway.StatusErrored
		result.Message = "job cancelled"
	case fetches >= doneAt:
		result.Status = gateway.StatusDone
	}
	secondsLeft := max(doneAt-fetches, 0) * 10
	result.Progress = &gateway.Progress{
		Found:             revealed,
		Analyzed:          revealed,
		CompletionPercent: &pct,
		TimeLeftSeconds:   &secondsLeft,
	}
	return result, nil
}

func (p *Provider) Cancel(_ context.Context, ref gateway.JobRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	j, ok := p.jobs[ref]
	if !ok {
		return gateway.NewError(gateway.CategoryRejected, "cancel", fmt.Sprintf("unknown job %s", ref), nil)
	}
	j.cancelled = true
	return nil
}

func (p *Provider) step(count int) int {
	return max(1, (count+p.batches-1)/p.batches)
}

func (p *Provider) item(ref gateway.JobRef, spec gateway.JobSpec, index int, enriched bool) gateway.Item {
	id := uuid.NewSHA1(namespace, fmt.Appendf(nil, "%s/%d", ref, index))
	seed := id[:]
	name := firstNames[int(seed[0])%len(firstNames)] + " " + lastNames[int(seed[1])%len(lastNames)]
	position := positions[int(seed[2])%len(positions)]
	location := locations[int(seed[3])%len(locations)]

	item := gateway.Item{
		ID:    id.String(),
		URL:   "https://example.com/profiles/" + id.String()[:8],
		Title: name,
		Properties: models.Properties{
			"name":        models.String(name),
			"position":    models.String(position),
			"location":    models.String(location),
			"entity_kind": models.String(spec.EntityKind),
		},
	}

	criteria := spec.AllCriteria()
	v := &models.Verification{Passed: true, CriteriaResults: make([]models.CriterionResult, 0, len(criteria))}
	for _, criterion := range criteria {
		passed := uuid.NewSHA1(id, []byte(criterion))[0]%4 != 0
		reasoning := fmt.Sprintf("%s, %s in %s, does not satisfy %q", name, position, location, criterion)
		if passed {
			reasoning = fmt.Sprintf("%s, %s in %s, satisfies %q", name, position, location, criterion)
		}
		v.CriteriaResults = append(v.CriteriaResults, models.CriterionResult{
			Description: criterion,
			Passed:      passed,
			Reasoning:   reasoning,
			References:  []string{item.URL},
		})
		v.Passed = v.Passed && passed
	}
	item.Verification = v

	for _, description := range spec.Enrichments {
		e := models.EnrichmentResult{Description: description, Status: models.EnrichmentPending}
		if enriched {
			value := models.String(fmt.Sprintf("%s for %s", description, name))
			e.Status = models.EnrichmentCompleted
			e.Value = &value
		}
		item.Enrichments = append(item.Enrichments, e)
	}
	return item
}
