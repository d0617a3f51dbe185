package websets

import (
	"encoding/json"
	"slices"
	"strings"

	"scout/internal/candidate/models"
	"scout/internal/gateway"
	pstrings "scout/pkg/platform/strings"
)

const maxTitleLength = 200

// entity sub-objects whose scalar fields are lifted into candidate properties
var entityKeys = []string{"person", "company", "article", "research_paper", "custom"}

// statusOf reduces webset and search statuses to the gateway's three states.
// A canceled or failed search fails the whole job even while the webset is
// still running.
func statusOf(w *webset) gateway.Status {
	for _, s := range w.Searches {
		switch s.Status {
		case "canceled", "failed":
			return gateway.StatusErrored
		}
	}
	switch w.Status {
	case "idle":
		return gateway.StatusDone
	case "canceled", "failed":
		return gateway.StatusErrored
	default:
		// running, pending, paused and statuses this client does not know yet
		return gateway.StatusSearching
	}
}

// progressOf aggregates search progress. Completion is averaged over the
// searches that report it; time left is the longest remaining estimate.
func progressOf(w *webset) *gateway.Progress {
	var (
		p          gateway.Progress
		reported   bool
		completion float64
		withPct    int
	)
	for _, s := range w.Searches {
		if s.Progress == nil {
			continue
		}
		reported = true
		p.Found += s.Progress.Found
		p.Analyzed += s.Progress.Analyzed
		if s.Progress.Completion != nil {
			completion += *s.Progress.Completion
			withPct++
		}
		if tl := s.Progress.TimeLeft; tl != nil && (p.TimeLeftSeconds == nil || *tl > *p.TimeLeftSeconds) {
			v := *tl
			p.TimeLeftSeconds = &v
		}
	}
	if !reported {
		return nil
	}
	if withPct > 0 {
		avg := completion / float64(withPct)
		p.CompletionPercent = &avg
	}
	return &p
}

func toItem(raw websetItem, enrichmentNames map[string]string) gateway.Item {
	item := gateway.Item{ID: raw.ID, Properties: models.Properties{}}

	for key, value := range raw.Properties {
		switch key {
		case "url":
			_ = json.Unmarshal(value, &item.URL)
		case "type":
		default:
			if slices.Contains(entityKeys, key) {
				liftEntity(value, &item)
				continue
			}
			if v, ok := decodeScalar(value); ok {
				item.Properties[key] = v
			}
		}
	}
	if item.Title == "" {
		if v, ok := item.Properties["description"].AsString(); ok {
			item.Title = pstrings.Clip(firstLine(v), maxTitleLength)
		}
	}

	if raw.Evaluations != nil {
		v := &models.Verification{Passed: true, CriteriaResults: make([]models.CriterionResult, 0, len(*raw.Evaluations))}
		for _, e := range *raw.Evaluations {
			result := models.CriterionResult{
				Description: e.Criterion,
				Passed:      e.Satisfied == "yes",
				Reasoning:   e.Reasoning,
				References:  make([]string, 0, len(e.References)),
			}
			for _, ref := range e.References {
				if ref.URL != "" {
					result.References = append(result.References, ref.URL)
				}
			}
			v.Passed = v.Passed && result.Passed
			v.CriteriaResults = append(v.CriteriaResults, result)
		}
		item.Verification = v
	}

	for _, e := range raw.Enrichments {
		description := enrichmentNames[e.EnrichmentID]
		if description == "" {
			description = e.EnrichmentID
		}
		out := models.EnrichmentResult{Description: description, Status: enrichmentStatus(e.Status)}
		switch len(e.Result) {
		case 0:
		case 1:
			v := models.String(e.Result[0])
			out.Value = &v
		default:
			v := models.List(e.Result...)
			out.Value = &v
		}
		item.Enrichments = append(item.Enrichments, out)
	}
	return item
}

// liftEntity copies the scalar fields of an entity object into properties
// and picks a title from name or title.
func liftEntity(raw json.RawMessage, item *gateway.Item) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return
	}
	for key, value := range fields {
		if v, ok := decodeScalar(value); ok {
			item.Properties[key] = v
		}
	}
	for _, key := range []string{"name", "title"} {
		if s, ok := item.Properties[key].AsString(); ok && s != "" {
			item.Title = s
			return
		}
	}
}

func decodeScalar(raw json.RawMessage) (models.PropertyValue, bool) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return models.PropertyValue{}, false
	}
	return models.FromAny(decoded)
}

func enrichmentStatus(s string) models.EnrichmentStatus {
	switch s {
	case "completed":
		return models.EnrichmentCompleted
	case "canceled", "failed":
		return models.EnrichmentFailed
	default:
		return models.EnrichmentPending
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
