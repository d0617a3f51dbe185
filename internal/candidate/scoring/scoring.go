// Package scoring turns the provider's per-criterion verdicts into a
// normalized verification summary and a 0-100 relevance score.
package scoring

import (
	"math"
	"slices"
	"strings"

	"scout/internal/candidate/models"
)

// Normalize orders raw criterion results by the requested criteria and
// recomputes Passed as the AND of every result. Results for criteria that were
// not requested follow the requested ones in provider order. A criterion
// reported more than once keeps its first result. Nil input yields nil.
func Normalize(raw *models.Verification, requested []string) *models.Verification {
	if raw == nil {
		return nil
	}

	slots := make(map[string]int, len(requested))
	for i, c := range requested {
		key := criterionKey(c)
		if _, dup := slots[key]; !dup {
			slots[key] = i
		}
	}

	ordered := make([]*models.CriterionResult, len(requested))
	var extra []models.CriterionResult
	seen := make(map[string]bool, len(raw.CriteriaResults))
	for _, r := range raw.CriteriaResults {
		key := criterionKey(r.Description)
		if seen[key] {
			continue
		}
		seen[key] = true

		r.References = slices.Clone(r.References)
		if i, ok := slots[key]; ok {
			ordered[i] = &r
			continue
		}
		extra = append(extra, r)
	}

	out := &models.Verification{Passed: true, CriteriaResults: make([]models.CriterionResult, 0, len(raw.CriteriaResults))}
	for _, r := range ordered {
		if r != nil {
			out.CriteriaResults = append(out.CriteriaResults, *r)
		}
	}
	out.CriteriaResults = append(out.CriteriaResults, extra...)
	for _, r := range out.CriteriaResults {
		out.Passed = out.Passed && r.Passed
	}
	return out
}

// Score is 100 * passed / total rounded to one decimal place. It is nil when
// there is nothing to score.
func Score(v *models.Verification) *float64 {
	if v == nil || len(v.CriteriaResults) == 0 {
		return nil
	}
	passed := 0
	for _, r := range v.CriteriaResults {
		if r.Passed {
			passed++
		}
	}
	score := Round1(100 * float64(passed) / float64(len(v.CriteriaResults)))
	return &score
}

// Round1 rounds to one decimal place.
func Round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func criterionKey(description string) string {
	return strings.ToLower(strings.Join(strings.Fields(description), " "))
}
