package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestCandidateMerge(t *testing.T) {
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	later := created.Add(time.Minute)

	first := Observation{
		ID:        "cand-1",
		SourceURL: "https://example.com/a",
		Title:     "Alice",
		Properties: Properties{
			"location": String("Berlin"),
		},
		Enrichments: []EnrichmentResult{{Description: "email", Status: EnrichmentPending}},
	}

	t.Run("new candidate takes the first observation", func(t *testing.T) {
		c := NewCandidate("search-1", first, created)
		assert.Equal(t, "cand-1", c.ID)
		assert.Equal(t, "search-1", c.SearchID)
		assert.Equal(t, "Alice", c.Title)
		assert.Equal(t, created, c.UpdatedAt)
		require.Len(t, c.Enrichments, 1)
		assert.Nil(t, c.Enrichments[0].Value)
		assert.Nil(t, c.Verification)
		assert.Nil(t, c.Score)
	})

	t.Run("unreported fields are kept and reported ones overwrite", func(t *testing.T) {
		c := NewCandidate("search-1", first, created)
		changed := c.Merge(Observation{
			ID:         "cand-1",
			Title:      "Alice Smith",
			Properties: Properties{"skills": List("go", "ml")},
			Enrichments: []EnrichmentResult{
				{Description: "email", Status: EnrichmentCompleted, Value: ptr(String("a@example.com"))},
				{Description: "phone"},
			},
		}, later)

		require.True(t, changed)
		assert.Equal(t, "https://example.com/a", c.SourceURL)
		assert.Equal(t, "Alice Smith", c.Title)
		assert.Equal(t, String("Berlin"), c.Properties["location"])
		assert.Equal(t, List("go", "ml"), c.Properties["skills"])
		require.Len(t, c.Enrichments, 2)
		assert.Equal(t, EnrichmentCompleted, c.Enrichments[0].Status)
		assert.Equal(t, String("a@example.com"), *c.Enrichments[0].Value)
		assert.Equal(t, EnrichmentPending, c.Enrichments[1].Status)
		assert.Equal(t, later, c.UpdatedAt)
		assert.Equal(t, created, c.CreatedAt)
	})

	t.Run("verification overwrites together with score", func(t *testing.T) {
		c := NewCandidate("search-1", first, created)
		c.Merge(Observation{
			Verification: &Verification{Passed: false, CriteriaResults: []CriterionResult{{Description: "a", Passed: false}}},
			Score:        ptr(0.0),
		}, later)
		assert.False(t, c.IsVerified())

		c.Merge(Observation{
			Verification: &Verification{Passed: true, CriteriaResults: []CriterionResult{{Description: "a", Passed: true}}},
			Score:        ptr(100.0),
		}, later)
		assert.True(t, c.IsVerified())
		assert.Equal(t, 100.0, *c.Score)
	})

	t.Run("merging the same observation twice changes nothing", func(t *testing.T) {
		c := NewCandidate("search-1", first, created)
		obs := Observation{
			Title:        "Alice",
			Verification: &Verification{Passed: true, CriteriaResults: []CriterionResult{{Description: "a", Passed: true, References: []string{"x"}}}},
			Score:        ptr(100.0),
			Properties:   Properties{"years": Number(7)},
		}
		require.True(t, c.Merge(obs, later))
		snapshot := c.Clone()

		assert.False(t, c.Merge(obs, later.Add(time.Hour)))
		assert.Equal(t, snapshot, c)
	})

	t.Run("merge does not alias the observation", func(t *testing.T) {
		c := NewCandidate("search-1", first, created)
		v := &Verification{Passed: true, CriteriaResults: []CriterionResult{{Description: "a", Passed: true}}}
		c.Merge(Observation{Verification: v, Score: ptr(100.0)}, later)
		v.CriteriaResults[0].Passed = false
		assert.True(t, c.Verification.CriteriaResults[0].Passed)
	})
}

func TestCandidateClone(t *testing.T) {
	c := NewCandidate("s", Observation{
		ID:          "c",
		Properties:  Properties{"tags": List("a")},
		Enrichments: []EnrichmentResult{{Description: "d", Value: ptr(String("v"))}},
	}, time.Now())

	clone := c.Clone()
	require.Equal(t, c, clone)

	clone.Properties["tags"] = List("b")
	*clone.Enrichments[0].Value = String("other")
	assert.Equal(t, List("a"), c.Properties["tags"])
	assert.Equal(t, String("v"), *c.Enrichments[0].Value)
	assert.Nil(t, (*Candidate)(nil).Clone())
}

func TestFilterMatches(t *testing.T) {
	verified := &Candidate{SearchID: "s1", Score: ptr(80.0), Verification: &Verification{Passed: true}}
	unscored := &Candidate{SearchID: "s1"}
	other := &Candidate{SearchID: "s2", Score: ptr(40.0), Verification: &Verification{Passed: false}}

	tests := []struct {
		name   string
		filter Filter
		want   []bool
	}{
		{"empty filter matches all", Filter{}, []bool{true, true, true}},
		{"search id", Filter{SearchID: "s1"}, []bool{true, true, false}},
		{"min score excludes unscored", Filter{MinScore: ptr(40.0)}, []bool{true, false, true}},
		{"min score is inclusive", Filter{MinScore: ptr(80.0)}, []bool{true, false, false}},
		{"verified only", Filter{VerifiedOnly: true}, []bool{true, false, false}},
		{"conjunction", Filter{SearchID: "s2", VerifiedOnly: true}, []bool{false, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []bool{tt.filter.Matches(verified), tt.filter.Matches(unscored), tt.filter.Matches(other)}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCandidateJSON(t *testing.T) {
	c := NewCandidate("s", Observation{
		ID:          "c",
		SourceURL:   "https://example.com",
		Properties:  Properties{"years": Number(3), "remote": Bool(true)},
		Enrichments: []EnrichmentResult{{Description: "email", Status: EnrichmentCompleted, Value: ptr(String("x@y"))}},
	}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	raw, err := json.Marshal(c)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "https://example.com", body["url"])
	assert.Equal(t, map[string]any{"years": 3.0, "remote": true}, body["properties"])
	assert.NotContains(t, body, "score")

	var back Candidate
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, c, &back)
}
