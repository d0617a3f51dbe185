package simulated

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout/internal/candidate/models"
	"scout/internal/gateway"
)

var _ gateway.Gateway = (*Provider)(nil)

func spec() gateway.JobSpec {
	return gateway.JobSpec{
		SearchID:        "search-1",
		Query:           "ML engineers in Berlin",
		EntityKind:      "person",
		Criteria:        []string{"Works on ML"},
		ExcludeCriteria: []string{"Works at Google"},
		Enrichments:     []string{"LinkedIn URL"},
		Count:           8,
	}
}

func TestSubmitRejectsInvalidSpecs(t *testing.T) {
	p := New()
	ctx := context.Background()

	_, err := p.Submit(ctx, gateway.JobSpec{Query: "  ", Count: 1})
	assert.Equal(t, gateway.CategoryRejected, gateway.CategoryOf(err))

	_, err = p.Submit(ctx, gateway.JobSpec{Query: "q", Count: 0})
	assert.Equal(t, gateway.CategoryRejected, gateway.CategoryOf(err))
}

func TestSubmitIsIdempotentPerSearch(t *testing.T) {
	p := New()
	ctx := context.Background()

	first, err := p.Submit(ctx, spec())
	require.NoError(t, err)
	second, err := p.Submit(ctx, spec())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other := spec()
	other.SearchID = "search-2"
	third, err := p.Submit(ctx, other)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestFetchRevealsItemsProgressively(t *testing.T) {
	p := New(WithBatches(4))
	ctx := context.Background()
	ref, err := p.Submit(ctx, spec())
	require.NoError(t, err)

	var seen []gateway.Item
	for fetch := 1; fetch <= 4; fetch++ {
		result, err := p.Fetch(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, gateway.StatusSearching, result.Status, "fetch %d", fetch)
		require.Len(t, result.Items, fetch*2)
		require.NotNil(t, result.Progress)
		assert.Equal(t, fetch*2, result.Progress.Found)

		// earlier items keep their ids and order
		for i, item := range seen {
			assert.Equal(t, item.ID, result.Items[i].ID)
		}
		seen = result.Items
	}

	last := seen[len(seen)-1]
	require.Len(t, last.Enrichments, 1)
	assert.Equal(t, models.EnrichmentPending, last.Enrichments[0].Status)
	assert.Nil(t, last.Enrichments[0].Value)

	result, err := p.Fetch(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusDone, result.Status)
	require.Len(t, result.Items, 8)
	for _, item := range result.Items {
		require.Len(t, item.Enrichments, 1)
		assert.Equal(t, models.EnrichmentCompleted, item.Enrichments[0].Status)
		require.NotNil(t, item.Enrichments[0].Value)
	}
	assert.Equal(t, 0, *result.Progress.TimeLeftSeconds)
}

func TestItemsAreDeterministic(t *testing.T) {
	ctx := context.Background()
	fetchAll := func() []gateway.Item {
		p := New(WithBatches(1))
		ref, err := p.Submit(ctx, spec())
		require.NoError(t, err)
		result, err := p.Fetch(ctx, ref)
		require.NoError(t, err)
		return result.Items
	}

	assert.Equal(t, fetchAll(), fetchAll())
}

func TestVerificationCoversAllCriteria(t *testing.T) {
	p := New(WithBatches(1))
	ctx := context.Background()
	ref, err := p.Submit(ctx, spec())
	require.NoError(t, err)

	result, err := p.Fetch(ctx, ref)
	require.NoError(t, err)
	for _, item := range result.Items {
		require.NotNil(t, item.Verification)
		require.Len(t, item.Verification.CriteriaResults, 2)
		assert.Equal(t, "Works on ML", item.Verification.CriteriaResults[0].Description)
		assert.Equal(t, gateway.ExcludePrefix+"Works at Google", item.Verification.CriteriaResults[1].Description)

		passed := true
		for _, r := range item.Verification.CriteriaResults {
			passed = passed && r.Passed
		}
		assert.Equal(t, passed, item.Verification.Passed)
	}
}

func TestCompletesWithoutEnrichments(t *testing.T) {
	p := New(WithBatches(2))
	ctx := context.Background()
	s := spec()
	s.Enrichments = nil
	s.Count = 3
	ref, err := p.Submit(ctx, s)
	require.NoError(t, err)

	result, err := p.Fetch(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusSearching, result.Status)
	assert.Len(t, result.Items, 2)

	result, err = p.Fetch(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusDone, result.Status)
	assert.Len(t, result.Items, 3)
}

func TestCancelErrorsTheJob(t *testing.T) {
	p := New()
	ctx := context.Background()
	ref, err := p.Submit(ctx, spec())
	require.NoError(t, err)

	_, err = p.Fetch(ctx, ref)
	require.NoError(t, err)
	require.NoError(t, p.Cancel(ctx, ref))

	result, err := p.Fetch(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusErrored, result.Status)
	assert.Len(t, result.Items, 2, "no further items after cancel")
}

func TestUnknownJobIsRejected(t *testing.T) {
	p := New()
	ctx := context.Background()

	_, err := p.Fetch(ctx, "sim_missing")
	assert.Equal(t, gateway.CategoryRejected, gateway.CategoryOf(err))
	assert.Equal(t, gateway.CategoryRejected, gateway.CategoryOf(p.Cancel(ctx, "sim_missing")))
}
