package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/repository"
)

func repositoryFilter() repository.OrderFilter {
	return repository.OrderFilter{}.Normalize()
}

func TestOrchestratorRunRangeContinuesPastFailures(t *testing.T) {
	h := newHarness(t)
	addDay(h.sources, day)
	addDay(h.sources, day.AddDate(0, 0, 2))

	outcomes, err := NewOrchestrator(h.worker).RunRange(context.Background(), day, day.AddDate(0, 0, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2024-03-16")

	require.Len(t, outcomes, 3)
	assert.Equal(t, domain.RunSucceeded, outcomes[0].Status)
	assert.Equal(t, domain.RunFailed, outcomes[1].Status)
	assert.Error(t, outcomes[1].Err)
	assert.Equal(t, domain.RunSucceeded, outcomes[2].Status)

	dates, err := h.results.GetAvailableDates(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day.AddDate(0, 0, 2), day}, dates)
}

func TestOrchestratorRunDedupesAndSorts(t *testing.T) {
	h := newHarness(t)
	next := day.AddDate(0, 0, 1)
	addDay(h.sources, day)
	addDay(h.sources, next)

	outcomes, err := NewOrchestrator(h.worker).Run(context.Background(), []time.Time{
		next,
		day.Add(5 * time.Hour),
		day,
		{},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, day, outcomes[0].BusinessDate)
	assert.Equal(t, next, outcomes[1].BusinessDate)
}

func TestOrchestratorRunRangeRejectsInvertedRange(t *testing.T) {
	h := newHarness(t)
	_, err := NewOrchestrator(h.worker).RunRange(context.Background(), day, day.AddDate(0, 0, -1))
	assert.Error(t, err)
}

func TestOrchestratorStopsWhenCancelled(t *testing.T) {
	h := newHarness(t)
	addDay(h.sources, day)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := NewOrchestrator(h.worker).Run(ctx, []time.Time{day, day.AddDate(0, 0, 1)})
	require.Error(t, err)
	assert.Empty(t, outcomes)
}
