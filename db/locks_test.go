package db

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/leadsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLockExclusive(t *testing.T) {
	ctx := context.Background()
	repo := NewRunLockRepository(setupTestDB(t))

	ok, err := repo.TryAcquire(ctx, "reconcile:leads", "pass-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TryAcquire(ctx, "reconcile:leads", "pass-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Re-entrant for the same owner
	ok, err = repo.TryAcquire(ctx, "reconcile:leads", "pass-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	holder, err := repo.Holder(ctx, "reconcile:leads")
	require.NoError(t, err)
	assert.Equal(t, "pass-a", holder)

	// Release by a non-owner is a no-op
	require.NoError(t, repo.Release(ctx, "reconcile:leads", "pass-b"))
	ok, err = repo.TryAcquire(ctx, "reconcile:leads", "pass-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Release(ctx, "reconcile:leads", "pass-a"))
	ok, err = repo.TryAcquire(ctx, "reconcile:leads", "pass-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunLockExpiredLeaseIsTaken(t *testing.T) {
	ctx := context.Background()
	repo := NewRunLockRepository(setupTestDB(t))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	ok, err := repo.TryAcquire(ctx, "reconcile:leads", "crashed", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(11 * time.Minute)
	holder, err := repo.Holder(ctx, "reconcile:leads")
	require.NoError(t, err)
	assert.Empty(t, holder)

	ok, err = repo.TryAcquire(ctx, "reconcile:leads", "next", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPassRuns(t *testing.T) {
	ctx := context.Background()
	repo := NewPassRepository(setupTestDB(t))

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.StartPass(ctx, "01A", start))
	require.NoError(t, repo.StartPass(ctx, "01B", start.Add(time.Hour)))

	end := start.Add(time.Minute)
	require.NoError(t, repo.FinishPass(ctx, &models.PassRun{
		ID:            "01A",
		StartedAt:     start,
		FinishedAt:    &end,
		Status:        models.PassComplete,
		Processed:     4,
		Matched:       2,
		RemindersSent: 1,
	}))

	runs, err := repo.RecentPasses(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "01B", runs[0].ID)
	assert.Equal(t, models.PassRunning, runs[0].Status)
	assert.Nil(t, runs[0].FinishedAt)

	assert.Equal(t, models.PassComplete, runs[1].Status)
	assert.Equal(t, 4, runs[1].Processed)
	assert.Equal(t, 1, runs[1].RemindersSent)
	require.NotNil(t, runs[1].FinishedAt)
}
