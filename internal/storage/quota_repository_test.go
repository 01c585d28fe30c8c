package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contact-verifier/internal/models"
)

func setupQuotaRepo(t *testing.T) (*QuotaRepository, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewQuotaRepository(client), mr
}

func TestReadCounterAbsent(t *testing.T) {
	repo, _ := setupQuotaRepo(t)

	counter, err := repo.ReadCounter(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, counter)
}

func TestUpsertAndReadCounter(t *testing.T) {
	repo, mr := setupQuotaRepo(t)
	ctx := context.Background()

	checkTime := time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)
	in := &models.QuotaCounter{
		OwnerID:       "user-1",
		DailyChecks:   42,
		LastCheckTime: checkTime,
		LastResetDate: "2025-03-10",
	}
	require.NoError(t, repo.UpsertCounter(ctx, "user-1", in))

	out, err := repo.ReadCounter(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "user-1", out.OwnerID)
	assert.Equal(t, 42, out.DailyChecks)
	assert.Equal(t, checkTime.UnixMilli(), out.LastCheckTime.UnixMilli())
	assert.Equal(t, "2025-03-10", out.LastResetDate)

	// Idle counters eventually expire.
	ttl := mr.TTL("quota:user-1")
	assert.Greater(t, ttl, time.Duration(0))
}

func TestUpsertOverwrites(t *testing.T) {
	repo, _ := setupQuotaRepo(t)
	ctx := context.Background()

	first := &models.QuotaCounter{OwnerID: "user-1", DailyChecks: 1, LastCheckTime: time.Now(), LastResetDate: "2025-03-10"}
	require.NoError(t, repo.UpsertCounter(ctx, "user-1", first))

	second := &models.QuotaCounter{OwnerID: "user-1", DailyChecks: 2, LastCheckTime: time.Now(), LastResetDate: "2025-03-11"}
	require.NoError(t, repo.UpsertCounter(ctx, "user-1", second))

	out, err := repo.ReadCounter(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, out.DailyChecks)
	assert.Equal(t, "2025-03-11", out.LastResetDate)
}

func TestCorruptCounterSurfacesAnError(t *testing.T) {
	repo, mr := setupQuotaRepo(t)

	mr.HSet("quota:user-1", "daily_checks", "not-a-number")

	_, err := repo.ReadCounter(context.Background(), "user-1")
	assert.Error(t, err)
}
