package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filely/filely/pkg/storage/database/memory"
	"github.com/filely/filely/pkg/storage/database/models"
)

func newShare(id, code string, expiresAt time.Time) *models.Share {
	return &models.Share{
		ID:         id,
		Code:       code,
		StorageKey: id + "/file.txt",
		ExpiresAt:  expiresAt,
	}
}

func TestInsertShareLiveCodeUniqueness(t *testing.T) {
	db := memory.NewDatabase()
	ctx := context.Background()

	require.NoError(t, db.InsertShare(ctx, newShare("a", "123456", time.Now().Add(time.Hour))))

	t.Run("live code cannot be reissued", func(t *testing.T) {
		err := db.InsertShare(ctx, newShare("b", "123456", time.Now().Add(time.Hour)))
		assert.ErrorIs(t, err, models.ErrCodeTaken)
	})

	t.Run("expired code can be reissued", func(t *testing.T) {
		require.NoError(t, db.InsertShare(ctx, newShare("c", "654321", time.Now().Add(-time.Hour))))
		assert.NoError(t, db.InsertShare(ctx, newShare("d", "654321", time.Now().Add(time.Hour))))
	})
}

func TestGetShareByCodePrefersLiveRow(t *testing.T) {
	db := memory.NewDatabase()
	ctx := context.Background()

	require.NoError(t, db.InsertShare(ctx, newShare("old", "123456", time.Now().Add(-time.Hour))))
	require.NoError(t, db.InsertShare(ctx, newShare("new", "123456", time.Now().Add(time.Hour))))

	share, err := db.GetShareByCode(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, "new", share.ID)
}

func TestIncrementRedemptionsIsConditional(t *testing.T) {
	db := memory.NewDatabase()
	ctx := context.Background()

	require.NoError(t, db.InsertShare(ctx, newShare("a", "123456", time.Now().Add(time.Hour))))

	require.NoError(t, db.IncrementRedemptions(ctx, "a", 0))

	t.Run("stale expected count conflicts", func(t *testing.T) {
		err := db.IncrementRedemptions(ctx, "a", 0)
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("fresh expected count succeeds", func(t *testing.T) {
		assert.NoError(t, db.IncrementRedemptions(ctx, "a", 1))
	})

	t.Run("unknown id", func(t *testing.T) {
		err := db.IncrementRedemptions(ctx, "missing", 0)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestExpiredShares(t *testing.T) {
	db := memory.NewDatabase()
	ctx := context.Background()

	require.NoError(t, db.InsertShare(ctx, newShare("a", "111111", time.Now().Add(-2*time.Hour))))
	require.NoError(t, db.InsertShare(ctx, newShare("b", "222222", time.Now().Add(-time.Hour))))
	require.NoError(t, db.InsertShare(ctx, newShare("c", "333333", time.Now().Add(time.Hour))))

	expired, err := db.ExpiredShares(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, expired, 2)

	// Oldest expiry first, so a bounded batch drains the backlog in order.
	assert.Equal(t, "a", expired[0].ID)
	assert.Equal(t, "b", expired[1].ID)

	limited, err := db.ExpiredShares(ctx, time.Now(), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDeleteShares(t *testing.T) {
	db := memory.NewDatabase()
	ctx := context.Background()

	require.NoError(t, db.InsertShare(ctx, newShare("a", "111111", time.Now().Add(time.Hour))))
	require.NoError(t, db.InsertShare(ctx, newShare("b", "222222", time.Now().Add(time.Hour))))

	require.NoError(t, db.DeleteShares(ctx, []string{"a", "missing"}))

	_, err := db.GetShareByCode(ctx, "111111")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = db.GetShareByCode(ctx, "222222")
	assert.NoError(t, err)
}

func TestTotalUploads(t *testing.T) {
	db := memory.NewDatabase()
	ctx := context.Background()

	total, err := db.TotalUploads(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	require.NoError(t, db.IncrementTotalUploads(ctx))
	require.NoError(t, db.IncrementTotalUploads(ctx))

	total, err = db.TotalUploads(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}
