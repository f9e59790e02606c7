package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/filely/filely/pkg/storage/database/models"
)

// MemoryDatabase keeps everything in a map behind one mutex. It exists for
// tests and local development; the semantics (live-code uniqueness, the
// conditional redemption update) match the gorm implementation.
type MemoryDatabase struct {
	mu           sync.Mutex
	shares       map[string]models.Share
	totalUploads int64
}

func NewDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		shares: map[string]models.Share{},
	}
}

func (db *MemoryDatabase) InsertShare(ctx context.Context, share *models.Share) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now()
	for _, existing := range db.shares {
		if existing.Code == share.Code && existing.Live(now) {
			return models.ErrCodeTaken
		}
	}

	db.shares[share.ID] = *share
	return nil
}

func (db *MemoryDatabase) GetShareByCode(ctx context.Context, code string) (models.Share, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var (
		found bool
		best  models.Share
	)
	for _, share := range db.shares {
		if share.Code != code {
			continue
		}
		if !found || share.ExpiresAt.After(best.ExpiresAt) {
			best = share
			found = true
		}
	}
	if !found {
		return models.Share{}, models.ErrNotFound
	}

	return best, nil
}

func (db *MemoryDatabase) ExpiredShares(ctx context.Context, t time.Time, limit int) ([]models.Share, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var expired []models.Share
	for _, share := range db.shares {
		if share.ExpiresAt.Before(t) {
			expired = append(expired, share)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	return expired, nil
}

func (db *MemoryDatabase) IncrementRedemptions(ctx context.Context, id string, expected int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	share, ok := db.shares[id]
	if !ok {
		return models.ErrNotFound
	}
	if share.RedemptionCount != expected {
		return models.ErrConflict
	}

	share.RedemptionCount++
	db.shares[id] = share
	return nil
}

func (db *MemoryDatabase) DeleteShares(ctx context.Context, ids []string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, id := range ids {
		delete(db.shares, id)
	}
	return nil
}

func (db *MemoryDatabase) IncrementTotalUploads(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.totalUploads++
	return nil
}

func (db *MemoryDatabase) TotalUploads(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.totalUploads, nil
}

func (db *MemoryDatabase) Ping(ctx context.Context) error {
	return nil
}
