package database

import (
	"context"
	"errors"
	"time"

	"github.com/filely/filely/pkg/config"
	"github.com/filely/filely/pkg/storage/database/gorm"
	"github.com/filely/filely/pkg/storage/database/memory"
	"github.com/filely/filely/pkg/storage/database/models"
)

// Implementations signal lookup misses, live-code collisions, and lost
// conditional updates with models.ErrNotFound, models.ErrCodeTaken, and
// models.ErrConflict.
type Database interface {
	// InsertShare persists a new share. Returns models.ErrCodeTaken when a
	// live share already holds the same code.
	InsertShare(ctx context.Context, share *models.Share) error

	// GetShareByCode returns the share holding the code. When an expired,
	// not-yet-swept row and a live row share a code, the live one wins.
	GetShareByCode(ctx context.Context, code string) (models.Share, error)

	// ExpiredShares returns up to limit shares whose expiry is strictly
	// before t.
	ExpiredShares(ctx context.Context, t time.Time, limit int) ([]models.Share, error)

	// IncrementRedemptions bumps the redemption count by one, but only if
	// the stored count still equals expected. Returns models.ErrConflict
	// otherwise.
	IncrementRedemptions(ctx context.Context, id string, expected int64) error

	// DeleteShares removes the given shares by ID.
	DeleteShares(ctx context.Context, ids []string) error

	IncrementTotalUploads(ctx context.Context) error
	TotalUploads(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
}

func NewConnection(conf config.Database) (Database, error) {
	switch conf.Type {
	case "memory":
		return memory.NewDatabase(), nil
	case "sqlite", "postgres":
		return gorm.NewGorm(conf)
	}

	return nil, errors.New("unsupported database type: " + conf.Type)
}
