package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/filely/filely/pkg/config"
	"github.com/filely/filely/pkg/storage/database/models"
	"github.com/filely/filely/pkg/util"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Gorm struct {
	DSN string `mapstructure:"dsn"`

	db *gorm.DB
}

func NewGorm(conf config.Database) (*Gorm, error) {
	rc := util.ConfigToStruct[Gorm](conf.Settings)

	var (
		db  *gorm.DB
		err error
	)
	switch conf.Type {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(rc.DSN), &gorm.Config{})
	case "postgres":
		db, err = gorm.Open(postgres.Open(rc.DSN), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unknown database type: %s", conf.Type)
	}
	if err != nil {
		return nil, err
	}

	rc.db = db

	err = db.AutoMigrate(
		&models.Share{},
		&models.Stat{},
	)
	if err != nil {
		return nil, err
	}

	// Single counters row, created once.
	if err := db.FirstOrCreate(&models.Stat{}, models.Stat{ID: 1}).Error; err != nil {
		return nil, err
	}

	return rc, nil
}

// InsertShare checks live-code uniqueness and creates the row in one
// transaction. A plain unique index on code would be wrong here: expired rows
// awaiting the reclaimer may legitimately hold the same code as a new share.
func (s *Gorm) InsertShare(ctx context.Context, share *models.Share) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.Share{}).
			Where("code = ? AND expires_at > ?", share.Code, time.Now()).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return models.ErrCodeTaken
		}

		return tx.Create(share).Error
	})
}

func (s *Gorm) GetShareByCode(ctx context.Context, code string) (models.Share, error) {
	var share models.Share
	res := s.db.WithContext(ctx).
		Order("expires_at DESC").
		First(&share, "code = ?", code)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return models.Share{}, models.ErrNotFound
		}
		return models.Share{}, res.Error
	}

	return share, nil
}

func (s *Gorm) ExpiredShares(ctx context.Context, t time.Time, limit int) ([]models.Share, error) {
	var shares []models.Share
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", t).
		Limit(limit).
		Find(&shares)
	if res.Error != nil {
		return nil, res.Error
	}

	return shares, nil
}

// IncrementRedemptions is the conditional update that bounds overshoot of the
// redemption limit: the write only lands if the count is still the one the
// caller read.
func (s *Gorm) IncrementRedemptions(ctx context.Context, id string, expected int64) error {
	res := s.db.WithContext(ctx).
		Model(&models.Share{}).
		Where("id = ? AND redemption_count = ?", id, expected).
		Update("redemption_count", expected+1)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrConflict
	}

	return nil
}

func (s *Gorm) DeleteShares(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.Share{}).Error
}

func (s *Gorm) IncrementTotalUploads(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Model(&models.Stat{}).
		Where("id = ?", 1).
		Update("total_uploads", gorm.Expr("total_uploads + ?", 1)).Error
}

func (s *Gorm) TotalUploads(ctx context.Context) (int64, error) {
	var stat models.Stat
	if err := s.db.WithContext(ctx).First(&stat, 1).Error; err != nil {
		return 0, err
	}

	return stat.TotalUploads, nil
}

func (s *Gorm) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}
