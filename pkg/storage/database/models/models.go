package models

import (
	"time"
)

// Share is one shared file: where its bytes live, when it stops being
// redeemable, and how many times it has been redeemed.
//
// Code is unique among live rows only. An expired row that the reclaimer has
// not swept yet may share a code with a newer live row, so uniqueness is
// enforced transactionally at insert time rather than by a unique index.
type Share struct {
	ID           string `gorm:"primaryKey"`
	Code         string `gorm:"index:idx_share_code"`
	StorageKey   string
	OriginalName string
	MimeType     string
	SizeBytes    int64

	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index:idx_share_expires_at"`

	// MaxRedemptions of 0 means unlimited. RedemptionCount is only ever
	// mutated through the database's conditional update.
	MaxRedemptions  int64
	RedemptionCount int64
}

// Live reports whether the share is still redeemable at t, ignoring the
// redemption limit.
func (s Share) Live(t time.Time) bool {
	return s.ExpiresAt.After(t)
}

// LimitReached reports whether the redemption limit has been used up.
func (s Share) LimitReached() bool {
	return s.MaxRedemptions > 0 && s.RedemptionCount >= s.MaxRedemptions
}

// Stat is the single-row table holding platform-wide counters. The counter is
// incremented store-side so that multiple server instances never race on an
// in-process total.
type Stat struct {
	ID           uint `gorm:"primaryKey"`
	TotalUploads int64
}
