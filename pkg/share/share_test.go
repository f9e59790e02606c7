package share_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filely/filely/pkg/config"
	"github.com/filely/filely/pkg/share"
	"github.com/filely/filely/pkg/storage"
	memBlob "github.com/filely/filely/pkg/storage/blobstore/memory"
	memDB "github.com/filely/filely/pkg/storage/database/memory"
	"github.com/filely/filely/pkg/storage/database/models"
)

var testUploadsConf = config.Uploads{
	MaxFileSizeBytes:     1024,
	AllowedExpiryMinutes: []int{5, 10, 20, 30, 60},
	SignedURLTTLSeconds:  60,
	CodeAttempts:         10,
	StoreTimeoutSeconds:  5,
}

func testService() (*share.Service, *memDB.MemoryDatabase, *memBlob.Storage) {
	db := memDB.NewDatabase()
	blobs := memBlob.NewStorage()
	svc := share.NewService(testUploadsConf, &storage.Services{
		Database:  db,
		BlobStore: blobs,
	})
	return svc, db, blobs
}

func upload(t *testing.T, svc *share.Service, body string, expiry int, maxDownloads int64) share.UploadResult {
	t.Helper()

	result, err := svc.Upload(context.Background(), share.UploadRequest{
		FileName:      "notes.txt",
		MimeType:      "text/plain",
		SizeBytes:     int64(len(body)),
		Body:          strings.NewReader(body),
		ExpiryMinutes: expiry,
		MaxDownloads:  maxDownloads,
	})
	require.NoError(t, err)
	return result
}

func TestUploadAndRedeem(t *testing.T) {
	svc, _, blobs := testService()

	result := upload(t, svc, "0123456789", 10, 0)

	assert.Len(t, result.Code, 6)
	assert.NotContains(t, result.Code, " ")
	assert.Equal(t, "10 minutes", result.ExpiresIn)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), result.ExpiresAt, time.Minute)
	assert.Equal(t, 1, blobs.Len())

	redemption, err := svc.Redeem(context.Background(), result.Code)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", redemption.FileName)
	assert.NotEmpty(t, redemption.DownloadURL)
}

func TestUploadValidation(t *testing.T) {
	svc, _, blobs := testService()

	t.Run("missing file", func(t *testing.T) {
		_, err := svc.Upload(context.Background(), share.UploadRequest{
			ExpiryMinutes: 10,
		})
		assert.ErrorIs(t, err, share.ErrNoFile)
	})

	t.Run("oversize file", func(t *testing.T) {
		_, err := svc.Upload(context.Background(), share.UploadRequest{
			FileName:      "big.bin",
			SizeBytes:     testUploadsConf.MaxFileSizeBytes + 1,
			Body:          strings.NewReader("x"),
			ExpiryMinutes: 10,
		})
		assert.ErrorIs(t, err, share.ErrTooLarge)
	})

	t.Run("expiry outside the allowed set", func(t *testing.T) {
		_, err := svc.Upload(context.Background(), share.UploadRequest{
			FileName:      "notes.txt",
			SizeBytes:     1,
			Body:          strings.NewReader("x"),
			ExpiryMinutes: 7,
		})
		assert.ErrorIs(t, err, share.ErrInvalidExpiry)
	})

	t.Run("negative download limit", func(t *testing.T) {
		_, err := svc.Upload(context.Background(), share.UploadRequest{
			FileName:      "notes.txt",
			SizeBytes:     1,
			Body:          strings.NewReader("x"),
			ExpiryMinutes: 10,
			MaxDownloads:  -1,
		})
		assert.ErrorIs(t, err, share.ErrInvalidLimit)
	})

	// None of the rejected uploads may have written a blob.
	assert.Equal(t, 0, blobs.Len())
}

func TestUploadEmptyFile(t *testing.T) {
	svc, _, blobs := testService()

	result := upload(t, svc, "", 5, 0)
	assert.Equal(t, 1, blobs.Len())

	redemption, err := svc.Redeem(context.Background(), result.Code)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", redemption.FileName)
}

func TestRedeemUnknownCode(t *testing.T) {
	svc, _, _ := testService()

	_, err := svc.Redeem(context.Background(), "000000")
	assert.ErrorIs(t, err, share.ErrNotFound)
}

func TestRedeemExpired(t *testing.T) {
	svc, db, blobs := testService()

	record := expiredShare(t, db, blobs, "123456")

	_, err := svc.Redeem(context.Background(), record.Code)
	assert.ErrorIs(t, err, share.ErrExpired)
}

func TestRedeemSingleUse(t *testing.T) {
	svc, _, _ := testService()

	result := upload(t, svc, "once", 10, 1)

	_, err := svc.Redeem(context.Background(), result.Code)
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), result.Code)
	assert.ErrorIs(t, err, share.ErrLimitReached)
}

func TestConcurrentRedemptionsNeverOvershoot(t *testing.T) {
	svc, _, _ := testService()

	const limit = 5
	const redeemers = 20

	result := upload(t, svc, "contended", 10, limit)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < redeemers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Redeem(context.Background(), result.Code)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, share.ErrLimitReached)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, succeeded)
}

func TestRedeemDanglingRecord(t *testing.T) {
	svc, db, _ := testService()

	// Record without a blob behind it: the reclaimer's record delete never
	// landed. The redemption must fail as an internal error, not a
	// taxonomy outcome and not a panic.
	record := &models.Share{
		ID:           uuid.NewString(),
		Code:         "654321",
		StorageKey:   "gone/forever.txt",
		OriginalName: "forever.txt",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, db.InsertShare(context.Background(), record))

	_, err := svc.Redeem(context.Background(), record.Code)
	require.Error(t, err)
	assert.NotErrorIs(t, err, share.ErrNotFound)
	assert.NotErrorIs(t, err, share.ErrExpired)
	assert.NotErrorIs(t, err, share.ErrLimitReached)
}

func TestUploadCompensatesOnRecordWriteFailure(t *testing.T) {
	db := &insertFailingDB{MemoryDatabase: memDB.NewDatabase()}
	blobs := memBlob.NewStorage()
	svc := share.NewService(testUploadsConf, &storage.Services{
		Database:  db,
		BlobStore: blobs,
	})

	_, err := svc.Upload(context.Background(), share.UploadRequest{
		FileName:      "doomed.txt",
		MimeType:      "text/plain",
		SizeBytes:     4,
		Body:          strings.NewReader("data"),
		ExpiryMinutes: 10,
	})
	require.Error(t, err)

	// The compensating delete must have removed the freshly written blob.
	assert.Equal(t, 0, blobs.Len())
}

// expiredShare plants an already-expired record with a matching blob.
func expiredShare(t *testing.T, db *memDB.MemoryDatabase, blobs *memBlob.Storage, code string) *models.Share {
	t.Helper()

	record := &models.Share{
		ID:           uuid.NewString(),
		Code:         code,
		StorageKey:   fmt.Sprintf("%s/old.txt", code),
		OriginalName: "old.txt",
		MimeType:     "text/plain",
		SizeBytes:    3,
		CreatedAt:    time.Now().Add(-time.Hour),
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
	require.NoError(t, db.InsertShare(context.Background(), record))
	require.NoError(t, blobs.Upload(context.Background(), record.StorageKey, strings.NewReader("old"), "text/plain"))
	return record
}

type insertFailingDB struct {
	*memDB.MemoryDatabase
}

func (db *insertFailingDB) InsertShare(ctx context.Context, record *models.Share) error {
	return errors.New("record store is down")
}
