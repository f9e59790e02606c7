package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/EagleChen/mapmutex"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/filely/filely/pkg/config"
	"github.com/filely/filely/pkg/storage"
	"github.com/filely/filely/pkg/storage/blobstore"
	"github.com/filely/filely/pkg/storage/database"
	"github.com/filely/filely/pkg/storage/database/models"
)

// How many times a redemption re-reads and retries its conditional count
// update before giving up. Conflicts only happen when redeemers race on the
// same code, so a couple of retries is plenty.
const redeemAttempts = 3

type UploadRequest struct {
	FileName      string
	MimeType      string
	SizeBytes     int64
	Body          io.Reader
	ExpiryMinutes int

	// MaxDownloads of 0 means unlimited. 1 makes the share single-use.
	MaxDownloads int64
}

type UploadResult struct {
	Code      string
	ExpiresIn string
	ExpiresAt time.Time
}

type Redemption struct {
	FileName    string
	DownloadURL string
}

// Service owns the share lifecycle: creating shares on upload and turning
// codes into signed download URLs on redemption. All correctness-critical
// mutations go through the database's conditional operations, so multiple
// server instances can run this service against the same stores.
type Service struct {
	db    database.Database
	blobs blobstore.BlobStore
	codes *CodeGenerator

	// Per-code lock keeping concurrent redeemers on one instance from
	// burning conditional-update retries against each other. Not a
	// correctness mechanism; the database update is.
	locks *mapmutex.Mutex

	maxFileSize   int64
	allowedExpiry map[int]bool
	signTTL       time.Duration
	storeTimeout  time.Duration
	codeAttempts  int
}

func NewService(conf config.Uploads, services *storage.Services) *Service {
	allowed := make(map[int]bool, len(conf.AllowedExpiryMinutes))
	for _, minutes := range conf.AllowedExpiryMinutes {
		allowed[minutes] = true
	}

	if conf.MaxFileSizeBytes <= 0 {
		conf.MaxFileSizeBytes = 50 * 1024 * 1024
	}
	if conf.SignedURLTTLSeconds <= 0 {
		conf.SignedURLTTLSeconds = 60
	}
	if conf.StoreTimeoutSeconds <= 0 {
		conf.StoreTimeoutSeconds = 10
	}

	return &Service{
		db:            services.Database,
		blobs:         services.BlobStore,
		codes:         NewCodeGenerator(services.Database, conf.CodeAttempts),
		locks:         mapmutex.NewMapMutex(),
		maxFileSize:   conf.MaxFileSizeBytes,
		allowedExpiry: allowed,
		signTTL:       time.Duration(conf.SignedURLTTLSeconds) * time.Second,
		storeTimeout:  time.Duration(conf.StoreTimeoutSeconds) * time.Second,
		codeAttempts:  conf.CodeAttempts,
	}
}

// MaxFileSize returns the configured upload size cap in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.maxFileSize
}

// Upload validates the request, writes the blob, then writes the metadata
// record. The blob lands first so a record never points at a missing object.
// If the record write ultimately fails, the blob is deleted again rather than
// left for the reclaimer to never find.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if req.Body == nil || req.FileName == "" {
		return UploadResult{}, ErrNoFile
	}
	// Zero-byte files are legitimate uploads; only a negative size is
	// nonsense.
	if req.SizeBytes < 0 {
		return UploadResult{}, ErrNoFile
	}
	if req.SizeBytes > s.maxFileSize {
		return UploadResult{}, fmt.Errorf("%w: %s is over the %s limit", ErrTooLarge,
			humanize.Bytes(uint64(req.SizeBytes)), humanize.Bytes(uint64(s.maxFileSize)))
	}
	if !s.allowedExpiry[req.ExpiryMinutes] {
		return UploadResult{}, ErrInvalidExpiry
	}
	if req.MaxDownloads < 0 {
		return UploadResult{}, ErrInvalidLimit
	}

	id := uuid.NewString()
	storageKey := id + "/" + filepath.Base(req.FileName)
	now := time.Now()
	expiresAt := now.Add(time.Duration(req.ExpiryMinutes) * time.Minute)

	uploadCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.blobs.Upload(uploadCtx, storageKey, req.Body, req.MimeType); err != nil {
		return UploadResult{}, fmt.Errorf("storing blob: %w", err)
	}

	record := &models.Share{
		ID:             id,
		Code:           "",
		StorageKey:     storageKey,
		OriginalName:   filepath.Base(req.FileName),
		MimeType:       req.MimeType,
		SizeBytes:      req.SizeBytes,
		CreatedAt:      now,
		ExpiresAt:      expiresAt,
		MaxRedemptions: req.MaxDownloads,
	}

	if err := s.insertWithFreshCode(ctx, record); err != nil {
		s.deleteOrphan(storageKey)
		return UploadResult{}, err
	}

	countCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.db.IncrementTotalUploads(countCtx); err != nil {
		log.Warn().Err(err).Msg("Unable to bump upload counter")
	}

	log.Info().
		Str("share_id", id).
		Str("file", record.OriginalName).
		Str("size", humanize.Bytes(uint64(req.SizeBytes))).
		Int("expiry_minutes", req.ExpiryMinutes).
		Msg("Stored new share")

	return UploadResult{
		Code:      record.Code,
		ExpiresIn: fmt.Sprintf("%d minutes", req.ExpiryMinutes),
		ExpiresAt: expiresAt,
	}, nil
}

// insertWithFreshCode allocates a code and inserts the record, drawing a new
// code whenever the insert loses the double-issuance race to another live
// share with the same code.
func (s *Service) insertWithFreshCode(ctx context.Context, record *models.Share) error {
	for attempt := 0; attempt < s.codeAttemptsOrDefault(); attempt++ {
		genCtx, cancel := s.storeCtx(ctx)
		code, err := s.codes.Generate(genCtx)
		cancel()
		if err != nil {
			return err
		}
		record.Code = code

		insertCtx, cancel := s.storeCtx(ctx)
		err = s.db.InsertShare(insertCtx, record)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, models.ErrCodeTaken) {
			log.Debug().Str("code", code).Msg("Code taken at insert, redrawing")
			continue
		}
		return fmt.Errorf("storing share record: %w", err)
	}

	return ErrCodeSpaceExhausted
}

func (s *Service) codeAttemptsOrDefault() int {
	if s.codeAttempts <= 0 {
		return 10
	}
	return s.codeAttempts
}

// deleteOrphan compensates for a record write that never landed after the blob
// did. Best effort with its own deadline; a failure here only leaks a blob
// whose share never existed, which is logged loudly.
func (s *Service) deleteOrphan(storageKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
	defer cancel()

	if err := s.blobs.Delete(ctx, []string{storageKey}); err != nil {
		log.Error().Err(err).Str("key", storageKey).Msg("Unable to delete orphaned blob after failed record write")
	}
}

// Redeem turns a code into a short-lived signed URL. The URL is produced
// before the count increment so a sign failure never inflates the count; the
// increment is conditional so concurrent redeemers cannot overshoot the limit.
func (s *Service) Redeem(ctx context.Context, code string) (Redemption, error) {
	lookupCtx, cancel := s.storeCtx(ctx)
	record, err := s.db.GetShareByCode(lookupCtx, code)
	cancel()
	if errors.Is(err, models.ErrNotFound) {
		return Redemption{}, ErrNotFound
	}
	if err != nil {
		return Redemption{}, fmt.Errorf("looking up share: %w", err)
	}

	if !record.Live(time.Now()) {
		return Redemption{}, ErrExpired
	}
	if record.LimitReached() {
		return Redemption{}, ErrLimitReached
	}

	signCtx, cancel := s.storeCtx(ctx)
	url, err := s.blobs.SignedURL(signCtx, record.StorageKey, s.signTTL)
	cancel()
	if err != nil {
		// Record without a blob: the reclaimer deleted the blob but its
		// record delete never landed. Integrity warning, not a crash.
		log.Warn().Err(err).
			Str("share_id", record.ID).
			Str("key", record.StorageKey).
			Msg("Share record references an unavailable blob")
		return Redemption{}, fmt.Errorf("signing download url: %w", err)
	}

	if err := s.recordRedemption(ctx, record); err != nil {
		return Redemption{}, err
	}

	return Redemption{
		FileName:    record.OriginalName,
		DownloadURL: url,
	}, nil
}

// recordRedemption performs the conditional count increment, re-reading and
// re-checking the limit whenever the update loses a race.
func (s *Service) recordRedemption(ctx context.Context, record models.Share) error {
	if locked := s.locks.TryLock(record.ID); locked {
		defer s.locks.Unlock(record.ID)
	}

	expected := record.RedemptionCount
	for attempt := 0; attempt < redeemAttempts; attempt++ {
		incrCtx, cancel := s.storeCtx(ctx)
		err := s.db.IncrementRedemptions(incrCtx, record.ID, expected)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, models.ErrNotFound) {
			// Swept mid-flight; the redeemer lost the race to expiry.
			return ErrNotFound
		}
		if !errors.Is(err, models.ErrConflict) {
			return fmt.Errorf("recording redemption: %w", err)
		}

		readCtx, cancel := s.storeCtx(ctx)
		fresh, err := s.db.GetShareByCode(readCtx, record.Code)
		cancel()
		if errors.Is(err, models.ErrNotFound) || (err == nil && fresh.ID != record.ID) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("re-reading share: %w", err)
		}
		if fresh.LimitReached() {
			return ErrLimitReached
		}
		expected = fresh.RedemptionCount
	}

	return fmt.Errorf("recording redemption: %w", models.ErrConflict)
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}
