package reclaim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/filely/filely/pkg/config"
	"github.com/filely/filely/pkg/storage"
	"github.com/filely/filely/pkg/storage/blobstore"
	"github.com/filely/filely/pkg/storage/database"
)

var reclaimedShares = promauto.NewCounter(prometheus.CounterOpts{
	Name: "reclaimed_shares_total",
	Help: "Expired shares removed by the reclaimer",
})

// Reclaimer periodically removes expired shares from both stores. Blobs go
// first: deleting the record first would orphan a blob nothing can ever find
// again, while a record whose blob delete failed simply gets retried on the
// next pass.
type Reclaimer struct {
	db    database.Database
	blobs blobstore.BlobStore

	interval     time.Duration
	batchSize    int
	storeTimeout time.Duration

	// Guards against overlapping sweeps; a sweep that fires while another
	// is still running is skipped, never queued behind it.
	mu sync.Mutex
}

func New(conf config.Reclaimer, services *storage.Services) *Reclaimer {
	if conf.IntervalSeconds <= 0 {
		conf.IntervalSeconds = 3600
	}
	if conf.BatchSize <= 0 {
		conf.BatchSize = 500
	}
	if conf.StoreTimeoutSeconds <= 0 {
		conf.StoreTimeoutSeconds = 30
	}

	return &Reclaimer{
		db:           services.Database,
		blobs:        services.BlobStore,
		interval:     time.Duration(conf.IntervalSeconds) * time.Second,
		batchSize:    conf.BatchSize,
		storeTimeout: time.Duration(conf.StoreTimeoutSeconds) * time.Second,
	}
}

// Sweep removes one batch of expired shares. It is idempotent: with nothing
// expired it does nothing, and a repeat run right after a successful pass is
// a no-op. Returns how many shares were reclaimed.
func (r *Reclaimer) Sweep(ctx context.Context) (int, error) {
	if !r.mu.TryLock() {
		log.Debug().Msg("Sweep already running, skipping")
		return 0, nil
	}
	defer r.mu.Unlock()

	// Every store call gets its own deadline. A hung call would otherwise
	// hold the mutex forever and stall reclamation for the life of the
	// process, since later sweeps skip instead of queueing.
	queryCtx, cancel := r.storeCtx(ctx)
	expired, err := r.db.ExpiredShares(queryCtx, time.Now(), r.batchSize)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("querying expired shares: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(expired))
	ids := make([]string, 0, len(expired))
	for _, share := range expired {
		keys = append(keys, share.StorageKey)
		ids = append(ids, share.ID)
	}

	// Abort before touching any record if the blob delete fails; the
	// surviving records are picked up again on the next pass.
	deleteCtx, cancel := r.storeCtx(ctx)
	err = r.blobs.Delete(deleteCtx, keys)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("deleting expired blobs: %w", err)
	}

	recordCtx, cancel := r.storeCtx(ctx)
	err = r.db.DeleteShares(recordCtx, ids)
	cancel()
	if err != nil {
		// Blobs are gone but the records remain. Redemptions against
		// them will fail at the signing step until a later pass deletes
		// the records.
		log.Warn().Err(err).Int("records", len(ids)).Msg("Blob delete succeeded but record delete failed, records are dangling")
		return 0, fmt.Errorf("deleting expired records: %w", err)
	}

	reclaimedShares.Add(float64(len(expired)))
	return len(expired), nil
}

func (r *Reclaimer) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.storeTimeout)
}

// Run fires Sweep on a fixed interval until the context is cancelled. A single
// goroutine consumes the ticker, so sweeps never overlap from here; the mutex
// in Sweep covers concurrent manual invocations.
func (r *Reclaimer) Run(ctx context.Context) {
	log.Debug().Dur("interval", r.interval).Msg("Starting reclaimer")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Reclaimer stopped")
			return
		case <-ticker.C:
			n, err := r.Sweep(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Reclamation sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int("reclaimed", n).Msg("Removed expired shares")
			}
		}
	}
}
