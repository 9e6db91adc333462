package lifecycle

import (
	"context"
	"fmt"
	"time"

	"broker-backend/internal/application/catalog"
	"broker-backend/internal/application/matching"
	"broker-backend/internal/config"
	"broker-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Manager drives the matching engine over time: the async per-listing
// trigger, the scheduled batch re-scan, and the expiry sweep. Each duty is
// idempotent and safe to re-run; runs share no state beyond the stores.
type Manager struct {
	Catalog  *catalog.Service
	Matching *matching.Service

	rescanSpec string
	sweepSpec  string
	batchLimit int
	runTimeout time.Duration

	scheduler *cron.Cron
}

func NewManager(cat *catalog.Service, match *matching.Service, cfg *config.Config) *Manager {
	return &Manager{
		Catalog:    cat,
		Matching:   match,
		rescanSpec: cfg.RescanSpec,
		sweepSpec:  cfg.SweepSpec,
		batchLimit: cfg.Matching.BatchLimit,
		runTimeout: cfg.Matching.RunTimeout,
		scheduler:  cron.New(),
	}
}

// Start registers the cron entries and starts the scheduler.
func (m *Manager) Start() error {
	if _, err := m.scheduler.AddFunc(m.rescanSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.runTimeout)
		defer cancel()
		if _, _, err := m.RunBatchRescan(ctx); err != nil {
			log.Error().Err(err).Msg("Batch re-scan failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule batch re-scan: %w", err)
	}

	if _, err := m.scheduler.AddFunc(m.sweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.runTimeout)
		defer cancel()
		if _, err := m.RunExpirySweep(ctx); err != nil {
			log.Error().Err(err).Msg("Expiry sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule expiry sweep: %w", err)
	}

	m.scheduler.Start()
	log.Info().
		Str("rescan", m.rescanSpec).
		Str("sweep", m.sweepSpec).
		Msg("Lifecycle scheduler started")
	return nil
}

// Stop halts the scheduler and waits for in-flight jobs to finish.
func (m *Manager) Stop() {
	ctx := m.scheduler.Stop()
	<-ctx.Done()
	log.Info().Msg("Lifecycle scheduler stopped")
}

// TriggerMatch runs the matching pipeline for a freshly created listing in
// the background, off the creation path. The run carries a bounded budget;
// on timeout it is abandoned and logged, and the next batch re-scan
// naturally reattempts.
func (m *Manager) TriggerMatch(listingID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.runTimeout)
		defer cancel()
		if _, err := m.Matching.MatchListing(ctx, listingID); err != nil {
			log.Error().Err(err).Str("listing_id", listingID.String()).Msg("Triggered matching run failed")
		}
	}()
}

// RunBatchRescan re-runs the pipeline for every active demand listing. One
// direction is enough: each run searches the opposite side, so scanning
// demands re-discovers supply listings that appeared after the demand did.
// Per-listing failures are logged and skipped, never fatal to the batch.
func (m *Manager) RunBatchRescan(ctx context.Context) (processed, matched int, err error) {
	demands, err := m.Catalog.ListActive(ctx, domain.DirectionDemand, m.batchLimit)
	if err != nil {
		return 0, 0, fmt.Errorf("batch re-scan: list active demands: %w", err)
	}

	for _, demand := range demands {
		if ctx.Err() != nil {
			log.Warn().Int("processed", processed).Msg("Batch re-scan abandoned on timeout")
			break
		}
		result, err := m.Matching.MatchListing(ctx, demand.ID)
		if err != nil {
			log.Error().Err(err).Str("listing_id", demand.ID.String()).Msg("Batch re-scan skipped listing")
			continue
		}
		processed++
		if result.Persisted > 0 {
			matched++
		}
	}

	log.Info().Int("processed", processed).Int("matched", matched).Msg("Batch re-scan finished")
	return processed, matched, nil
}

// RunExpirySweep closes every active listing past its expiry and returns the
// count for observability.
func (m *Manager) RunExpirySweep(ctx context.Context) (int, error) {
	count, err := m.Catalog.CloseExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("expiry sweep: %w", err)
	}
	log.Info().Int("closed", count).Msg("Expiry sweep finished")
	return count, nil
}
