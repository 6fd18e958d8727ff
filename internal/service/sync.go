package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/candle-clicker/internal/apperror"
	"github.com/sakif/candle-clicker/internal/metrics"
	"github.com/sakif/candle-clicker/internal/model"
	"github.com/sakif/candle-clicker/internal/repository"
)

// SyncService moves progress between the game client and the store: the
// live progress slot (overwritten on every push) and the publication feed
// (appended to on every publish).
//
// Payloads are stored exactly as sent. The typed view is only decoded for
// logging; it never changes what is persisted.
type SyncService struct {
	repo    repository.AccountRepository
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewSyncService creates a SyncService.
func NewSyncService(repo repository.AccountRepository, m *metrics.Metrics, logger *slog.Logger) *SyncService {
	return &SyncService{
		repo:    repo,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// PushProgress replaces the account's live progress with raw.
// raw must be a JSON object; an empty body counts as {}.
func (s *SyncService) PushProgress(ctx context.Context, accountID string, raw []byte) error {
	raw = emptyAsObject(raw)
	if !model.IsProgressObject(raw) {
		return apperror.ValidationFailed("progress", "progress must be a JSON object")
	}

	if err := s.repo.SetLiveProgress(ctx, accountID, model.RawProgress(raw)); err != nil {
		return fmt.Errorf("saving live progress: %w", err)
	}

	s.metrics.ProgressSynced()
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		rec := model.DecodeProgress(raw)
		s.logger.Debug("live progress saved",
			slog.String("id", accountID),
			slog.Int64("upgradeLevel", rec.UpgradeLevel),
			slog.String("fireType", rec.CurrentFireType),
		)
	}
	return nil
}

// PullProgress returns the live progress, or an empty object when there is
// none. An unknown account id also yields the empty object.
func (s *SyncService) PullProgress(ctx context.Context, accountID string) (model.RawProgress, error) {
	progress, ok, err := s.repo.GetLiveProgress(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("loading live progress: %w", err)
	}
	if !ok {
		return model.EmptyProgress, nil
	}
	return progress, nil
}

// Publish appends raw, stamped with the current time, to the account's feed.
// Live progress is not touched. An empty body publishes {}.
func (s *SyncService) Publish(ctx context.Context, accountID string, raw []byte) error {
	raw = emptyAsObject(raw)
	if !model.IsProgressObject(raw) {
		return apperror.ValidationFailed("progress", "progress must be a JSON object")
	}

	at := s.now().UTC()
	if err := s.repo.AppendPublication(ctx, accountID, model.RawProgress(raw), at); err != nil {
		s.logger.Error("failed to publish progress",
			slog.String("id", accountID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publishing progress: %w", err)
	}

	s.metrics.ProgressPublished()
	s.logger.Info("progress published", slog.String("id", accountID))
	return nil
}

// emptyAsObject maps a blank body to {}. The game client sends no body when
// there is nothing to record yet.
func emptyAsObject(raw []byte) []byte {
	if len(bytes.TrimSpace(raw)) == 0 {
		return model.EmptyProgress
	}
	return raw
}
