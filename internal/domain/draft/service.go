package draft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/responda/responda/internal/domain/medication"
	"github.com/responda/responda/internal/domain/scores"
	"github.com/responda/responda/internal/platform/apperr"
	"github.com/responda/responda/internal/platform/metrics"
)

// Service contains the draft persistence rules on top of a Store.
type Service struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "draft").Logger(),
		now:    time.Now,
	}
}

// Save persists the raw inputs of d. Derived score fields and positional
// medication keys are dropped; positional rows are imported first.
func (s *Service) Save(ctx context.Context, owner Owner, d *Draft) error {
	if d.FormType == "" {
		return apperr.Validation("form_type is required")
	}

	clean := *d
	snap := d.Snapshot.Clone()
	if legacy := medication.LegacyKeys(snap); len(legacy) > 0 {
		if len(clean.Medications) == 0 {
			clean.Medications = medication.FromSnapshot(snap).SerializeRows()
		}
		snap = snap.Without(legacy...)
	}
	clean.Snapshot = snap.Without(scores.DisplayKeys...)
	clean.SavedAt = s.now().UTC()

	err := s.store.Save(ctx, owner, &clean)
	metrics.DraftSaves.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		if isStorageFull(err) {
			s.logger.Error().Err(err).Str("form_type", d.FormType).Msg("draft storage full")
			return apperr.Wrap(apperr.StorageFull, err, "device storage is full, draft was not saved")
		}
		return fmt.Errorf("save draft: %w", err)
	}
	d.SavedAt = clean.SavedAt
	return nil
}

// Load returns the draft with its scores recomputed from the raw inputs.
func (s *Service) Load(ctx context.Context, owner Owner, formType string) (*View, error) {
	d, err := s.store.Load(ctx, owner, formType)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Wrap(apperr.NotFound, err, "no draft for "+formType)
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	return newView(d), nil
}

// Discard removes the draft of formType, typically after a successful submit.
func (s *Service) Discard(ctx context.Context, owner Owner, formType string) error {
	if err := s.store.Delete(ctx, owner, formType); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// ListStale returns the drafts not saved within ttl, oldest first.
func (s *Service) ListStale(ctx context.Context, ttl time.Duration) ([]Stale, error) {
	list, err := s.store.ListOlderThan(ctx, s.now().Add(-ttl))
	if err != nil {
		return nil, fmt.Errorf("list stale drafts: %w", err)
	}
	return list, nil
}

// Prune deletes drafts not saved within ttl.
func (s *Service) Prune(ctx context.Context, ttl time.Duration) (int64, error) {
	n, err := s.store.DeleteOlderThan(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("prune drafts: %w", err)
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Dur("ttl", ttl).Msg("pruned stale drafts")
	}
	return n, nil
}
