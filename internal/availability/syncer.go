package availability

import (
	"context"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
)

// Syncer applies recorded source changes to the index.
type Syncer struct {
	index  Index
	logger *zerolog.Logger
}

func NewSyncer(index Index, logger *zerolog.Logger) *Syncer {
	return &Syncer{index: index, logger: logger}
}

// Apply is safe to call more than once for the same change.
func (s *Syncer) Apply(ctx context.Context, change models.ChangeEvent) error {
	mutations, err := PlanChange(change)
	if err != nil {
		return err
	}
	if err := ApplyMutations(ctx, s.index, mutations); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Debug().
			Str("collection", change.Collection).
			Str("document_id", change.DocumentID).
			Int("mutations", len(mutations)).
			Msg("index change applied")
	}
	return nil
}

// SyncGate keeps the change-applying worker idle while fn runs.
type SyncGate interface {
	Exclusive(ctx context.Context, fn func(ctx context.Context) error) error
}

// Resyncer rebuilds the index from the authoritative store in batches.
type Resyncer struct {
	source    domain.SourceLister
	index     Index
	gate      SyncGate
	batchSize int
	now       func() time.Time
	logger    *zerolog.Logger
}

func NewResyncer(source domain.SourceLister, index Index, batchSize int, logger *zerolog.Logger) *Resyncer {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Resyncer{source: source, index: index, batchSize: batchSize, now: time.Now, logger: logger}
}

// WithGate pauses the sync worker for the duration of every resync. Changes
// committed after the listing stay queued and are applied on top of the
// rebuilt index, so a listed snapshot never overwrites a newer change.
func (r *Resyncer) WithGate(gate SyncGate) *Resyncer {
	r.gate = gate
	return r
}

// Resync upserts a slot for every live appointment and active hold, then
// deletes slots with no source. Slots created after the resync started are
// kept: their source may be newer than the listing.
func (r *Resyncer) Resync(ctx context.Context) (models.ResyncResult, error) {
	if r.gate == nil {
		return r.resync(ctx)
	}
	var result models.ResyncResult
	err := r.gate.Exclusive(ctx, func(ctx context.Context) error {
		var err error
		result, err = r.resync(ctx)
		return err
	})
	return result, err
}

func (r *Resyncer) resync(ctx context.Context) (models.ResyncResult, error) {
	var result models.ResyncResult
	startedAt := r.now()
	seen := make(map[string]bool)

	after := ""
	for {
		page, err := r.source.ListLiveAppointments(ctx, after, r.batchSize)
		if err != nil {
			return result, err
		}
		for _, a := range page {
			if err := r.apply(ctx, PlanAppointment(nil, a), seen); err != nil {
				return result, err
			}
			result.Upserted++
		}
		if len(page) < r.batchSize {
			break
		}
		after = page[len(page)-1].ID
	}

	after = ""
	for {
		page, err := r.source.ListActiveHolds(ctx, startedAt, after, r.batchSize)
		if err != nil {
			return result, err
		}
		for _, h := range page {
			if err := r.apply(ctx, PlanHold(nil, h), seen); err != nil {
				return result, err
			}
			result.Upserted++
		}
		if len(page) < r.batchSize {
			break
		}
		after = page[len(page)-1].ID
	}

	ids, err := r.index.IDs(ctx)
	if err != nil {
		return result, err
	}
	cutoff := startedAt.Truncate(time.Second)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		slot, err := r.index.Get(ctx, id)
		if err != nil {
			return result, err
		}
		if slot != nil && !slot.CreatedAt.Before(cutoff) {
			continue
		}
		deleted, err := r.index.Delete(ctx, id)
		if err != nil {
			return result, err
		}
		if deleted {
			result.Deleted++
		}
	}

	if r.logger != nil {
		r.logger.Info().
			Int("upserted", result.Upserted).
			Int("deleted", result.Deleted).
			Dur("took", time.Since(startedAt)).
			Msg("availability index resynced")
	}
	return result, nil
}

func (r *Resyncer) apply(ctx context.Context, mutations []Mutation, seen map[string]bool) error {
	if err := ApplyMutations(ctx, r.index, mutations); err != nil {
		return err
	}
	for _, m := range mutations {
		if m.Kind == MutationUpsert {
			seen[m.ID] = true
		}
	}
	return nil
}
