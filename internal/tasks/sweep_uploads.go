package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/libreria/internal/storage"
)

// PayloadReferencer lists the payload paths still referenced by records.
type PayloadReferencer interface {
	PayloadReferences(ctx context.Context) (map[string]struct{}, error)
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Scanned int
	Removed int
	Failed  int
}

// Sweeper removes payload files that no record points to. Ingestion writes
// the file before the record, so files younger than the grace period are
// left alone.
type Sweeper struct {
	payloads  storage.Client
	refs      PayloadReferencer
	grace     time.Duration
	now       func() time.Time
	onRemoved func(n int)
}

func NewSweeper(payloads storage.Client, refs PayloadReferencer, grace time.Duration) *Sweeper {
	return &Sweeper{
		payloads: payloads,
		refs:     refs,
		grace:    grace,
		now:      time.Now,
	}
}

// OnRemoved registers a callback receiving the number of files removed by
// each run.
func (s *Sweeper) OnRemoved(fn func(n int)) *Sweeper {
	s.onRemoved = fn
	return s
}

func (s *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	files, err := s.payloads.List(ctx)
	if err != nil {
		return result, fmt.Errorf("list payloads: %w", err)
	}
	result.Scanned = len(files)

	// References are read after listing: a file listed here was written
	// before this query, so its record (if any) is visible to it.
	refs, err := s.refs.PayloadReferences(ctx)
	if err != nil {
		return result, err
	}

	// Records may name a file with a directory prefix; match on the name the
	// store actually serves them from.
	referenced := make(map[string]struct{}, len(refs))
	for ref := range refs {
		if name, err := storage.StoredName(ref); err == nil {
			referenced[name] = struct{}{}
		}
	}

	cutoff := s.now().Add(-s.grace)
	orphans := storage.FilterFiles(files, func(f storage.FileInfo) bool {
		_, ok := referenced[f.Name]
		return !ok && f.ModifiedAt.Before(cutoff)
	})

	for _, f := range orphans {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.payloads.Delete(ctx, f.Path); err != nil {
			log.Printf("[SWEEP] Failed to remove %s: %v", f.Path, err)
			result.Failed++
			continue
		}
		result.Removed++
	}

	if s.onRemoved != nil && result.Removed > 0 {
		s.onRemoved(result.Removed)
	}
	log.Printf("[SWEEP] Scanned %d payloads, removed %d orphans (%d failed)", result.Scanned, result.Removed, result.Failed)
	return result, nil
}

// SweepOrphanUploadsTask runs one Sweeper pass.
type SweepOrphanUploadsTask struct{}

func (t SweepOrphanUploadsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "sweep_orphan_uploads",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     10 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// SweepOrphanUploadsProcessor creates a processor function for SweepOrphanUploadsTask.
func SweepOrphanUploadsProcessor(sweeper *Sweeper) backlite.QueueProcessor[SweepOrphanUploadsTask] {
	return func(ctx context.Context, task SweepOrphanUploadsTask) error {
		if sweeper == nil {
			return fmt.Errorf("payload sweeper not configured")
		}
		if _, err := sweeper.Run(ctx); err != nil {
			return fmt.Errorf("sweep orphan uploads: %w", err)
		}
		return nil
	}
}

// NewSweepOrphanUploadsQueue creates a backlite queue for sweep tasks.
func NewSweepOrphanUploadsQueue(sweeper *Sweeper) backlite.Queue {
	return backlite.NewQueue(SweepOrphanUploadsProcessor(sweeper))
}
