package propertyintake

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Uploaded objects are shared: a session, the draft it saved, sessions
// resumed from that draft and finally the submitted record can all point at
// the same key. An object is only deleted once none of them does.

const (
	blobPrefix    = "wizard/"
	refBatchSize  = 500
	DefaultGrace  = 2 * time.Hour
	DefaultSweep  = 6 * time.Hour
	sweepDeadline = 5 * time.Minute
)

// unreferenced filters keys down to the ones no open session (other than
// except), saved draft or submitted record points at.
func (s *Service) unreferenced(ctx context.Context, keys []string, except *Session) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	live := s.store.ObjectKeys(except)

	seen := make(map[string]struct{}, len(keys))
	candidates := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := live[k]; ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		candidates = append(candidates, k)
	}

	out := make([]string, 0, len(candidates))
	for start := 0; start < len(candidates); start += refBatchSize {
		batch := candidates[start:min(start+refBatchSize, len(candidates))]
		inDrafts, err := s.drafts.ReferencedObjects(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("draft references: %w", err)
		}
		inRecords, err := s.records.ReferencedObjects(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("record references: %w", err)
		}
		for _, k := range batch {
			if !inDrafts[k] && !inRecords[k] {
				out = append(out, k)
			}
		}
	}
	return out, nil
}

// release deletes whichever of keys nothing references anymore. A failed
// lookup keeps every blob; the orphan sweep gets another chance later.
func (s *Service) release(ctx context.Context, area string, keys []string, except *Session) int {
	doomed, err := s.unreferenced(ctx, keys, except)
	if err != nil {
		s.log.Warn(area+": reference lookup failed, keeping blobs", slog.String("error", err.Error()))
		return 0
	}
	if len(doomed) == 0 {
		return 0
	}
	failed := s.uploads.DeleteAll(ctx, doomed)
	if failed > 0 {
		s.log.Warn(area+": blob cleanup incomplete", slog.Int("failed", failed))
	}
	return len(doomed) - failed
}

func (s *Service) releaseBlobs(ctx context.Context, sess *Session) {
	sess.mu.Lock()
	if sess.wiz.Closed() {
		sess.mu.Unlock()
		return
	}
	keys := sess.wiz.State().ObjectKeys()
	sess.mu.Unlock()

	s.release(ctx, "wizard discard", keys, sess)
}

// SweepOrphans deletes wizard blobs written before cutoff that nothing
// references. This is what reclaims the files of drafts that expired.
func (s *Service) SweepOrphans(ctx context.Context, cutoff time.Time) (int, error) {
	objects, err := s.uploads.Objects(ctx, blobPrefix)
	if err != nil {
		return 0, fmt.Errorf("list blobs: %w", err)
	}
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		if obj.LastModified.Before(cutoff) {
			keys = append(keys, obj.Key)
		}
	}

	doomed, err := s.unreferenced(ctx, keys, nil)
	if err != nil {
		return 0, err
	}
	if len(doomed) == 0 {
		return 0, nil
	}
	failed := s.uploads.DeleteAll(ctx, doomed)
	deleted := len(doomed) - failed
	s.log.Info("wizard blob sweep: deleted orphans",
		slog.Int("count", deleted),
		slog.Int("failed", failed),
	)
	return deleted, nil
}

// RunOrphanSweep calls SweepOrphans on every tick until ctx is done. Blobs
// younger than grace are skipped so an upload that is still being attached
// to its session is never touched.
func (s *Service) RunOrphanSweep(ctx context.Context, every, grace time.Duration) {
	if every <= 0 {
		every = DefaultSweep
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, sweepDeadline)
			if _, err := s.SweepOrphans(sweepCtx, s.now().Add(-grace)); err != nil {
				s.log.Warn("wizard blob sweep: failed", slog.String("error", err.Error()))
			}
			cancel()
		}
	}
}
