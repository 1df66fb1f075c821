package capsule

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/memcapsule/internal/embedding"
	"github.com/raphaelgruber/memcapsule/internal/metrics"
	"github.com/raphaelgruber/memcapsule/internal/models"
)

// rebuildBatchSize is the number of entries sent per EmbedBatch call.
const rebuildBatchSize = 32

// Rebuild re-derives the user's streak metadata and vector index from the
// entry log and returns the number of entries replayed. Badges already
// earned are kept.
func (s *Store) Rebuild(ctx context.Context, userID string) (n int, err error) {
	ctx, span := tracer.Start(ctx, "capsule.Rebuild", trace.WithAttributes(attribute.String("user_id", userID)))
	start := time.Now()
	defer func() {
		s.metrics.RecordTiming(metrics.OpRebuild, time.Since(start), err)
		endSpan(span, err)
	}()

	if err := models.ValidateUserID(userID); err != nil {
		return 0, err
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	entries, err := s.log.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("%w: no entries for user %s", models.ErrNotFound, userID)
	}

	dates := make([]string, len(entries))
	for i, e := range entries {
		dates[i] = e.Date()
	}
	meta, err := s.tracker.Rebuild(ctx, userID, dates)
	if err != nil {
		return 0, fmt.Errorf("rebuild streak: %w", err)
	}

	if err := s.index.Reset(ctx, userID); err != nil {
		return 0, err
	}

	for lo := 0; lo < len(entries); lo += rebuildBatchSize {
		hi := min(lo+rebuildBatchSize, len(entries))
		batch := entries[lo:hi]

		texts := make([]string, len(batch))
		for i, e := range batch {
			texts[i] = e.Content
		}
		vectors := s.embedBatch(ctx, userID, texts)

		for i, e := range batch {
			if _, err := s.index.Add(ctx, userID, e.ID, vectors[i]); err != nil {
				return lo + i, fmt.Errorf("index entry %s: %w", e.ID, err)
			}
		}
	}

	s.logger.Info("rebuilt derived state", "user_id", userID, "entries", len(entries),
		"distinct_dates", len(meta.EntryDates), "streak", meta.Streak)
	return len(entries), nil
}

// RebuildProgress is called once per user as RebuildAll finishes it.
type RebuildProgress func(userID string, entries int, err error)

// RebuildAll rebuilds every listed user with at most parallelism users in
// flight and returns the total number of entries replayed. The first failure
// cancels the remaining users. onDone may be nil.
func (s *Store) RebuildAll(ctx context.Context, users []string, parallelism int, onDone RebuildProgress) (int, error) {
	if parallelism < 1 {
		parallelism = 1
	}

	var total atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, u := range users {
		g.Go(func() error {
			n, err := s.Rebuild(ctx, u)
			if onDone != nil {
				onDone(u, n, err)
			}
			if err != nil {
				return fmt.Errorf("rebuild %s: %w", u, err)
			}
			total.Add(int64(n))
			return nil
		})
	}

	err := g.Wait()
	return int(total.Load()), err
}

// embedBatch embeds texts in one call. If the call fails every text gets a
// placeholder vector of the embedder's dimension.
func (s *Store) embedBatch(ctx context.Context, userID string, texts []string) [][]float32 {
	ctx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()

	start := time.Now()
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	s.metrics.RecordTiming(metrics.OpEmbedding, time.Since(start), err)
	if err == nil && len(vectors) == len(texts) {
		return vectors
	}

	s.metrics.RecordFallback(metrics.OpEmbedding)
	s.logger.Warn("batch embedding unavailable, using placeholder vectors",
		"user_id", userID, "model", s.embedder.Model(), "count", len(texts), "error", err)

	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = embedding.Vector(s.embedder.Dimension())
	}
	return out
}
