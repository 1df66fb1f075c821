// Package capsule orchestrates the entry log, streak tracker and vector index
// into the save, flashback and stats operations.
package capsule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/raphaelgruber/memcapsule/internal/embedding"
	"github.com/raphaelgruber/memcapsule/internal/entrylog"
	"github.com/raphaelgruber/memcapsule/internal/metrics"
	"github.com/raphaelgruber/memcapsule/internal/models"
	"github.com/raphaelgruber/memcapsule/internal/streak"
	"github.com/raphaelgruber/memcapsule/internal/vectorindex"
)

// DefaultEmbedTimeout bounds a single call to the embedding service.
const DefaultEmbedTimeout = 10 * time.Second

// DefaultFlashbackK is the number of flashbacks returned when none is requested.
const DefaultFlashbackK = 5

var tracer = otel.Tracer("memcapsule")

// ErrPartialSave is returned together with a populated SaveResult when the
// entry was written to the log but its streak or index update failed.
var ErrPartialSave = errors.New("entry saved but derived state was not updated")

// Store is the per-user journaling core.
type Store struct {
	log      *entrylog.Log
	tracker  *streak.Tracker
	index    *vectorindex.Index
	embedder embedding.Embedder

	logger       *slog.Logger
	metrics      *metrics.Collector
	embedTimeout time.Duration
	locks        *userLocks
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records operation timings in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Store) {
		s.metrics = c
	}
}

// WithEmbedTimeout bounds each embedding call.
func WithEmbedTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.embedTimeout = d
		}
	}
}

// New wires the components into a Store. embedder may be nil, in which case
// every entry gets a placeholder vector.
func New(log *entrylog.Log, tracker *streak.Tracker, index *vectorindex.Index, embedder embedding.Embedder, opts ...Option) *Store {
	s := &Store{
		log:          log,
		tracker:      tracker,
		index:        index,
		embedder:     embedder,
		logger:       slog.Default(),
		embedTimeout: DefaultEmbedTimeout,
		locks:        newUserLocks(),
	}
	if s.embedder == nil {
		s.embedder = embedding.NewZero(0)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxK returns the largest result count Flashback accepts.
func (s *Store) MaxK() int {
	return s.index.MaxK()
}

// SaveEntry appends content to the user's log, records the entry date and
// indexes its embedding, all under the user's write lock.
//
// If the log write fails nothing was stored and only the error is returned.
// If a later step fails the entry is still durable: the result is populated
// and the error wraps ErrPartialSave. Rebuild repairs the derived state.
func (s *Store) SaveEntry(ctx context.Context, userID, content string) (res models.SaveResult, err error) {
	ctx, span := tracer.Start(ctx, "capsule.SaveEntry", trace.WithAttributes(attribute.String("user_id", userID)))
	start := time.Now()
	defer func() {
		s.metrics.RecordTiming(metrics.OpSaveEntry, time.Since(start), err)
		endSpan(span, err)
	}()

	if err := models.ValidateUserID(userID); err != nil {
		return models.SaveResult{}, err
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	entry, err := s.log.Append(ctx, userID, content)
	if err != nil {
		return models.SaveResult{}, fmt.Errorf("append entry: %w", err)
	}
	span.SetAttributes(attribute.String("entry_id", entry.ID))

	res = models.SaveResult{EntryID: entry.ID, Content: entry.Content}
	var errs []error

	streakLen, badge, err := s.tracker.Record(ctx, userID, entry.Date())
	if err != nil {
		s.logger.Error("streak update failed", "user_id", userID, "entry_id", entry.ID, "error", err)
		errs = append(errs, fmt.Errorf("record streak: %w", err))
	} else {
		res.Streak = streakLen
		res.BadgeAwarded = badge
	}

	vec := s.embed(ctx, userID, content, s.fallbackDimension(ctx, userID))
	addStart := time.Now()
	_, err = s.index.Add(ctx, userID, entry.ID, vec)
	s.metrics.RecordTiming(metrics.OpIndexAdd, time.Since(addStart), err)
	if err != nil {
		s.logger.Error("index update failed", "user_id", userID, "entry_id", entry.ID, "error", err)
		errs = append(errs, fmt.Errorf("index entry: %w", err))
	}

	if len(errs) > 0 {
		return res, fmt.Errorf("%w: entry %s: %w", ErrPartialSave, entry.ID, errors.Join(errs...))
	}

	s.logger.Info("entry saved", "user_id", userID, "entry_id", entry.ID, "streak", res.Streak, "badge", res.BadgeAwarded)
	return res, nil
}

// Flashback returns up to k past entries closest to query, closest first.
// Index hits whose entry can no longer be read are left out.
func (s *Store) Flashback(ctx context.Context, userID, query string, k int) (out []models.Flashback, err error) {
	ctx, span := tracer.Start(ctx, "capsule.Flashback", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.Int("k", k),
	))
	start := time.Now()
	defer func() {
		s.metrics.RecordTiming(metrics.OpFlashback, time.Since(start), err)
		endSpan(span, err)
	}()

	if err := models.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", models.ErrValidation)
	}
	if k <= 0 || k > s.index.MaxK() {
		return nil, fmt.Errorf("%w: k must be between 1 and %d, got %d", models.ErrValidation, s.index.MaxK(), k)
	}

	dim, err := s.index.Dimension(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	if dim == 0 {
		return nil, fmt.Errorf("%w: no entries for user %s", models.ErrNotFound, userID)
	}

	vec := s.embed(ctx, userID, query, dim)

	searchStart := time.Now()
	hits, err := s.index.Search(ctx, userID, vec, k)
	s.metrics.RecordTiming(metrics.OpIndexQuery, time.Since(searchStart), err)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	out = make([]models.Flashback, 0, len(hits))
	for _, h := range hits {
		content, err := s.log.Read(ctx, userID, h.EntryID)
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("indexed entry missing from log", "user_id", userID, "entry_id", h.EntryID, "position", h.Position)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read entry %s: %w", h.EntryID, err)
		}
		out = append(out, models.Flashback{EntryID: h.EntryID, Content: content, Score: h.Distance})
	}
	return out, nil
}

// Stats summarizes the user's journaling. Unknown users get zero stats.
func (s *Store) Stats(ctx context.Context, userID string) (stats models.Stats, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordTiming(metrics.OpStats, time.Since(start), err) }()

	if err := models.ValidateUserID(userID); err != nil {
		return models.Stats{}, err
	}
	meta, err := s.tracker.Load(ctx, userID)
	if err != nil {
		return models.Stats{}, err
	}
	return models.StatsFromMeta(meta), nil
}

// Entries returns the user's full log in creation order.
func (s *Store) Entries(ctx context.Context, userID string) ([]models.Entry, error) {
	return s.log.List(ctx, userID)
}

// embed returns the embedding of text, or an all-zero vector of length dim
// when the embedding service fails or times out.
func (s *Store) embed(ctx context.Context, userID, text string, dim int) []float32 {
	ctx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()

	start := time.Now()
	vec, err := s.embedder.Embed(ctx, text)
	s.metrics.RecordTiming(metrics.OpEmbedding, time.Since(start), err)
	if err == nil && len(vec) > 0 {
		return vec
	}

	s.metrics.RecordFallback(metrics.OpEmbedding)
	s.logger.Warn("embedding unavailable, using placeholder vector",
		"user_id", userID, "model", s.embedder.Model(), "dimension", dim, "error", err)
	return embedding.Vector(dim)
}

// fallbackDimension is the user's established index dimension, or the
// embedder's declared one for a user without an index.
func (s *Store) fallbackDimension(ctx context.Context, userID string) int {
	dim, err := s.index.Dimension(ctx, userID)
	if err != nil || dim == 0 {
		return s.embedder.Dimension()
	}
	return dim
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
