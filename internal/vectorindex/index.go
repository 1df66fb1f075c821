// Package vectorindex is a per-user nearest-neighbor index over entry
// embeddings with a position to entry id map.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/raphaelgruber/memcapsule/internal/models"
)

// DefaultMaxK bounds the number of results a single search may request.
const DefaultMaxK = 20

// maxAppendAttempts bounds reloads after another process advanced the index.
const maxAppendAttempts = 3

// Snapshot is an immutable view of one user's index. Vectors[i] is the
// embedding of entry IDs[i]; both slices always have the same length.
type Snapshot struct {
	Dimension int
	Vectors   [][]float32
	IDs       []string
}

// Len returns the number of stored vectors.
func (s *Snapshot) Len() int {
	return len(s.IDs)
}

// Store persists a user's vectors together with their id map.
type Store interface {
	// LoadVectors reports found=false if the user has no index.
	LoadVectors(ctx context.Context, userID string) (snap Snapshot, found bool, err error)

	// AppendVector stores vec and the position→entryID slot in one atomic
	// write. It returns models.ErrConflict if position is not exactly the
	// number of vectors already stored.
	AppendVector(ctx context.Context, userID string, position int, entryID string, vec []float32) error

	// ResetVectors removes the user's index entirely.
	ResetVectors(ctx context.Context, userID string) error
}

// Hit is one search result.
type Hit struct {
	EntryID  string
	Position int
	Distance float64
}

// Index serves per-user vector search from cached snapshots.
// Add calls for one user must be serialized by the caller; searches may run
// concurrently with them and see either the old or the new snapshot.
type Index struct {
	store  Store
	metric Metric
	maxK   int

	mu    sync.RWMutex
	cache map[string]*Snapshot
	loads singleflight.Group
}

// Option configures an Index.
type Option func(*Index)

// WithMetric sets the distance metric. The default is SquaredL2.
func WithMetric(m Metric) Option {
	return func(ix *Index) {
		if m != nil {
			ix.metric = m
		}
	}
}

// WithMaxK sets the upper bound for k in Search.
func WithMaxK(k int) Option {
	return func(ix *Index) {
		if k > 0 {
			ix.maxK = k
		}
	}
}

// New creates an Index over store.
func New(store Store, opts ...Option) *Index {
	ix := &Index{
		store:  store,
		metric: SquaredL2{},
		maxK:   DefaultMaxK,
		cache:  make(map[string]*Snapshot),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Metric returns the configured distance metric.
func (ix *Index) Metric() Metric {
	return ix.metric
}

// MaxK returns the largest k Search accepts.
func (ix *Index) MaxK() int {
	return ix.maxK
}

// Add appends vec at the next free position and maps it to entryID.
// The first vector establishes the user's dimension.
func (ix *Index) Add(ctx context.Context, userID, entryID string, vec []float32) (int, error) {
	if len(vec) == 0 {
		return 0, fmt.Errorf("%w: empty embedding", models.ErrValidation)
	}
	if entryID == "" {
		return 0, fmt.Errorf("%w: empty entry id", models.ErrValidation)
	}

	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		snap, err := ix.snapshot(ctx, userID)
		if err != nil {
			return 0, err
		}
		if snap.Dimension > 0 && len(vec) != snap.Dimension {
			return 0, fmt.Errorf("%w: got %d, index has %d", models.ErrDimensionMismatch, len(vec), snap.Dimension)
		}
		if slices.Contains(snap.IDs, entryID) {
			return 0, fmt.Errorf("%w: entry %s is already indexed", models.ErrConflict, entryID)
		}

		pos := snap.Len()
		stored := slices.Clone(vec)
		err = ix.store.AppendVector(ctx, userID, pos, entryID, stored)
		if errors.Is(err, models.ErrConflict) {
			ix.invalidate(userID)
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("append vector: %w", err)
		}

		ix.publish(userID, &Snapshot{
			Dimension: len(stored),
			Vectors:   append(slices.Clip(snap.Vectors), stored),
			IDs:       append(slices.Clip(snap.IDs), entryID),
		})
		return pos, nil
	}

	return 0, fmt.Errorf("append vector: %w: index kept moving", models.ErrConflict)
}

// Search returns up to k nearest entries to query, closest first. Ties keep
// insertion order. It fails with models.ErrNotFound if the user has no index.
func (ix *Index) Search(ctx context.Context, userID string, query []float32, k int) ([]Hit, error) {
	if k <= 0 || k > ix.maxK {
		return nil, fmt.Errorf("%w: k must be between 1 and %d, got %d", models.ErrValidation, ix.maxK, k)
	}

	snap, err := ix.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snap.Len() == 0 {
		return nil, fmt.Errorf("%w: no index for user %s", models.ErrNotFound, userID)
	}
	if len(query) != snap.Dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", models.ErrDimensionMismatch, len(query), snap.Dimension)
	}

	hits := make([]Hit, snap.Len())
	for i, v := range snap.Vectors {
		hits[i] = Hit{EntryID: snap.IDs[i], Position: i, Distance: ix.metric.Distance(query, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Dimension returns the user's established dimension, or 0 without an index.
func (ix *Index) Dimension(ctx context.Context, userID string) (int, error) {
	snap, err := ix.snapshot(ctx, userID)
	if err != nil {
		return 0, err
	}
	return snap.Dimension, nil
}

// Len returns the number of vectors indexed for the user.
func (ix *Index) Len(ctx context.Context, userID string) (int, error) {
	snap, err := ix.snapshot(ctx, userID)
	if err != nil {
		return 0, err
	}
	return snap.Len(), nil
}

// Reset drops the user's index so it can be rebuilt from the log.
func (ix *Index) Reset(ctx context.Context, userID string) error {
	defer ix.invalidate(userID)
	if err := ix.store.ResetVectors(ctx, userID); err != nil {
		return fmt.Errorf("reset vectors: %w", err)
	}
	return nil
}

func (ix *Index) snapshot(ctx context.Context, userID string) (*Snapshot, error) {
	ix.mu.RLock()
	snap, ok := ix.cache[userID]
	ix.mu.RUnlock()
	if ok {
		return snap, nil
	}

	v, err, _ := ix.loads.Do(userID, func() (any, error) {
		loaded, found, err := ix.store.LoadVectors(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load vectors: %w", err)
		}
		if !found {
			loaded = Snapshot{}
		}
		if len(loaded.Vectors) != len(loaded.IDs) {
			return nil, fmt.Errorf("load vectors: %d vectors but %d ids", len(loaded.Vectors), len(loaded.IDs))
		}
		s := &loaded
		ix.mu.Lock()
		if cur, ok := ix.cache[userID]; ok {
			s = cur
		} else {
			ix.cache[userID] = s
		}
		ix.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (ix *Index) publish(userID string, snap *Snapshot) {
	ix.mu.Lock()
	ix.cache[userID] = snap
	ix.mu.Unlock()
}

func (ix *Index) invalidate(userID string) {
	ix.mu.Lock()
	delete(ix.cache, userID)
	ix.mu.Unlock()
}
