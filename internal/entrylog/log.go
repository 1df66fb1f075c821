// Package entrylog is the append-only, per-user store of journal entries.
package entrylog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/memcapsule/internal/models"
)

// maxAppendAttempts bounds retries when a concurrent writer takes the
// generated id first.
const maxAppendAttempts = 8

// Store persists entries keyed by (user id, entry id).
type Store interface {
	// PutEntry writes a new entry. It must return models.ErrConflict if the
	// id already exists for the user.
	PutEntry(ctx context.Context, entry models.Entry) error

	// GetEntry returns models.ErrNotFound if the id does not exist.
	GetEntry(ctx context.Context, userID, entryID string) (models.Entry, error)

	// LastEntryID returns the greatest entry id of the user, or "" if none.
	LastEntryID(ctx context.Context, userID string) (string, error)

	// ListEntries returns all entries of the user ordered by id.
	ListEntries(ctx context.Context, userID string) ([]models.Entry, error)
}

// Log is the append-only entry log.
type Log struct {
	store Store
	now   func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source used for id generation.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// New creates a Log over store.
func New(store Store, opts ...Option) *Log {
	l := &Log{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append durably persists content under a newly generated entry id.
// Content that is empty after trimming is rejected with models.ErrValidation.
func (l *Log) Append(ctx context.Context, userID, content string) (models.Entry, error) {
	if err := models.ValidateUserID(userID); err != nil {
		return models.Entry{}, err
	}
	if strings.TrimSpace(content) == "" {
		return models.Entry{}, fmt.Errorf("%w: entry content is empty", models.ErrValidation)
	}

	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		last, err := l.store.LastEntryID(ctx, userID)
		if err != nil {
			return models.Entry{}, fmt.Errorf("last entry id: %w", err)
		}

		id, err := NextID(l.now(), last)
		if err != nil {
			return models.Entry{}, fmt.Errorf("next entry id: %w", err)
		}
		created, err := TimeOf(id)
		if err != nil {
			return models.Entry{}, err
		}

		entry := models.Entry{
			ID:        id,
			UserID:    userID,
			Content:   content,
			CreatedAt: created,
		}
		err = l.store.PutEntry(ctx, entry)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, models.ErrConflict) {
			return models.Entry{}, fmt.Errorf("put entry: %w", err)
		}
	}

	return models.Entry{}, fmt.Errorf("put entry: %w: no free id after %d attempts", models.ErrConflict, maxAppendAttempts)
}

// Read returns the content of an entry.
func (l *Log) Read(ctx context.Context, userID, entryID string) (string, error) {
	entry, err := l.Get(ctx, userID, entryID)
	if err != nil {
		return "", err
	}
	return entry.Content, nil
}

// Get returns the full entry record.
func (l *Log) Get(ctx context.Context, userID, entryID string) (models.Entry, error) {
	if err := models.ValidateUserID(userID); err != nil {
		return models.Entry{}, err
	}
	if !ValidID(entryID) {
		return models.Entry{}, fmt.Errorf("%w: entry %q", models.ErrNotFound, entryID)
	}
	entry, err := l.store.GetEntry(ctx, userID, entryID)
	if err != nil {
		return models.Entry{}, fmt.Errorf("get entry %s: %w", entryID, err)
	}
	return entry, nil
}

// List returns every entry of the user in creation order.
func (l *Log) List(ctx context.Context, userID string) ([]models.Entry, error) {
	if err := models.ValidateUserID(userID); err != nil {
		return nil, err
	}
	entries, err := l.store.ListEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}
