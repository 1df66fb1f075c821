package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/memcapsule/internal/models"
	"github.com/raphaelgruber/memcapsule/internal/vectorindex"
)

type entryRow struct {
	UserID    string    `json:"user_id"`
	EntryID   string    `json:"entry_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (r entryRow) entry() models.Entry {
	return models.Entry{ID: r.EntryID, UserID: r.UserID, Content: r.Content, CreatedAt: r.CreatedAt.UTC()}
}

type userRow struct {
	UserID string `json:"user_id"`
}

type metaRow struct {
	UserID     string   `json:"user_id"`
	EntryDates []string `json:"entry_dates"`
	Streak     int      `json:"streak"`
	Badges     []string `json:"badges"`
}

type vectorRow struct {
	Position  int       `json:"position"`
	EntryID   string    `json:"entry_id"`
	Embedding []float32 `json:"embedding"`
}

func recordKey(userID, suffix string) string {
	return userID + "/" + suffix
}

// firstResult extracts the rows of the first statement.
func firstResult[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil || len(*results) == 0 {
		return nil
	}
	return (*results)[0].Result
}

// PutEntry creates the entry record. It fails with models.ErrConflict if the
// id is already taken for the user.
func (c *Client) PutEntry(ctx context.Context, entry models.Entry) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("journal_entry", $key) CONTENT {
			user_id: $user,
			entry_id: $id,
			content: $content,
			created_at: $created
		}
	`, map[string]any{
		"key":     recordKey(entry.UserID, entry.ID),
		"user":    entry.UserID,
		"id":      entry.ID,
		"content": entry.Content,
		"created": entry.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("create entry: %w", wrapQueryError(err))
	}
	return nil
}

// GetEntry returns models.ErrNotFound if the entry does not exist.
func (c *Client) GetEntry(ctx context.Context, userID, entryID string) (models.Entry, error) {
	results, err := surrealdb.Query[[]entryRow](ctx, c.db, `
		SELECT user_id, entry_id, content, created_at
		FROM type::record("journal_entry", $key)
	`, map[string]any{"key": recordKey(userID, entryID)})
	if err != nil {
		return models.Entry{}, fmt.Errorf("get entry: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return models.Entry{}, models.ErrNotFound
	}
	return rows[0].entry(), nil
}

// LastEntryID returns the greatest entry id of the user, or "" if none.
func (c *Client) LastEntryID(ctx context.Context, userID string) (string, error) {
	results, err := surrealdb.Query[[]entryRow](ctx, c.db, `
		SELECT entry_id FROM journal_entry
		WHERE user_id = $user
		ORDER BY entry_id DESC
		LIMIT 1
	`, map[string]any{"user": userID})
	if err != nil {
		return "", fmt.Errorf("last entry id: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].EntryID, nil
}

// ListEntries returns the user's entries ordered by id.
func (c *Client) ListEntries(ctx context.Context, userID string) ([]models.Entry, error) {
	results, err := surrealdb.Query[[]entryRow](ctx, c.db, `
		SELECT user_id, entry_id, content, created_at FROM journal_entry
		WHERE user_id = $user
		ORDER BY entry_id ASC
	`, map[string]any{"user": userID})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	entries := make([]models.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}

// ListUsers returns every user id with at least one log entry, sorted.
func (c *Client) ListUsers(ctx context.Context) ([]string, error) {
	results, err := surrealdb.Query[[]userRow](ctx, c.db, `
		SELECT user_id FROM journal_entry GROUP BY user_id ORDER BY user_id ASC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	users := make([]string, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.UserID)
	}
	return users, nil
}

// LoadMeta reads the user's streak metadata.
func (c *Client) LoadMeta(ctx context.Context, userID string) (models.UserMeta, bool, error) {
	results, err := surrealdb.Query[[]metaRow](ctx, c.db, `
		SELECT user_id, entry_dates, streak, badges
		FROM type::record("user_meta", $user)
	`, map[string]any{"user": userID})
	if err != nil {
		return models.UserMeta{}, false, fmt.Errorf("load meta: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return models.UserMeta{}, false, nil
	}
	r := rows[0]
	meta := models.UserMeta{EntryDates: r.EntryDates, Streak: r.Streak, Badges: r.Badges}
	if meta.EntryDates == nil {
		meta.EntryDates = []string{}
	}
	if meta.Badges == nil {
		meta.Badges = []string{}
	}
	return meta, true, nil
}

// SaveMeta replaces the user's streak metadata.
func (c *Client) SaveMeta(ctx context.Context, userID string, meta models.UserMeta) error {
	dates, badges := meta.EntryDates, meta.Badges
	if dates == nil {
		dates = []string{}
	}
	if badges == nil {
		badges = []string{}
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("user_meta", $user) CONTENT {
			user_id: $user,
			entry_dates: $dates,
			streak: $streak,
			badges: $badges
		}
	`, map[string]any{
		"user":   userID,
		"dates":  dates,
		"streak": meta.Streak,
		"badges": badges,
	})
	if err != nil {
		return fmt.Errorf("save meta: %w", wrapQueryError(err))
	}
	return nil
}

// LoadVectors reads the user's index ordered by position.
func (c *Client) LoadVectors(ctx context.Context, userID string) (vectorindex.Snapshot, bool, error) {
	results, err := surrealdb.Query[[]vectorRow](ctx, c.db, `
		SELECT position, entry_id, embedding FROM entry_vector
		WHERE user_id = $user
		ORDER BY position ASC
	`, map[string]any{"user": userID})
	if err != nil {
		return vectorindex.Snapshot{}, false, fmt.Errorf("load vectors: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return vectorindex.Snapshot{}, false, nil
	}

	snap := vectorindex.Snapshot{
		Dimension: len(rows[0].Embedding),
		Vectors:   make([][]float32, 0, len(rows)),
		IDs:       make([]string, 0, len(rows)),
	}
	for i, r := range rows {
		if r.Position != i {
			return vectorindex.Snapshot{}, false, fmt.Errorf("load vectors: position %d missing for user %s", i, userID)
		}
		snap.Vectors = append(snap.Vectors, r.Embedding)
		snap.IDs = append(snap.IDs, r.EntryID)
	}
	return snap, true, nil
}

// AppendVector creates the vector record for position inside a transaction
// that first checks position equals the user's current vector count.
func (c *Client) AppendVector(ctx context.Context, userID string, position int, entryID string, vec []float32) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		BEGIN TRANSACTION;
		LET $count = count(SELECT position FROM entry_vector WHERE user_id = $user);
		IF $count != $position {
			THROW "position conflict"
		};
		CREATE type::record("entry_vector", $key) CONTENT {
			user_id: $user,
			position: $position,
			entry_id: $entry_id,
			embedding: $embedding
		};
		COMMIT TRANSACTION;
	`, map[string]any{
		"key":       recordKey(userID, fmt.Sprintf("%010d", position)),
		"user":      userID,
		"position":  position,
		"entry_id":  entryID,
		"embedding": vec,
	})
	if err != nil {
		return fmt.Errorf("append vector: %w", wrapQueryError(err))
	}
	return nil
}

// ResetVectors deletes every vector of the user.
func (c *Client) ResetVectors(ctx context.Context, userID string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		DELETE entry_vector WHERE user_id = $user
	`, map[string]any{"user": userID})
	if err != nil {
		return fmt.Errorf("reset vectors: %w", wrapQueryError(err))
	}
	return nil
}
