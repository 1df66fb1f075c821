package localdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/memcapsule/internal/entrylog"
	"github.com/raphaelgruber/memcapsule/internal/models"
	"github.com/raphaelgruber/memcapsule/internal/streak"
	"github.com/raphaelgruber/memcapsule/internal/vectorindex"
)

var (
	_ entrylog.Store    = (*DB)(nil)
	_ streak.Store      = (*DB)(nil)
	_ vectorindex.Store = (*DB)(nil)
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func entry(user, id, content string) models.Entry {
	created, _ := entrylog.TimeOf(id)
	return models.Entry{ID: id, UserID: user, Content: content, CreatedAt: created}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestEntryRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	want := entry("u1", "20250101T090000Z", "first")
	require.NoError(t, db.PutEntry(ctx, want))

	got, err := db.GetEntry(ctx, "u1", want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.Content, got.Content)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

	_, err = db.GetEntry(ctx, "u2", want.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPutEntryConflict(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	e := entry("u1", "20250101T090000Z", "first")
	require.NoError(t, db.PutEntry(ctx, e))

	e.Content = "overwrite attempt"
	err := db.PutEntry(ctx, e)
	assert.ErrorIs(t, err, models.ErrConflict)

	got, err := db.GetEntry(ctx, "u1", e.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Content, "entries are immutable")
}

func TestLastEntryIDAndList(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	last, err := db.LastEntryID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, last)

	ids := []string{"20250101T090000Z", "20250101T090000Z-000001", "20250102T080000Z"}
	for _, id := range []string{ids[2], ids[0], ids[1]} {
		require.NoError(t, db.PutEntry(ctx, entry("u1", id, "text "+id)))
	}
	// A user whose id extends u1 must not leak into u1's range.
	require.NoError(t, db.PutEntry(ctx, entry("u10", "20300101T000000Z", "other")))

	last, err = db.LastEntryID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ids[2], last)

	entries, err := db.ListEntries(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, ids[i], e.ID)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, found, err := db.LoadMeta(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found)

	meta := models.UserMeta{
		EntryDates: []string{"2025-01-01", "2025-01-02"},
		Streak:     2,
		Badges:     []string{},
	}
	require.NoError(t, db.SaveMeta(ctx, "u1", meta))
	require.NoError(t, db.SaveMeta(ctx, "u2", models.UserMeta{}))

	got, found, err := db.LoadMeta(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, meta, got)
}

func TestListUsersFollowsTheLog(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	// Metadata alone does not make a user.
	require.NoError(t, db.SaveMeta(ctx, "meta-only", models.UserMeta{}))

	for _, e := range []models.Entry{
		{ID: "20250101T000000Z", UserID: "u1", Content: "a"},
		{ID: "20250102T000000Z", UserID: "u1", Content: "b"},
		{ID: "20250101T000000Z", UserID: "u10", Content: "c"},
		{ID: "20250101T000000Z", UserID: "alice", Content: "d"},
	} {
		e.CreatedAt, _ = time.Parse("20060102T150405Z", e.ID)
		require.NoError(t, db.PutEntry(ctx, e))
	}

	users, err := db.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "u1", "u10"}, users)
}

func TestVectorAppendAndLoad(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, found, err := db.LoadVectors(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, db.AppendVector(ctx, "u1", 0, "e0", []float32{0.5, -1.25, 3}))
	require.NoError(t, db.AppendVector(ctx, "u1", 1, "e1", []float32{0, 0, 0}))

	snap, found, err := db.LoadVectors(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, snap.Dimension)
	assert.Equal(t, []string{"e0", "e1"}, snap.IDs)
	assert.Equal(t, []float32{0.5, -1.25, 3}, snap.Vectors[0])
}

func TestVectorAppendRejectsWrongPosition(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.AppendVector(ctx, "u1", 0, "e0", []float32{1}))
	assert.ErrorIs(t, db.AppendVector(ctx, "u1", 0, "dup", []float32{1}), models.ErrConflict)
	assert.ErrorIs(t, db.AppendVector(ctx, "u1", 5, "gap", []float32{1}), models.ErrConflict)

	snap, _, err := db.LoadVectors(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"e0"}, snap.IDs)
}

func TestConcurrentAppendSamePosition(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	const writers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := db.AppendVector(ctx, "u1", 0, "e", []float32{1}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded, "exactly one writer claims position 0")
	snap, _, err := db.LoadVectors(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, snap.IDs, 1)
}

func TestResetVectors(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.AppendVector(ctx, "u1", 0, "e0", []float32{1, 2}))
	require.NoError(t, db.AppendVector(ctx, "u2", 0, "x0", []float32{1, 2}))
	require.NoError(t, db.ResetVectors(ctx, "u1"))

	_, found, err := db.LoadVectors(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = db.LoadVectors(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, found, "other users are untouched")

	require.NoError(t, db.AppendVector(ctx, "u1", 0, "e0", []float32{1, 2, 3}))
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig(t.TempDir())
	cfg.GCInterval = time.Hour

	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, db.PutEntry(ctx, entry("u1", "20250101T090000Z", "kept")))
	require.NoError(t, db.AppendVector(ctx, "u1", 0, "20250101T090000Z", []float32{1}))
	require.NoError(t, db.Close())

	db, err = Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.GetEntry(ctx, "u1", "20250101T090000Z")
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Content)

	snap, found, err := db.LoadVectors(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"20250101T090000Z"}, snap.IDs)
}

func TestWipeData(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.PutEntry(ctx, entry("u1", "20250101T090000Z", "gone")))
	require.NoError(t, db.SaveMeta(ctx, "u1", models.UserMeta{EntryDates: []string{"2025-01-01"}, Streak: 1}))

	require.NoError(t, db.WipeData(ctx))

	_, err := db.GetEntry(ctx, "u1", "20250101T090000Z")
	assert.ErrorIs(t, err, models.ErrNotFound)
	users, err := db.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestWorksUnderEntryLog(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	log := entrylog.New(db, entrylog.WithClock(func() time.Time { return now }))

	a, err := log.Append(ctx, "u1", "a")
	require.NoError(t, err)
	b, err := log.Append(ctx, "u1", "b")
	require.NoError(t, err)
	assert.Less(t, a.ID, b.ID)

	content, err := log.Read(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", content)
}

func TestVectorCodec(t *testing.T) {
	vec := []float32{1.5, -2, 0, 3.25}
	got, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
