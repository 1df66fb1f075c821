package entrylog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/memcapsule/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a map-backed Store for unit tests.
type memStore struct {
	mu      sync.Mutex
	entries map[string]map[string]models.Entry
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]map[string]models.Entry)}
}

func (s *memStore) PutEntry(_ context.Context, e models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	user := s.entries[e.UserID]
	if user == nil {
		user = make(map[string]models.Entry)
		s.entries[e.UserID] = user
	}
	if _, ok := user[e.ID]; ok {
		return models.ErrConflict
	}
	user[e.ID] = e
	return nil
}

func (s *memStore) GetEntry(_ context.Context, userID, entryID string) (models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID][entryID]
	if !ok {
		return models.Entry{}, models.ErrNotFound
	}
	return e, nil
}

func (s *memStore) LastEntryID(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := ""
	for id := range s.entries[userID] {
		if id > last {
			last = id
		}
	}
	return last, nil
}

func (s *memStore) ListEntries(_ context.Context, userID string) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Entry, 0, len(s.entries[userID]))
	for _, e := range s.entries[userID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNextID(t *testing.T) {
	now := time.Date(2025, 6, 18, 15, 43, 12, 0, time.UTC)

	tests := []struct {
		name string
		last string
		want string
	}{
		{"empty log", "", "20250618T154312Z"},
		{"older last", "20250618T154311Z", "20250618T154312Z"},
		{"same second", "20250618T154312Z", "20250618T154312Z-000001"},
		{"same second again", "20250618T154312Z-000001", "20250618T154312Z-000002"},
		{"clock behind", "20250618T154400Z", "20250618T154400Z-000001"},
		{"older suffixed last", "20250618T154311Z-000009", "20250618T154312Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextID(now, tt.last)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.last != "" {
				assert.Greater(t, got, tt.last, "ids must sort after the previous id")
			}
		})
	}
}

func TestNextIDUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	now := time.Date(2025, 1, 2, 3, 0, 0, 0, loc)

	got, err := NextID(now, "")
	require.NoError(t, err)
	assert.Equal(t, "20250101T180000Z", got)
}

func TestNextIDMalformedLast(t *testing.T) {
	_, err := NextID(time.Unix(0, 0), "~~~~~~~~~~~~~~~~~~")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestDateOf(t *testing.T) {
	tests := []struct {
		id      string
		want    string
		wantErr bool
	}{
		{"20250618T154312Z", "2025-06-18", false},
		{"20250101T000000Z-000042", "2025-01-01", false},
		{"2025", "", true},
		{"20251301T000000Z", "", true},
		{"20250618T154312Zjunk", "", true},
		{"20250618T154312Z-abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := DateOf(tt.id)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAppendAndRead(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	log := New(newMemStore(), WithClock(fixedClock(now)))

	entry, err := log.Append(ctx, "u1", "Today was a good day!")
	require.NoError(t, err)
	assert.Equal(t, "20250101T090000Z", entry.ID)
	assert.Equal(t, "2025-01-01", entry.Date())

	content, err := log.Read(ctx, "u1", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Today was a good day!", content)
}

func TestAppendSameSecondProducesUniqueSortedIDs(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	log := New(newMemStore(), WithClock(fixedClock(now)))

	var ids []string
	for i := 0; i < 5; i++ {
		e, err := log.Append(ctx, "u1", fmt.Sprintf("entry %d", i))
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	assert.True(t, sort.StringsAreSorted(ids), "ids %v must be in creation order", ids)
	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestAppendConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	log := New(newMemStore(), WithClock(fixedClock(now)))

	const writers = 4
	ids := make(chan string, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := log.Append(ctx, "u1", fmt.Sprintf("entry %d", i))
			if err == nil {
				ids <- e.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, writers)
}

func TestAppendValidation(t *testing.T) {
	ctx := context.Background()
	log := New(newMemStore())

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := log.Append(ctx, "u1", content)
		assert.ErrorIs(t, err, models.ErrValidation, "content %q", content)
	}

	_, err := log.Append(ctx, "", "text")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAppendStoreFailure(t *testing.T) {
	store := newMemStore()
	store.putErr = errors.New("disk full")
	log := New(store)

	_, err := log.Append(context.Background(), "u1", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestReadMissing(t *testing.T) {
	ctx := context.Background()
	log := New(newMemStore())

	_, err := log.Read(ctx, "u1", "20250101T000000Z")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = log.Read(ctx, "u1", "../../etc/passwd")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListIsPerUser(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	log := New(newMemStore(), WithClock(fixedClock(now)))

	_, err := log.Append(ctx, "u1", "a")
	require.NoError(t, err)
	_, err = log.Append(ctx, "u1", "b")
	require.NoError(t, err)
	_, err = log.Append(ctx, "u2", "c")
	require.NoError(t, err)

	entries, err := log.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Content)
	assert.Equal(t, "b", entries[1].Content)
}
