package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/memcapsule/internal/capsule"
	"github.com/raphaelgruber/memcapsule/internal/embedding"
	"github.com/raphaelgruber/memcapsule/internal/entrylog"
	"github.com/raphaelgruber/memcapsule/internal/localdb"
	"github.com/raphaelgruber/memcapsule/internal/metrics"
	"github.com/raphaelgruber/memcapsule/internal/models"
	"github.com/raphaelgruber/memcapsule/internal/server"
	"github.com/raphaelgruber/memcapsule/internal/service"
	"github.com/raphaelgruber/memcapsule/internal/streak"
	"github.com/raphaelgruber/memcapsule/internal/vectorindex"
)

func newTestServer(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := localdb.Open(localdb.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	collector := metrics.NewCollector()
	store := capsule.New(entrylog.New(db), streak.New(db), vectorindex.New(db), embedding.NewZero(4),
		capsule.WithLogger(logger), capsule.WithMetrics(collector))
	journal := service.NewJournalService(store, nil, service.WithLogger(logger))

	ts := httptest.NewServer(server.New(journal, store, collector, "1.2.3", logger).Handler())
	t.Cleanup(ts.Close)
	return New(ts.URL + "/")
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestServer(t)

	version, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", version)

	res, err := c.Create(ctx, service.EntryRequest{Mode: service.ModeManual, UserID: "u1", Content: "first entry"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.EntryID)
	assert.Equal(t, "first entry", res.Content)
	assert.Equal(t, 1, res.Streak)

	hits, err := c.Flashback(ctx, "u1", "what happened & why?", 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, res.EntryID, hits[0].EntryID)

	stats, err := c.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.Stats{TotalEntries: 1, Streak: 1, Badges: []string{}}, stats)

	n, err := c.Rebuild(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	qs, err := c.Questions(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.Questions, qs)

	snap, err := c.Usage(ctx)
	require.NoError(t, err)
	assert.Contains(t, snap.Operations, metrics.OpSaveEntry)
}

func TestClientMapsErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestServer(t)

	_, err := c.Create(ctx, service.EntryRequest{Mode: service.ModeManual, UserID: "u1"})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Contains(t, err.Error(), "content is required")

	_, err = c.Flashback(ctx, "nobody", "q", 5)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = c.Flashback(ctx, "u1", "q", 50)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestClientServerDown(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := New(url).Stats(context.Background(), "u1")
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
}

// stubCapsule fails every call with err.
type stubCapsule struct{ err error }

func (s stubCapsule) Flashback(context.Context, string, string, int) ([]models.Flashback, error) {
	return nil, s.err
}
func (s stubCapsule) Stats(context.Context, string) (models.Stats, error) { return models.Stats{}, s.err }
func (s stubCapsule) Rebuild(context.Context, string) (int, error)        { return 0, s.err }
func (s stubCapsule) MaxK() int                                           { return vectorindex.DefaultMaxK }

func TestClientKeepsErrorKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		err     error
		want    error
		notWant error
	}{
		{"dimension mismatch", fmt.Errorf("add: %w", models.ErrDimensionMismatch), models.ErrDimensionMismatch, models.ErrConflict},
		{"conflict", fmt.Errorf("add: %w", models.ErrConflict), models.ErrConflict, models.ErrDimensionMismatch},
		{"upstream", fmt.Errorf("embed: %w", models.ErrUpstreamUnavailable), models.ErrUpstreamUnavailable, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(server.New(nil, stubCapsule{err: tt.err}, nil, "test", logger).Handler())
			defer ts.Close()

			_, err := New(ts.URL).Rebuild(context.Background(), "u1")
			assert.ErrorIs(t, err, tt.want)
			if tt.notWant != nil {
				assert.NotErrorIs(t, err, tt.notWant)
			}
			assert.ErrorContains(t, err, tt.err.Error())
		})
	}
}

func TestClientFallsBackToStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "taken", http.StatusConflict)
	}))
	defer ts.Close()

	_, err := New(ts.URL).Stats(context.Background(), "u1")
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.ErrorContains(t, err, "taken")
}

func TestStatusError(t *testing.T) {
	assert.ErrorIs(t, statusError(http.StatusConflict), models.ErrConflict)
	assert.EqualError(t, statusError(http.StatusTeapot), "server error: 418 I'm a teapot")
}
