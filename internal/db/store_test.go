package db

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/raphaelgruber/memcapsule/internal/entrylog"
	"github.com/raphaelgruber/memcapsule/internal/models"
	"github.com/raphaelgruber/memcapsule/internal/streak"
	"github.com/raphaelgruber/memcapsule/internal/vectorindex"
)

var (
	_ entrylog.Store    = (*Client)(nil)
	_ streak.Store      = (*Client)(nil)
	_ vectorindex.Store = (*Client)(nil)
)

var testDB *Client

// TestMain starts a SurrealDB container shared by all tests in the package.
// With -short no container is started and every test skips.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v2.3.7",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = container.Terminate(ctx)

	os.Exit(code)
}

func requireDB(t *testing.T) *Client {
	t.Helper()
	if testDB == nil {
		t.Skip("skipping integration test in short mode")
	}
	require.NoError(t, testDB.WipeData(context.Background()))
	return testDB
}

func testEntry(user, id, content string) models.Entry {
	created, _ := entrylog.TimeOf(id)
	return models.Entry{ID: id, UserID: user, Content: content, CreatedAt: created}
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	c := requireDB(t)
	require.NoError(t, c.InitSchema(context.Background()))

	result, err := surrealdb.Query[any](context.Background(), c.db, "INFO FOR DB", nil)
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestEntries(t *testing.T) {
	c := requireDB(t)
	ctx := context.Background()

	last, err := c.LastEntryID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, last)

	ids := []string{"20250101T090000Z", "20250101T090000Z-000001", "20250102T080000Z"}
	for _, id := range ids {
		require.NoError(t, c.PutEntry(ctx, testEntry("u1", id, "text "+id)))
	}
	require.NoError(t, c.PutEntry(ctx, testEntry("u2", "20300101T000000Z", "other user")))

	err = c.PutEntry(ctx, testEntry("u1", ids[0], "duplicate"))
	assert.ErrorIs(t, err, models.ErrConflict)

	got, err := c.GetEntry(ctx, "u1", ids[0])
	require.NoError(t, err)
	assert.Equal(t, "text "+ids[0], got.Content)
	assert.Equal(t, "2025-01-01", got.Date())

	_, err = c.GetEntry(ctx, "u1", "20990101T000000Z")
	assert.ErrorIs(t, err, models.ErrNotFound)

	last, err = c.LastEntryID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ids[2], last)

	entries, err := c.ListEntries(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, ids[i], e.ID)
	}
}

func TestMeta(t *testing.T) {
	c := requireDB(t)
	ctx := context.Background()

	_, found, err := c.LoadMeta(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found)

	meta := models.UserMeta{EntryDates: []string{"2025-01-01"}, Streak: 1, Badges: []string{}}
	require.NoError(t, c.SaveMeta(ctx, "u1", meta))

	meta.EntryDates = append(meta.EntryDates, "2025-01-02")
	meta.Streak = 2
	require.NoError(t, c.SaveMeta(ctx, "u1", meta))

	got, found, err := c.LoadMeta(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, meta, got)
}

func TestListUsersFollowsTheLog(t *testing.T) {
	c := requireDB(t)
	ctx := context.Background()

	require.NoError(t, c.SaveMeta(ctx, "meta-only", models.UserMeta{Badges: []string{}}))
	require.NoError(t, c.PutEntry(ctx, testEntry("u2", "20250101T000000Z", "a")))
	require.NoError(t, c.PutEntry(ctx, testEntry("u1", "20250101T000000Z", "b")))
	require.NoError(t, c.PutEntry(ctx, testEntry("u1", "20250102T000000Z", "c")))

	users, err := c.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, users)
}

func TestVectors(t *testing.T) {
	c := requireDB(t)
	ctx := context.Background()

	_, found, err := c.LoadVectors(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.AppendVector(ctx, "u1", 0, "e0", []float32{0.5, 1}))
	require.NoError(t, c.AppendVector(ctx, "u1", 1, "e1", []float32{0, 0}))

	assert.ErrorIs(t, c.AppendVector(ctx, "u1", 1, "dup", []float32{1, 1}), models.ErrConflict)
	assert.ErrorIs(t, c.AppendVector(ctx, "u1", 7, "gap", []float32{1, 1}), models.ErrConflict)

	snap, found, err := c.LoadVectors(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, snap.Dimension)
	assert.Equal(t, []string{"e0", "e1"}, snap.IDs)
	assert.Equal(t, []float32{0.5, 1}, snap.Vectors[0])

	require.NoError(t, c.ResetVectors(ctx, "u1"))
	_, found, err = c.LoadVectors(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestConcurrentAppendClaimsPositionOnce(t *testing.T) {
	c := requireDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := c.AppendVector(ctx, "u1", 0, fmt.Sprintf("e%d", i), []float32{1}); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	snap, _, err := c.LoadVectors(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, snap.IDs, 1)
}

func TestIndexOverSurreal(t *testing.T) {
	c := requireDB(t)
	ctx := context.Background()
	ix := vectorindex.New(c)

	for i, v := range [][]float32{{0, 0}, {3, 4}, {1, 1}} {
		_, err := ix.Add(ctx, "u1", fmt.Sprintf("e%d", i), v)
		require.NoError(t, err)
	}

	// A fresh index reloads from the database.
	hits, err := vectorindex.New(c).Search(ctx, "u1", []float32{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "e0", hits[0].EntryID)
	assert.Equal(t, "e2", hits[1].EntryID)
	assert.Equal(t, 2.0, hits[1].Distance)
}
