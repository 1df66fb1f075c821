package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpSaveEntry, 10*time.Millisecond, nil)
	c.RecordTiming(OpSaveEntry, 30*time.Millisecond, errors.New("boom"))

	snap := c.Snapshot()
	op := snap.Operations[OpSaveEntry]
	require.NotNil(t, op)
	assert.Equal(t, int64(2), op.Count)
	assert.Equal(t, int64(1), op.Errors)
	assert.Equal(t, int64(40), op.TotalTimeMs)
	assert.Equal(t, 20.0, op.AvgTimeMs)
	assert.Equal(t, int64(10), op.MinTimeMs)
	assert.Equal(t, int64(30), op.MaxTimeMs)
}

func TestRecordFallbackOnly(t *testing.T) {
	c := NewCollector()
	c.RecordFallback(OpEmbedding)

	op := c.Snapshot().Operations[OpEmbedding]
	require.NotNil(t, op)
	assert.Equal(t, int64(1), op.Fallbacks)
	assert.Zero(t, op.Count)
	assert.Zero(t, op.MinTimeMs)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.RecordTiming(OpFlashback, time.Millisecond, nil)
	c.RecordFallback(OpEmbedding)
	assert.Empty(t, c.Snapshot().Operations)
}

func TestSnapshotNames(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpStats, time.Millisecond, nil)
	c.RecordTiming(OpFlashback, time.Millisecond, nil)
	assert.Equal(t, []string{OpFlashback, OpStats}, c.Snapshot().Names())
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpEmbedding, time.Millisecond, nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), c.Snapshot().Operations[OpEmbedding].Count)
}
