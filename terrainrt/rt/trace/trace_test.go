package trace

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"
	"github.com/gekko3d/terrastream/terrainrt/rt/stream"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	dec, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer dec.Close()

	var out []Entry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestWriter_WritesFrameEntries(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	w := NewStreamWriter(dir).WithClock(func() time.Time { return at })

	report := stream.FrameReport{
		Frame:    3,
		Center:   core.ChunkCoord{X: 32, Z: -64},
		Moved:    true,
		Ingested: []core.ChunkKey{"32_-64"},
		Resident: 1,
	}
	require.NoError(t, w.WriteFrame(report, stream.ProducerStats{Generated: 1}, stream.ConsumerStats{Frames: 3}))
	require.NoError(t, w.WriteFrame(stream.FrameReport{Frame: 4}, stream.ProducerStats{}, stream.ConsumerStats{}))
	require.NoError(t, w.Close())
	assert.Equal(t, uint64(2), w.Written())

	path := filepath.Join(dir, "stream-2026-03-04-05.jsonl.zst")
	assert.Equal(t, path, w.Path(at))
	entries := readEntries(t, path)
	require.Len(t, entries, 2)
	assert.Equal(t, report.Center, entries[0].Report.Center)
	assert.Equal(t, []core.ChunkKey{"32_-64"}, entries[0].Report.Ingested)
	assert.Equal(t, uint64(1), entries[0].Producer.Generated)
	assert.Equal(t, uint64(4), entries[1].Report.Frame)
}

func TestWriter_RotatesOnHour(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 4, 5, 59, 0, 0, time.UTC)
	w := NewWriter(dir, "stream").WithClock(func() time.Time { return at })

	require.NoError(t, w.Write(map[string]int{"n": 1}))
	at = at.Add(2 * time.Minute)
	require.NoError(t, w.Write(map[string]int{"n": 2}))
	require.NoError(t, w.Close())

	first := filepath.Join(dir, "stream-2026-03-04-05.jsonl.zst")
	second := filepath.Join(dir, "stream-2026-03-04-06.jsonl.zst")
	assert.FileExists(t, first)
	assert.FileExists(t, second)
	assert.Len(t, readEntries(t, first), 1)
	assert.Len(t, readEntries(t, second), 1)
}

func TestWriter_CloseWithoutWrites(t *testing.T) {
	w := NewStreamWriter(t.TempDir())
	assert.NoError(t, w.Close())
}
