// Package trace records the stream's frame reports as hourly-rotated, zstd compressed JSONL.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gekko3d/terrastream/terrainrt/rt/stream"

	"github.com/klauspost/compress/zstd"
)

const hourFormat = "2006-01-02-15"

// Entry is one traced frame.
type Entry struct {
	Time     time.Time            `json:"time"`
	Report   stream.FrameReport   `json:"report"`
	Producer stream.ProducerStats `json:"producer"`
	Consumer stream.ConsumerStats `json:"consumer"`
}

// Writer appends JSON values to <dir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst, switching files when the
// UTC hour changes. Safe for concurrent use.
type Writer struct {
	dir    string
	prefix string
	now    func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
	written uint64
}

func NewWriter(dir, prefix string) *Writer {
	return &Writer{dir: dir, prefix: prefix, now: time.Now}
}

// NewStreamWriter is the writer for frame entries under dir.
func NewStreamWriter(dir string) *Writer {
	return NewWriter(dir, "stream")
}

// WithClock replaces the clock used to pick the hour file.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

func (w *Writer) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format(hourFormat)
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("trace: encode entry: %w", err)
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.written++
	return w.w.Flush()
}

// WriteFrame records a frame report with the current counters.
func (w *Writer) WriteFrame(report stream.FrameReport, producer stream.ProducerStats, consumer stream.ConsumerStats) error {
	return w.Write(Entry{
		Time:     w.now().UTC(),
		Report:   report,
		Producer: producer,
		Consumer: consumer,
	})
}

// Written is the number of entries accepted so far.
func (w *Writer) Written() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Path is the file used for the hour containing t.
func (w *Writer) Path(t time.Time) string {
	return w.pathForHour(t.UTC().Format(hourFormat))
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *Writer) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err
}

func (w *Writer) pathForHour(hour string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}
