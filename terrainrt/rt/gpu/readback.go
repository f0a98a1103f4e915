package gpu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"

	"github.com/cogentcore/webgpu/wgpu"
)

const (
	DefaultReadbackTimeout = 5 * time.Second
	pollInterval           = time.Millisecond
)

var errReadbackTimeout = errors.New("mapping did not complete in time")

// mapper is the part of a staging buffer the readback needs.
type mapper interface {
	requestMap(size uint64, done func(ok bool, status string))
	mappedRange(size uint64) []byte
	unmap()
}

type poller interface {
	poll(wait bool)
}

type stagingBuffer struct {
	buf *wgpu.Buffer
}

func (s stagingBuffer) requestMap(size uint64, done func(ok bool, status string)) {
	s.buf.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		done(status == wgpu.BufferMapAsyncStatusSuccess, fmt.Sprint(status))
	})
}

func (s stagingBuffer) mappedRange(size uint64) []byte {
	return s.buf.GetMappedRange(0, uint(size))
}

func (s stagingBuffer) unmap() {
	s.buf.Unmap()
}

type devicePoller struct {
	device *wgpu.Device
}

func (p devicePoller) poll(wait bool) {
	p.device.Poll(wait, nil)
}

type mapResult struct {
	ok     bool
	status string
}

// readback maps a staging buffer for reading and copies its contents out. Completion is
// delivered by the map callback, which only runs while the device is polled.
type readback struct {
	poller  poller
	timeout time.Duration
}

func newReadback(device *wgpu.Device, timeout time.Duration) readback {
	if timeout <= 0 {
		timeout = DefaultReadbackTimeout
	}
	return readback{poller: devicePoller{device: device}, timeout: timeout}
}

// read copies size bytes of m into dst and unmaps it. On any error the buffer may still have
// a pending map and must not be reused.
func (r readback) read(ctx context.Context, label string, m mapper, size uint64, dst []byte) error {
	done := make(chan mapResult, 1)
	m.requestMap(size, func(ok bool, status string) {
		select {
		case done <- mapResult{ok: ok, status: status}:
		default:
		}
	})
	r.poller.poll(true)

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case res := <-done:
			if !res.ok {
				return &core.ReadbackError{Label: label, Status: res.status}
			}
			data := m.mappedRange(size)
			if uint64(len(data)) < size {
				m.unmap()
				return &core.ReadbackError{Label: label, Status: fmt.Sprintf("short mapping %d/%d", len(data), size)}
			}
			copy(dst, data[:size])
			m.unmap()
			return nil
		case <-ctx.Done():
			return &core.ReadbackError{Label: label, Status: "cancelled", Err: ctx.Err()}
		case <-timer.C:
			return &core.ReadbackError{Label: label, Status: "timeout", Err: errReadbackTimeout}
		case <-ticker.C:
			r.poller.poll(false)
		}
	}
}
