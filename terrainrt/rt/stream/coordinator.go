// Package stream moves chunk requests from the frame loop to a background producer and
// generated chunks back, using channels only.
package stream

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"

	"github.com/google/uuid"
)

const (
	DefaultTickInterval  = 500 * time.Millisecond
	DefaultResultsBuffer = 8
)

// Generator produces the raw bytes of one chunk. It is only called from the producer
// goroutine, so implementations may own device state without locking.
type Generator interface {
	Generate(ctx context.Context, coord core.ChunkCoord) (core.RawChunkData, error)
}

// Request is a snapshot of the consumer's requested set.
type Request struct {
	Batch  uuid.UUID
	Chunks map[core.ChunkKey]core.ChunkCoord
}

// Generated is one chunk handed from the producer to the consumer.
type Generated struct {
	Batch uuid.UUID
	Key   core.ChunkKey
	Coord core.ChunkCoord
	Raw   core.RawChunkData
}

type Options struct {
	TickInterval  time.Duration
	ResultsBuffer int
	Logger        Logger
	// Layout checks generated data before it is cached. A zero Layout accepts anything.
	Layout core.Layout
}

// ProducerStats are cumulative counters of the producer loop.
type ProducerStats struct {
	Ticks       uint64 `json:"ticks"`
	Generated   uint64 `json:"generated"`
	Republished uint64 `json:"republished"`
	Failures    uint64 `json:"failures"`
	Overflows   uint64 `json:"overflows"`
}

// Coordinator owns the two channels between the frame loop and the producer. Publish and
// Drain belong to the consumer; Run is the producer.
type Coordinator struct {
	gen      Generator
	interval time.Duration
	log      Logger
	layout   core.Layout

	requests chan Request
	results  chan []Generated

	// producer-owned
	cache   *core.Cache[core.RawChunkData]
	current Request

	ticks       atomic.Uint64
	generated   atomic.Uint64
	republished atomic.Uint64
	failures    atomic.Uint64
	overflows   atomic.Uint64
}

func NewCoordinator(gen Generator, opts Options) *Coordinator {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.ResultsBuffer <= 0 {
		opts.ResultsBuffer = DefaultResultsBuffer
	}
	return &Coordinator{
		gen:      gen,
		interval: opts.TickInterval,
		log:      orNop(opts.Logger),
		layout:   opts.Layout,
		requests: make(chan Request, 1),
		results:  make(chan []Generated, opts.ResultsBuffer),
		cache:    core.NewCache[core.RawChunkData](),
	}
}

// Publish replaces any request the producer has not picked up yet. Only one goroutine may
// publish.
func (c *Coordinator) Publish(chunks map[core.ChunkKey]core.ChunkCoord) uuid.UUID {
	req := Request{Batch: uuid.New(), Chunks: chunks}
	for {
		select {
		case c.requests <- req:
			return req.Batch
		default:
		}
		select {
		case <-c.requests:
		default:
		}
	}
}

// Drain collects every batch available right now without blocking. When a key shows up in
// more than one batch the later one wins.
func (c *Coordinator) Drain() map[core.ChunkKey]Generated {
	var staged map[core.ChunkKey]Generated
	for {
		select {
		case batch := <-c.results:
			if staged == nil {
				staged = make(map[core.ChunkKey]Generated, len(batch))
			}
			for _, g := range batch {
				staged[g.Key] = g
			}
		default:
			return staged
		}
	}
}

// Run ticks until ctx is cancelled. It returns nil on cancellation and the error when the
// device can no longer allocate resources.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.log.Infof("producer started, tick=%s", c.interval)
	for {
		select {
		case <-ctx.Done():
			c.log.Infof("producer stopped")
			return nil
		case <-ticker.C:
		}
		if err := c.tick(ctx); err != nil {
			if ctx.Err() != nil {
				c.log.Infof("producer stopped")
				return nil
			}
			c.log.Errorf("producer: %v", err)
			return err
		}
	}
}

func (c *Coordinator) tick(ctx context.Context) error {
	c.ticks.Add(1)
	select {
	case req := <-c.requests:
		c.current = req
	default:
	}
	req := c.current

	keys := make([]core.ChunkKey, 0, len(req.Chunks))
	for k := range req.Chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	batch := make([]Generated, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		coord := req.Chunks[key]
		if raw, ok := c.cache.Get(key); ok {
			batch = append(batch, Generated{Batch: req.Batch, Key: key, Coord: coord, Raw: raw})
			c.republished.Add(1)
			continue
		}
		raw, err := c.gen.Generate(ctx, coord)
		if err != nil {
			if errors.Is(err, core.ErrDeviceExhausted) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.failures.Add(1)
			c.log.Warnf("chunk %s skipped: %v", key, err)
			continue
		}
		if c.layout.Size > 0 {
			if err := c.layout.Validate(raw); err != nil {
				c.failures.Add(1)
				c.log.Warnf("chunk %s rejected: %v", key, err)
				continue
			}
		}
		c.cache.Insert(key, raw)
		c.generated.Add(1)
		batch = append(batch, Generated{Batch: req.Batch, Key: key, Coord: coord, Raw: raw})
	}

	c.cache.Retain(func(k core.ChunkKey) bool {
		_, ok := req.Chunks[k]
		return ok
	})

	if len(batch) == 0 {
		return nil
	}
	select {
	case c.results <- batch:
		c.log.Debugf("batch %s: %d chunks", req.Batch, len(batch))
	default:
		// Cached chunks are sent again next tick.
		c.overflows.Add(1)
	}
	return nil
}

func (c *Coordinator) Stats() ProducerStats {
	return ProducerStats{
		Ticks:       c.ticks.Load(),
		Generated:   c.generated.Load(),
		Republished: c.republished.Load(),
		Failures:    c.failures.Load(),
		Overflows:   c.overflows.Load(),
	}
}
