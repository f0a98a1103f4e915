package stream

import (
	"context"
	"errors"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"

	"github.com/google/uuid"
)

// Querier intersects a ray with one chunk.
type Querier interface {
	Intersect(ctx context.Context, ray core.Ray, raw core.RawChunkData) (core.RayHit, error)
}

type Query struct {
	ID  uuid.UUID
	Key core.ChunkKey
	Ray core.Ray
	Raw core.RawChunkData
}

type QueryResult struct {
	ID  uuid.UUID
	Key core.ChunkKey
	Ray core.Ray
	Hit core.RayHit
	Err error
}

// QueryWorker runs ray queries on its own goroutine. Both its inbox and outbox hold a single
// entry and keep only the newest.
type QueryWorker struct {
	q       Querier
	log     Logger
	jobs    chan Query
	results chan QueryResult
}

func NewQueryWorker(q Querier, log Logger) *QueryWorker {
	return &QueryWorker{
		q:       q,
		log:     orNop(log),
		jobs:    make(chan Query, 1),
		results: make(chan QueryResult, 1),
	}
}

// Submit schedules a query, replacing one that has not started yet.
func (w *QueryWorker) Submit(key core.ChunkKey, ray core.Ray, raw core.RawChunkData) uuid.UUID {
	job := Query{ID: uuid.New(), Key: key, Ray: ray, Raw: raw}
	for {
		select {
		case w.jobs <- job:
			return job.ID
		default:
		}
		select {
		case <-w.jobs:
		default:
		}
	}
}

// Poll returns the newest finished result, if any.
func (w *QueryWorker) Poll() (QueryResult, bool) {
	select {
	case r := <-w.results:
		return r, true
	default:
		return QueryResult{}, false
	}
}

// Run serves queries until ctx is cancelled.
func (w *QueryWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-w.jobs:
			hit, err := w.q.Intersect(ctx, job.Ray, job.Raw)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if errors.Is(err, core.ErrDeviceExhausted) {
					return err
				}
				w.log.Warnf("query on %s: %v", job.Key, err)
			}
			w.deliver(QueryResult{ID: job.ID, Key: job.Key, Ray: job.Ray, Hit: hit, Err: err})
		}
	}
}

func (w *QueryWorker) deliver(r QueryResult) {
	for {
		select {
		case w.results <- r:
			return
		default:
		}
		select {
		case <-w.results:
		default:
		}
	}
}
