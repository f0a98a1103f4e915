package stream

import (
	"errors"
	"sort"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"

	"github.com/google/uuid"
)

// Ingester turns raw chunk bytes into a resident mesh, e.g. by uploading device buffers.
type Ingester interface {
	Ingest(key core.ChunkKey, coord core.ChunkCoord, raw core.RawChunkData) (core.Mesh, error)
}

// FrameReport summarizes what one Frame call did.
type FrameReport struct {
	Frame     uint64          `json:"frame"`
	Batch     uuid.UUID       `json:"batch"`
	Center    core.ChunkCoord `json:"center"`
	Moved     bool            `json:"moved"`
	Staged    int             `json:"staged"`
	Ingested  []core.ChunkKey `json:"ingested,omitempty"`
	Stale     int             `json:"stale"`
	Rejected  int             `json:"rejected"`
	Released  []core.ChunkKey `json:"released,omitempty"`
	Resident  int             `json:"resident"`
	Requested int             `json:"requested"`
}

// ConsumerStats are cumulative counters of the frame side.
type ConsumerStats struct {
	Frames   uint64 `json:"frames"`
	Ingested uint64 `json:"ingested"`
	Stale    uint64 `json:"stale"`
	Rejected uint64 `json:"rejected"`
	Released uint64 `json:"released"`
}

// Streamer is the consumer half of the stream. It owns the State and must only be used from
// the frame loop.
type Streamer struct {
	State *core.State

	// Scope, when set, brackets the drain, ingest and plan phases of Frame. It returns the
	// function that closes the scope.
	Scope func(name string) func()

	coord  *Coordinator
	ingest Ingester
	log    Logger
	stats  ConsumerStats
}

func NewStreamer(w core.Window, coord *Coordinator, ingest Ingester, log Logger) *Streamer {
	return &Streamer{
		State:  core.NewState(w),
		coord:  coord,
		ingest: ingest,
		log:    orNop(log),
	}
}

// Frame drains staged chunks, ingests the ones still wanted, replans around (x, z), releases
// meshes that left the window and publishes the new requested set. It only fails when the
// device can no longer hold new meshes.
func (s *Streamer) Frame(x, z float64) (FrameReport, error) {
	s.stats.Frames++
	report := FrameReport{Frame: s.stats.Frames}

	end := s.scope("stream.drain")
	staged := s.coord.Drain()
	end()
	report.Staged = len(staged)
	keys := make([]core.ChunkKey, 0, len(staged))
	for k := range staged {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	end = s.scope("stream.ingest")
	defer func() { end() }()
	for _, key := range keys {
		if !s.State.Wants(key) {
			report.Stale++
			continue
		}
		g := staged[key]
		mesh, err := s.ingest.Ingest(key, g.Coord, g.Raw)
		if err != nil {
			if errors.Is(err, core.ErrDeviceExhausted) {
				return report, err
			}
			s.log.Warnf("chunk %s rejected: %v", key, err)
			report.Rejected++
			continue
		}
		s.State.Ingest(key, mesh)
		report.Ingested = append(report.Ingested, key)
	}

	end()
	end = s.scope("stream.plan")
	prev, planned := s.State.Center()
	for _, m := range s.State.Replan(x, z) {
		report.Released = append(report.Released, m.Coord().Key())
		m.Release()
	}
	report.Center, _ = s.State.Center()
	report.Moved = !planned || prev != report.Center
	report.Batch = s.coord.Publish(s.State.RequestedSnapshot())
	report.Resident = s.State.Resident.Len()
	report.Requested = len(s.State.Requested)

	s.stats.Ingested += uint64(len(report.Ingested))
	s.stats.Stale += uint64(report.Stale)
	s.stats.Rejected += uint64(report.Rejected)
	s.stats.Released += uint64(len(report.Released))
	if report.Moved {
		s.log.Debugf("window moved to %s: resident=%d requested=%d released=%d",
			report.Center, report.Resident, report.Requested, len(report.Released))
	}
	return report, nil
}

func (s *Streamer) scope(name string) func() {
	if s.Scope == nil {
		return func() {}
	}
	return s.Scope(name)
}

// Resident looks up the mesh for key.
func (s *Streamer) Resident(key core.ChunkKey) (core.Mesh, bool) {
	return s.State.Resident.Get(key)
}

func (s *Streamer) Stats() ConsumerStats {
	return s.stats
}

func (s *Streamer) Coordinator() *Coordinator {
	return s.coord
}

// Close releases every resident mesh.
func (s *Streamer) Close() {
	s.State.Release()
}
