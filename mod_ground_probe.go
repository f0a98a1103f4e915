package terrastream

import (
	"errors"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// GroundProbe tracks the ray queries cast down from the viewer into the chunk below it.
type GroundProbe struct {
	Pending  uuid.UUID
	Key      core.ChunkKey
	Submits  uint64
	Hits     uint64
	Misses   uint64
	Failures uint64
	Last     float32

	log Logger
}

// GroundProbeModule keeps the viewer above the terrain using the stream's query worker. It
// does nothing when the backend has no querier.
type GroundProbeModule struct{}

func (m GroundProbeModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&GroundProbe{log: componentLogger(app, "probe")})
	cmd.UseSystem(System(groundProbeSystem).InStage(PostUpdate))
}

func groundProbeSystem(s *Stream, viewer *Viewer, probe *GroundProbe) error {
	if s.Queries == nil {
		return nil
	}

	if r, ok := s.Queries.Poll(); ok {
		if r.ID == probe.Pending {
			probe.Pending = uuid.Nil
		}
		switch {
		case r.Err != nil:
			if errors.Is(r.Err, core.ErrDeviceExhausted) {
				return r.Err
			}
			probe.Failures++
			probe.log.Warnf("ground probe %s: %v", r.Key, r.Err)
		case r.Hit.Hit:
			probe.Hits++
			ground := r.Ray.At(r.Hit.Distance).Y()
			probe.Last = ground
			viewer.Ground = ground
			viewer.Grounded = true
			if floor := ground + viewer.Clearance; viewer.Position.Y() < floor {
				viewer.Position[1] = floor
			}
		default:
			probe.Misses++
		}
	}

	if probe.Pending != uuid.Nil {
		return nil
	}
	x, z := viewer.Position.X(), viewer.Position.Z()
	key := core.KeyOfPosition(float64(x), float64(z), s.Config.ChunkSize)
	mesh, ok := s.Streamer.Resident(key)
	if !ok {
		viewer.Grounded = false
		return nil
	}
	origin := mgl32.Vec3{x, s.Config.MaxHeight + 1, z}
	probe.Pending = s.Queries.Submit(key, core.Down(origin), mesh.Raw())
	probe.Key = key
	probe.Submits++
	return nil
}
