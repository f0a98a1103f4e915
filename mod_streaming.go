package terrastream

import (
	rtapp "github.com/gekko3d/terrastream/terrainrt/rt/app"
	"github.com/gekko3d/terrastream/terrainrt/rt/host"
	"github.com/gekko3d/terrastream/terrainrt/rt/noise"
	"github.com/gekko3d/terrastream/terrainrt/rt/stream"
)

// Backend is the device side of a stream: chunk generation, mesh ingestion and, optionally,
// ray queries.
type Backend struct {
	Name      string
	Generator stream.Generator
	Ingester  stream.Ingester
	Querier   stream.Querier
	// Release frees device state once the stream is closed. May be nil.
	Release func()
}

// HostBackend generates and queries chunks on the CPU.
func HostBackend(cfg Config, field *noise.HeightField) Backend {
	layout := cfg.Layout()
	return Backend{
		Name:      BackendHost,
		Generator: host.NewGenerator(layout, field, cfg.MinHeight, cfg.MaxHeight),
		Ingester:  host.Ingester{Layout: layout},
		Querier:   host.RayQuery{},
	}
}

// Stream is the resource through which systems reach the streamer.
type Stream struct {
	Config   Config
	Field    *noise.HeightField
	Backend  string
	Streamer *stream.Streamer
	Queries  *stream.QueryWorker
	Last     stream.FrameReport
}

// Coordinator is the producer side of the stream.
func (s *Stream) Coordinator() *stream.Coordinator {
	return s.Streamer.Coordinator()
}

// StreamingModule runs the consumer half of the stream once per frame around the Viewer and
// registers the producer (and query worker, if the backend has one) as app workers.
type StreamingModule struct {
	Config  Config
	Field   *noise.HeightField
	Backend Backend
}

func (m StreamingModule) Install(app *App, cmd *Commands) {
	field := m.Field
	if field == nil {
		field = m.Config.HeightField()
	}
	log := componentLogger(app, "stream")

	coord := stream.NewCoordinator(m.Backend.Generator, stream.Options{
		TickInterval:  m.Config.TickInterval(),
		ResultsBuffer: m.Config.ResultsBuffer,
		Logger:        log,
		Layout:        m.Config.Layout(),
	})
	streamer := stream.NewStreamer(m.Config.Window(), coord, m.Backend.Ingester, log)

	profiler := ensureProfiler(app)
	streamer.Scope = profiler.Scope

	s := &Stream{
		Config:   m.Config,
		Field:    field,
		Backend:  m.Backend.Name,
		Streamer: streamer,
	}
	cmd.Go("producer", coord.Run)
	if m.Backend.Querier != nil {
		s.Queries = stream.NewQueryWorker(m.Backend.Querier, componentLogger(app, "query"))
		cmd.Go("query", s.Queries.Run)
	}

	cmd.AddResources(s)
	if _, ok := Resource[Viewer](app); !ok {
		cmd.AddResources(&Viewer{Clearance: DefaultClearance})
	}
	cmd.UseSystem(System(streamSystem).InStage(Update))

	release := m.Backend.Release
	cmd.OnClose(func() {
		streamer.Close()
		if release != nil {
			release()
		}
	})
	log.Infof("backend=%s radius=%d chunk=%d", m.Backend.Name, m.Config.ChunkRadius, m.Config.ChunkSize)
}

func streamSystem(s *Stream, viewer *Viewer, profiler *rtapp.Profiler) error {
	done := profiler.Scope("stream.frame")
	report, err := s.Streamer.Frame(float64(viewer.Position.X()), float64(viewer.Position.Z()))
	done()
	if err != nil {
		return err
	}
	s.Last = report

	profiler.SetCount("chunks.resident", report.Resident)
	profiler.SetCount("chunks.requested", report.Requested)
	profiler.AddCount("chunks.ingested", len(report.Ingested))
	profiler.AddCount("chunks.released", len(report.Released))
	return nil
}

// ensureProfiler returns the Profiler resource, installing one if needed.
func ensureProfiler(app *App) *rtapp.Profiler {
	if p, ok := Resource[rtapp.Profiler](app); ok {
		return p
	}
	p := rtapp.NewProfiler()
	app.addResources(p)
	return p
}
