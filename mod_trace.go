package terrastream

import (
	"github.com/gekko3d/terrastream/terrainrt/rt/trace"
)

// Tracer writes one trace entry per frame that changed the stream.
type Tracer struct {
	Writer   *trace.Writer
	Failures uint64

	log Logger
}

type TraceModule struct {
	Dir string
}

func (m TraceModule) Install(app *App, cmd *Commands) {
	t := &Tracer{
		Writer: trace.NewStreamWriter(m.Dir),
		log:    componentLogger(app, "trace"),
	}
	cmd.AddResources(t)
	cmd.UseSystem(System(traceSystem).InStage(Finale))
	cmd.OnClose(func() {
		if err := t.Writer.Close(); err != nil {
			t.log.Warnf("close: %v", err)
		}
	})
}

func traceSystem(t *Tracer, s *Stream) {
	r := s.Last
	if !r.Moved && len(r.Ingested) == 0 && len(r.Released) == 0 {
		return
	}
	if err := t.Writer.WriteFrame(r, s.Coordinator().Stats(), s.Streamer.Stats()); err != nil {
		t.Failures++
		t.log.Warnf("frame %d: %v", r.Frame, err)
	}
}
