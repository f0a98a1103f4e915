package terrastream

import (
	"context"

	rtapp "github.com/gekko3d/terrastream/terrainrt/rt/app"
	"github.com/gekko3d/terrastream/terrainrt/rt/inspect"
)

// InspectorModule serves the stream status on a loopback address. The frame loop publishes a
// snapshot at the end of every frame; the server never touches the stream itself.
type InspectorModule struct {
	Addr string
}

func (m InspectorModule) Install(app *App, cmd *Commands) {
	srv := inspect.NewServer(componentLogger(app, "inspect"))
	ensureProfiler(app)
	cmd.AddResources(srv)
	cmd.Go("inspector", func(ctx context.Context) error {
		return srv.Serve(ctx, m.Addr)
	})
	cmd.UseSystem(System(inspectorSystem).InStage(Finale))
}

func inspectorSystem(srv *inspect.Server, s *Stream, profiler *rtapp.Profiler) {
	st := inspect.StatusOf(s.Last.Frame, s.Streamer)
	st.Timings = profiler.Snapshot().Scopes
	srv.Publish(st)
}
