package terrastream

import (
	rtapp "github.com/gekko3d/terrastream/terrainrt/rt/app"
)

// ProfilerModule installs the frame profiler and logs it every LogEvery frames at debug level.
type ProfilerModule struct {
	LogEvery uint64
}

func (m ProfilerModule) Install(app *App, cmd *Commands) {
	ensureProfiler(app)
	if m.LogEvery == 0 {
		return
	}
	log := componentLogger(app, "profile")
	every := m.LogEvery
	cmd.UseSystem(System(func(p *rtapp.Profiler) {
		if app.Frame()%every == 0 {
			log.Debugf("frame %d: %s", app.Frame(), p)
		}
	}).InStage(Finale))
}
