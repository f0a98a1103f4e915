package terrastream

import (
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultClearance is how far the viewer is kept above the ground.
const DefaultClearance float32 = 2

// Viewer is the point the stream is centred on.
type Viewer struct {
	Position mgl32.Vec3
	// Velocity moves the viewer every frame, in world units per second.
	Velocity  mgl32.Vec3
	Clearance float32

	// Ground is the last probed terrain height below the viewer.
	Ground   float32
	Grounded bool
}

// ViewerModule installs the Viewer. A non-zero Drift moves it at a constant velocity, which
// is how headless runs walk across the terrain.
type ViewerModule struct {
	Start     mgl32.Vec3
	Drift     mgl32.Vec3
	Clearance float32
}

func (m ViewerModule) Install(app *App, cmd *Commands) {
	clearance := m.Clearance
	if clearance <= 0 {
		clearance = DefaultClearance
	}
	if v, ok := Resource[Viewer](app); ok {
		v.Position = m.Start
		v.Velocity = m.Drift
		v.Clearance = clearance
	} else {
		cmd.AddResources(&Viewer{Position: m.Start, Velocity: m.Drift, Clearance: clearance})
	}
	if _, ok := Resource[Time](app); !ok {
		TimeModule{}.Install(app, cmd)
	}
	cmd.UseSystem(System(viewerSystem).InStage(PreUpdate))
}

func viewerSystem(viewer *Viewer, t *Time) {
	dt := float32(t.Seconds())
	if dt <= 0 || viewer.Velocity.Len() == 0 {
		return
	}
	viewer.Position = viewer.Position.Add(viewer.Velocity.Mul(dt))
}

// MoveTo places the viewer, e.g. from a free camera.
func (v *Viewer) MoveTo(p mgl32.Vec3) {
	v.Position = p
}
