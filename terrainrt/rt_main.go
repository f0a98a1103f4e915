package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	terrastream "github.com/gekko3d/terrastream"
	"github.com/gekko3d/terrastream/terrainrt/rt/app"
	"github.com/gekko3d/terrastream/terrainrt/rt/gpu"
	"github.com/gekko3d/terrastream/terrainrt/rt/noise"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

func init() {
	runtime.LockOSThread()
}

type options struct {
	configPath  string
	headless    bool
	debug       bool
	backend     string
	preview     string
	previewSize int
	frames      uint64
	duration    time.Duration
	inspect     string
	traceDir    string
	driftX      float64
	driftZ      float64
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML config file")
	flag.BoolVar(&opts.headless, "headless", false, "Stream without a window")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flag.StringVar(&opts.backend, "backend", "", "Chunk backend: wgpu or host (overrides config)")
	flag.StringVar(&opts.preview, "preview", "", "Write a heightmap PNG of the final window to this path")
	flag.IntVar(&opts.previewSize, "preview-size", 512, "Side of the preview image in pixels")
	flag.Uint64Var(&opts.frames, "frames", 0, "Stop after this many frames (0 runs until interrupted)")
	flag.DurationVar(&opts.duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	flag.StringVar(&opts.inspect, "inspect", "", "Inspector listen address, e.g. 127.0.0.1:7070 (overrides config)")
	flag.StringVar(&opts.traceDir, "trace", "", "Directory for stream traces (overrides config)")
	flag.Float64Var(&opts.driftX, "drift-x", 8, "Headless viewer drift along X, units per second")
	flag.Float64Var(&opts.driftZ, "drift-z", 3, "Headless viewer drift along Z, units per second")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "terrainrt:", err)
		os.Exit(1)
	}
}

func loadConfig(opts options) (terrastream.Config, error) {
	cfg := terrastream.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = terrastream.LoadConfig(opts.configPath); err != nil {
			return cfg, err
		}
	}
	if opts.backend != "" {
		cfg.Backend = opts.backend
	}
	if opts.inspect != "" {
		cfg.InspectorAddr = opts.inspect
	}
	if opts.traceDir != "" {
		cfg.TraceDir = opts.traceDir
	}
	if opts.debug {
		cfg.Debug = true
	}
	return cfg, cfg.Validate()
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := terrastream.NewDefaultLogger("terrainrt", cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	field := cfg.HeightField()
	if opts.headless {
		return runHeadless(ctx, opts, cfg, field, logger)
	}
	return runWindowed(ctx, opts, cfg, field, logger)
}

func runHeadless(ctx context.Context, opts options, cfg terrastream.Config, field *noise.HeightField, logger *terrastream.DefaultLogger) error {
	backend := terrastream.HostBackend(cfg, field)
	if cfg.Backend == terrastream.BackendWGPU {
		dev, err := gpu.Open(nil, nil)
		if err != nil {
			return err
		}
		backend, err = gpuBackend(dev, cfg, field, true)
		if err != nil {
			dev.Release()
			return err
		}
	}

	viewer := terrastream.ViewerModule{Drift: mgl32.Vec3{float32(opts.driftX), 0, float32(opts.driftZ)}}
	application := buildApp(cfg, field, backend, viewer, opts, logger).Build()
	defer application.Close()

	err := application.Serve(ctx)
	writePreview(application, opts, logger)
	return err
}

func runWindowed(ctx context.Context, opts options, cfg terrastream.Config, field *noise.HeightField, logger *terrastream.DefaultLogger) error {
	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(1280, 720, "Terrain Stream", nil, nil)
	if err != nil {
		return err
	}
	defer window.Destroy()

	camera := app.NewCameraState()
	renderer, err := app.NewRenderer(window, camera, cfg.ChunkSize, cfg.MinHeight, cfg.MaxHeight)
	if err != nil {
		return err
	}
	defer renderer.Release()

	// Meshes must live on the renderer's device, so only generation follows the backend choice.
	backend, err := gpuBackend(renderer.Device, cfg, field, false)
	if err != nil {
		return err
	}
	if cfg.Backend == terrastream.BackendHost {
		host := terrastream.HostBackend(cfg, field)
		backend.Name = host.Name
		backend.Generator = host.Generator
		backend.Querier = host.Querier
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		if err := renderer.Resize(width, height); err != nil {
			logger.Warnf("resize: %v", err)
		}
	})
	mouseCaptured := false
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyTab && action == glfw.Press {
			mouseCaptured = !mouseCaptured
			if mouseCaptured {
				w.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
			} else {
				w.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
			}
		}
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})
	lastX, lastY := window.GetCursorPos()
	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		dx, dy := float32(xpos-lastX), float32(ypos-lastY)
		lastX, lastY = xpos, ypos
		if !mouseCaptured {
			return
		}
		camera.Yaw += dx * camera.Sensitivity
		camera.Pitch -= dy * camera.Sensitivity
		camera.ClampPitch()
	})

	viewer := terrastream.ViewerModule{Start: camera.Position}
	application := buildApp(cfg, field, backend, viewer, opts, logger).Build()
	defer application.Close()

	cmd := application.Commands()
	cmd.UseSystem(terrastream.System(func(v *terrastream.Viewer, t *terrastream.Time, c *terrastream.Commands) {
		glfw.PollEvents()
		if window.ShouldClose() {
			c.Quit()
		}
		dt := float32(t.Seconds())
		move := mgl32.Vec3{}
		if window.GetKey(glfw.KeyW) == glfw.Press {
			move = move.Add(camera.Forward())
		}
		if window.GetKey(glfw.KeyS) == glfw.Press {
			move = move.Sub(camera.Forward())
		}
		if window.GetKey(glfw.KeyD) == glfw.Press {
			move = move.Add(camera.Right())
		}
		if window.GetKey(glfw.KeyA) == glfw.Press {
			move = move.Sub(camera.Right())
		}
		if window.GetKey(glfw.KeySpace) == glfw.Press {
			move[1]++
		}
		if window.GetKey(glfw.KeyLeftControl) == glfw.Press {
			move[1]--
		}
		if move.Len() > 0 {
			move = move.Normalize().Mul(camera.Speed * dt)
		}
		v.MoveTo(v.Position.Add(move))
	}).InStage(terrastream.PreUpdate))
	cmd.UseSystem(terrastream.System(func(v *terrastream.Viewer, s *terrastream.Stream, p *app.Profiler) error {
		camera.Position = v.Position
		done := p.Scope("render")
		defer done()
		if err := renderer.Render(s.Streamer.State.Resident); err != nil {
			return err
		}
		p.SetCount("chunks.drawn", renderer.Drawn)
		p.SetCount("chunks.culled", renderer.Culled)
		return nil
	}).InStage(terrastream.Render))

	err = application.Serve(ctx)
	writePreview(application, opts, logger)
	return err
}

// buildApp wires the modules shared by both modes.
func buildApp(cfg terrastream.Config, field *noise.HeightField, backend terrastream.Backend, viewer terrastream.ViewerModule, opts options, logger *terrastream.DefaultLogger) *terrastream.AppBuilder {
	modules := []terrastream.Module{
		loggerModule{logger},
		terrastream.TimeModule{},
		terrastream.ProfilerModule{LogEvery: 120},
		viewer,
		terrastream.StreamingModule{Config: cfg, Field: field, Backend: backend},
		terrastream.GroundProbeModule{},
	}
	if cfg.InspectorAddr != "" {
		modules = append(modules, terrastream.InspectorModule{Addr: cfg.InspectorAddr})
	}
	if cfg.TraceDir != "" {
		modules = append(modules, terrastream.TraceModule{Dir: cfg.TraceDir})
	}
	if opts.frames > 0 {
		modules = append(modules, frameLimit(opts.frames))
	}
	return terrastream.NewAppBuilder().
		UseModule(modules...).
		WithFrameInterval(time.Second / 60)
}

func gpuBackend(dev *gpu.Device, cfg terrastream.Config, field *noise.HeightField, ownsDevice bool) (terrastream.Backend, error) {
	gen, err := gpu.NewTerrainGenerator(dev, cfg.Layout(), field, cfg.MinHeight, cfg.MaxHeight, cfg.ReadbackTimeout())
	if err != nil {
		return terrastream.Backend{}, err
	}
	query, err := gpu.NewRayQuery(dev, cfg.Layout(), cfg.ReadbackTimeout())
	if err != nil {
		gen.Release()
		return terrastream.Backend{}, err
	}
	return terrastream.Backend{
		Name:      terrastream.BackendWGPU,
		Generator: gen,
		Ingester:  gpu.MeshIngester{Layout: cfg.Layout(), Device: dev.Device},
		Querier:   query,
		Release: func() {
			query.Release()
			gen.Release()
			if ownsDevice {
				dev.Release()
			}
		},
	}, nil
}

type loggerModule struct {
	logger *terrastream.DefaultLogger
}

func (m loggerModule) Install(a *terrastream.App, cmd *terrastream.Commands) {
	cmd.AddResources(m.logger)
}

type frameLimit uint64

func (n frameLimit) Install(a *terrastream.App, cmd *terrastream.Commands) {
	cmd.UseSystem(terrastream.System(func(c *terrastream.Commands) {
		if a.Frame() >= uint64(n) {
			c.Quit()
		}
	}).InStage(terrastream.Finale))
}

func writePreview(a *terrastream.App, opts options, logger *terrastream.DefaultLogger) {
	if opts.preview == "" {
		return
	}
	s, ok := terrastream.Resource[terrastream.Stream](a)
	if !ok {
		return
	}
	center, _ := s.Streamer.State.Center()
	img := app.RenderPreview(s.Field, s.Config.Window(), center, s.Streamer.State)
	if err := app.WritePreview(opts.preview, app.ScalePreview(img, opts.previewSize)); err != nil {
		logger.Warnf("preview: %v", err)
		return
	}
	logger.Infof("preview written to %s", opts.preview)
}
