package terrastream

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

type systemFn any

// Module installs resources and systems into an App.
type Module interface {
	Install(app *App, cmd *Commands)
}

// App runs its systems stage by stage once per frame. Systems are plain functions whose
// pointer arguments are resolved from the resource set by type; a system may return an error,
// which ends the frame and is returned from Step.
type App struct {
	modules       []Module
	stages        []Stage
	systems       map[string][]systemFn
	resources     map[reflect.Type]any
	logger        Logger
	frameInterval time.Duration
	closers       []func()
	workers       []worker

	frame uint64
	quit  bool
}

func (app *App) Commands() *Commands {
	return &Commands{app: app}
}

// Frame is the number of frames stepped so far.
func (app *App) Frame() uint64 {
	return app.frame
}

// Step runs every stage once.
func (app *App) Step() error {
	app.frame++
	for _, stage := range app.stages {
		for _, system := range app.systems[stage.Name] {
			if err := app.callSystem(system); err != nil {
				return fmt.Errorf("%s: %w", stage.Name, err)
			}
		}
	}
	return nil
}

// Run steps frames until ctx is cancelled, a system asks to quit or a system fails. With a
// frame interval set, frames are paced by a ticker; otherwise they run back to back.
func (app *App) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if app.frameInterval > 0 {
		ticker := time.NewTicker(app.frameInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := app.Step(); err != nil {
			return err
		}
		if app.quit {
			return nil
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}
	}
}

// worker is a background loop registered by a module. It must return nil once its context is
// cancelled.
type worker struct {
	name string
	fn   func(ctx context.Context) error
}

// Workers lists the registered background loops.
func (app *App) Workers() []string {
	names := make([]string, len(app.workers))
	for i, w := range app.workers {
		names[i] = w.name
	}
	return names
}

// Serve starts every worker, then runs the frame loop on the calling goroutine. The first
// worker failure cancels the frame loop; the end of the frame loop cancels the workers. Serve
// returns once all of them have stopped.
func (app *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range app.workers {
		g.Go(func() error {
			if err := w.fn(gctx); err != nil {
				return fmt.Errorf("%s: %w", w.name, err)
			}
			return nil
		})
	}

	runErr := app.Run(gctx)
	cancel()
	waitErr := g.Wait()
	if runErr != nil {
		return runErr
	}
	return waitErr
}

// Close runs the cleanup hooks registered by modules, newest first.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}

		app.resources[resourceType.Elem()] = resource
		if l, ok := resource.(Logger); ok && app.logger == nil {
			app.logger = l
		}
	}
	return app
}

// Resource returns the resource of type T, if installed.
func Resource[T any](app *App) (*T, bool) {
	r, ok := app.resources[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		return nil, false
	}
	return r.(*T), true
}

var (
	typeOfCommands = reflect.TypeOf(Commands{})
	typeOfError    = reflect.TypeOf((*error)(nil)).Elem()
)

func (app *App) callSystem(system systemFn) error {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		underlyingType := argType.Elem()

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if resource, argIsResource := app.resources[underlyingType]; argIsResource {
			resourceVal := reflect.ValueOf(resource)
			typedResourceVal := reflect.NewAt(underlyingType, resourceVal.UnsafePointer())

			args[i] = typedResourceVal
		} else {
			msg := fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
				runtime.FuncForPC(systemValue.Pointer()).Name(),
				fmt.Sprint(systemType),
				fmt.Sprint(argType),
			)
			panic(msg)
		}
	}
	out := systemValue.Call(args)
	if len(out) == 1 && systemType.Out(0) == typeOfError && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}
