package terrastream

import "context"

type Commands struct {
	app *App
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

func (cmd *Commands) UseSystem(system systemScheduleBuilder) *Commands {
	cmd.app.UseSystem(system)
	return cmd
}

// OnClose registers fn to run when the app is closed.
func (cmd *Commands) OnClose(fn func()) *Commands {
	cmd.app.closers = append(cmd.app.closers, fn)
	return cmd
}

// Quit ends Run after the current frame.
func (cmd *Commands) Quit() {
	cmd.app.quit = true
}

// Go registers a background loop started by App.Serve.
func (cmd *Commands) Go(name string, fn func(ctx context.Context) error) *Commands {
	cmd.app.workers = append(cmd.app.workers, worker{name: name, fn: fn})
	return cmd
}
