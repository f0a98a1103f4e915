package terrastream

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogger_LevelsAndNames(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLoggerTo(&out, &errOut, "terrastream", false)
	stream := l.Named("stream")

	stream.Debugf("hidden %d", 1)
	stream.Infof("ready")
	stream.Warnf("slow")
	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[terrastream/stream]")
	assert.Contains(t, out.String(), "ready")
	assert.Contains(t, errOut.String(), "slow")

	l.SetDebug(true)
	assert.True(t, stream.DebugEnabled(), "named loggers share the debug switch")
	stream.Debugf("shown %d", 2)
	assert.Contains(t, out.String(), "shown 2")
}

func TestApp_LoggerFallsBackToNop(t *testing.T) {
	app := NewAppBuilder().Build()
	assert.NotNil(t, app.Logger())
	assert.False(t, app.Logger().DebugEnabled())

	var nilApp *App
	assert.NotNil(t, nilApp.Logger())

	app = NewAppBuilder().UseModule(LoggingModule{Prefix: "t", Debug: true}).Build()
	assert.True(t, app.Logger().DebugEnabled())
	_, ok := componentLogger(app, "stream").(*DefaultLogger)
	assert.True(t, ok)
}

type taggedLogger struct {
	nopLogger
	tag string
}

type taggedLogging struct{ tag string }

func (m taggedLogging) Install(app *App, cmd *Commands) {
	cmd.AddResources(&taggedLogger{tag: m.tag})
}

func TestApp_LoggerIsFirstInstalled(t *testing.T) {
	for i := 0; i < 20; i++ {
		app := NewAppBuilder().
			UseModule(taggedLogging{tag: "first"}).
			UseModule(LoggingModule{Prefix: "second"}).
			Build()
		l, ok := app.Logger().(*taggedLogger)
		require.True(t, ok)
		assert.Equal(t, "first", l.tag)
	}

	app := NewAppBuilder().
		UseModule(LoggingModule{Prefix: "first", Debug: true}).
		UseModule(taggedLogging{tag: "second"}).
		Build()
	_, ok := app.Logger().(*DefaultLogger)
	assert.True(t, ok)
	assert.True(t, app.Logger().DebugEnabled())
}
