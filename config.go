package terrastream

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"
	"github.com/gekko3d/terrastream/terrainrt/rt/noise"

	"gopkg.in/yaml.v3"
)

const (
	BackendWGPU = "wgpu"
	BackendHost = "host"
)

// Config holds every tunable of a streaming session.
type Config struct {
	ChunkSize         uint32  `yaml:"chunk_size"`
	ChunkRadius       int     `yaml:"chunk_radius"`
	TickIntervalMs    int     `yaml:"tick_interval_ms"`
	ReadbackTimeoutMs int     `yaml:"readback_timeout_ms"`
	MinHeight         float32 `yaml:"min_height"`
	MaxHeight         float32 `yaml:"max_height"`
	Seed              int64   `yaml:"seed"`
	TerrainScale      float64 `yaml:"terrain_scale"`
	Backend           string  `yaml:"backend"`
	ResultsBuffer     int     `yaml:"results_buffer"`
	InspectorAddr     string  `yaml:"inspector_addr"`
	TraceDir          string  `yaml:"trace_dir"`
	Debug             bool    `yaml:"debug"`
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:         32,
		ChunkRadius:       10,
		TickIntervalMs:    500,
		ReadbackTimeoutMs: 5000,
		MinHeight:         -5,
		MaxHeight:         5,
		Seed:              noise.DefaultSeed,
		TerrainScale:      noise.DefaultScale,
		Backend:           BackendWGPU,
		ResultsBuffer:     8,
	}
}

// LoadConfig reads a YAML file over the defaults; keys absent from the file keep their
// default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.ChunkSize == 0 {
		errs = append(errs, errors.New("chunk_size must be positive"))
	}
	if c.ChunkRadius < 0 {
		errs = append(errs, errors.New("chunk_radius must not be negative"))
	}
	if c.TickIntervalMs <= 0 {
		errs = append(errs, errors.New("tick_interval_ms must be positive"))
	}
	if c.ReadbackTimeoutMs <= 0 {
		errs = append(errs, errors.New("readback_timeout_ms must be positive"))
	}
	if c.MinHeight >= c.MaxHeight {
		errs = append(errs, fmt.Errorf("min_height %v must be below max_height %v", c.MinHeight, c.MaxHeight))
	}
	if c.TerrainScale <= 0 {
		errs = append(errs, errors.New("terrain_scale must be positive"))
	}
	if c.Backend != BackendWGPU && c.Backend != BackendHost {
		errs = append(errs, fmt.Errorf("backend %q is not %q or %q", c.Backend, BackendWGPU, BackendHost))
	}
	if c.ResultsBuffer <= 0 {
		errs = append(errs, errors.New("results_buffer must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) Layout() core.Layout {
	return core.Layout{Size: c.ChunkSize}
}

func (c Config) Window() core.Window {
	return core.Window{Radius: c.ChunkRadius, Edge: c.ChunkSize}
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

func (c Config) ReadbackTimeout() time.Duration {
	return time.Duration(c.ReadbackTimeoutMs) * time.Millisecond
}

func (c Config) HeightField() *noise.HeightField {
	return noise.New(c.Seed, c.TerrainScale)
}
