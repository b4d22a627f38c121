package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"landmass/internal/meshing"
	"landmass/internal/noise"
	"landmass/internal/world"
)

// ErrInvalid wraps every structural validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Chunk     ChunkConfig     `yaml:"chunk"`
	Noise     NoiseConfig     `yaml:"noise"`
	Mesh      MeshConfig      `yaml:"mesh"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ChunkConfig struct {
	Resolution      int     `yaml:"resolution"`
	MaxViewDistance float32 `yaml:"max_view_distance"`
	Capacity        int     `yaml:"capacity"`
	Workers         int     `yaml:"workers"`
}

type NoiseConfig struct {
	Primitive     string     `yaml:"primitive"`
	PrimitiveSeed int64      `yaml:"primitive_seed"`
	Scale         float64    `yaml:"scale"`
	Seed          int64      `yaml:"seed"`
	Octaves       int        `yaml:"octaves"`
	Persistence   float64    `yaml:"persistence"`
	Lacunarity    float64    `yaml:"lacunarity"`
	Offset        [2]float64 `yaml:"offset,flow"`
}

type MeshConfig struct {
	HeightScale float32        `yaml:"height_scale"`
	DetailLevel int            `yaml:"detail_level"`
	HeightCurve []KeyframeSpec `yaml:"height_curve,omitempty"`
}

type KeyframeSpec struct {
	Time       float32 `yaml:"time"`
	Value      float32 `yaml:"value"`
	InTangent  float32 `yaml:"in_tangent,omitempty"`
	OutTangent float32 `yaml:"out_tangent,omitempty"`
}

type ServerConfig struct {
	Addr        string  `yaml:"addr"`
	TickRateHz  float64 `yaml:"tick_rate_hz"`
	AllowRemote bool    `yaml:"allow_remote"`
}

type TelemetryConfig struct {
	TickLogDir string `yaml:"tick_log_dir"`
	IndexDB    string `yaml:"index_db"`
}

// Load reads a YAML config. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(b, path)
}

// Parse decodes YAML over the defaults. name is only used in error messages.
func Parse(b []byte, name string) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", name, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", name, err)
	}
	return cfg, nil
}

func Defaults() Config {
	p := noise.DefaultParams()
	return Config{
		Chunk: ChunkConfig{
			Resolution:      world.ChunkResolution,
			MaxViewDistance: world.DefaultMaxViewDistance,
		},
		Noise: NoiseConfig{
			Primitive:   noise.PrimitiveSimplex,
			Scale:       p.Scale,
			Seed:        p.Seed,
			Octaves:     p.Octaves,
			Persistence: p.Persistence,
			Lacunarity:  p.Lacunarity,
		},
		Mesh: MeshConfig{
			HeightScale: 20,
		},
		Server: ServerConfig{
			Addr:       "127.0.0.1:8080",
			TickRateHz: 30,
		},
	}
}

// Normalize clamps lenient fields into range. Structural problems are left for
// Validate.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Chunk.Capacity = max(c.Chunk.Capacity, 0)
	c.Chunk.Workers = max(c.Chunk.Workers, 0)

	c.Noise.Primitive = strings.ToLower(strings.TrimSpace(c.Noise.Primitive))
	if c.Noise.Primitive == "" {
		c.Noise.Primitive = noise.PrimitiveSimplex
	}
	p := c.NoiseParams()
	c.Noise.Scale = p.Scale
	c.Noise.Octaves = p.Octaves
	c.Noise.Persistence = p.Persistence
	c.Noise.Lacunarity = p.Lacunarity

	c.Mesh.DetailLevel = meshing.ClampDetailLevel(c.Mesh.DetailLevel)

	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	c.Telemetry.TickLogDir = strings.TrimSpace(c.Telemetry.TickLogDir)
	c.Telemetry.IndexDB = strings.TrimSpace(c.Telemetry.IndexDB)
}

func (c Config) Validate() error {
	r := c.Chunk.Resolution
	if r < 2 {
		return fmt.Errorf("%w: chunk.resolution must be >= 2, got %d", ErrInvalid, r)
	}
	if r*r > world.MaxMeshVertices {
		return fmt.Errorf("%w: chunk.resolution %d exceeds %d vertices per mesh", ErrInvalid, r, world.MaxMeshVertices)
	}
	if !(c.Chunk.MaxViewDistance > 0) {
		return fmt.Errorf("%w: chunk.max_view_distance must be > 0", ErrInvalid)
	}
	if _, err := noise.NewPrimitive(c.Noise.Primitive, 0); err != nil {
		return fmt.Errorf("%w: noise.primitive %q", ErrInvalid, c.Noise.Primitive)
	}
	if !(c.Server.TickRateHz > 0) {
		return fmt.Errorf("%w: server.tick_rate_hz must be > 0", ErrInvalid)
	}
	for i, k := range c.Mesh.HeightCurve {
		for _, v := range []float32{k.Time, k.Value, k.InTangent, k.OutTangent} {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return fmt.Errorf("%w: mesh.height_curve[%d] is not finite", ErrInvalid, i)
			}
		}
	}
	return nil
}
