package conf

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration wraps time.Duration so it can be written as "30s" in TOML.
type Duration string

func (d Duration) Duration() time.Duration {
	v, err := time.ParseDuration(string(d))
	if err != nil {
		return 0
	}
	return v
}

// Bootstrap is the top level configuration object.
type Bootstrap struct {
	BuildVersion string `toml:"-"`
	Debug        bool   `toml:"debug"`

	Server Server `toml:"server"`
	Data   Data   `toml:"data"`
	Detect Detect `toml:"detect"`
	Record Record `toml:"record"`
	Source Source `toml:"source"`
}

type Server struct {
	HTTP HTTP `toml:"http"`
}

type HTTP struct {
	Port      int    `toml:"port"`
	JwtSecret string `toml:"jwt_secret"`
	PProf     PProf  `toml:"pprof"`
}

type PProf struct {
	Enabled   bool     `toml:"enabled"`
	AccessIps []string `toml:"access_ips"`
}

type Data struct {
	Database Database `toml:"database"`
}

type Database struct {
	// Dsn decides the driver: "postgres://..." / "mysql://..." / sqlite file path.
	Dsn             string   `toml:"dsn"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	MaxOpenConns    int      `toml:"max_open_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
	SlowThreshold   Duration `toml:"slow_threshold"`
}

// Detect configures the two DNN model instances.
type Detect struct {
	Weapon  Model `toml:"weapon"`
	General Model `toml:"general"`
	// InputSize is the square DNN input resolution, e.g. 640.
	InputSize int `toml:"input_size"`
	// InferTimeout bounds one model call. A model that exceeds it aborts
	// the session instead of wedging the loop forever.
	InferTimeout Duration `toml:"infer_timeout"`
}

type Model struct {
	Weights string `toml:"weights"`
	Config  string `toml:"config"`
	Names   string `toml:"names"`
}

// Record configures the clip recorder.
type Record struct {
	// OutputDir is a flat directory, clips are never nested.
	OutputDir string `toml:"output_dir"`
	// CooldownFrames is the number of consecutive negative frames required
	// before an open clip is closed. 0 keeps the original single-frame stop.
	CooldownFrames int `toml:"cooldown_frames"`
	// RetainDays <= 0 disables clip cleanup.
	RetainDays int `toml:"retain_days"`
}

type Source struct {
	// Samples maps a display name to a bundled video path.
	Samples map[string]string `toml:"samples"`
	TempDir string            `toml:"temp_dir"`
}

// SetupConfig reads TOML from path and fills in defaults.
func SetupConfig(path string) (*Bootstrap, error) {
	var bc Bootstrap
	setDefault(&bc)

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(b, &bc); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	return &bc, nil
}

func setDefault(bc *Bootstrap) {
	bc.Server.HTTP.Port = 8080
	bc.Data.Database = Database{
		Dsn:             "kestrel.db",
		MaxIdleConns:    10,
		MaxOpenConns:    50,
		ConnMaxLifetime: "30m",
		SlowThreshold:   "200ms",
	}
	bc.Detect.InputSize = 640
	bc.Detect.InferTimeout = "5s"
	bc.Record.OutputDir = "detected_clips"
}
