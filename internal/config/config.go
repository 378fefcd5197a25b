package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// WebSocket connection timeouts
	ReadTimeout = 60 * time.Second // How long to wait for client messages/pong
	PingRate    = 30 * time.Second // How often to send ping to client

	// Session cleanup
	CleanupInterval = 5 * time.Minute // How often to check for stale sessions

	DefaultAoiVariant      = "squares"
	DefaultAoiCellSize     = 200.0
	DefaultAoiTickInterval = 100 * time.Millisecond
	DefaultBeaconGridX     = 0
	DefaultBeaconGridZ     = 0
	DefaultBeaconRadius    = 300.0
)

// Aoi holds the settings needed to construct an engine.Config for a
// session: which index variant to run, its tick rate, and its
// variant-specific parameters.
type Aoi struct {
	Variant      string   `toml:"variant"` // "squares" or "cross"
	CellSize     float64  `toml:"cell_size"`
	TickInterval Duration `toml:"tick_interval"`
	BeaconGridX  int      `toml:"beacon_grid_x"` // cross only; beacons are off when both grid counts are 0
	BeaconGridZ  int      `toml:"beacon_grid_z"`
	BeaconRadius float64  `toml:"beacon_radius"`
	BoundsXMin   float64  `toml:"bounds_x_min"`
	BoundsXMax   float64  `toml:"bounds_x_max"`
	BoundsZMin   float64  `toml:"bounds_z_min"`
	BoundsZMax   float64  `toml:"bounds_z_max"`
}

// Duration lets a TOML file spell out tick_interval as a Go duration
// string ("100ms") instead of a bare integer.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

type Config struct {
	Port string
	Aoi  Aoi
}

func defaultConfig() *Config {
	return &Config{
		Port: "5500",
		Aoi: Aoi{
			Variant:      DefaultAoiVariant,
			CellSize:     DefaultAoiCellSize,
			TickInterval: Duration(DefaultAoiTickInterval),
			BeaconGridX:  DefaultBeaconGridX,
			BeaconGridZ:  DefaultBeaconGridZ,
			BeaconRadius: DefaultBeaconRadius,
		},
	}
}

// LoadConfig builds a Config from defaults, then a config.toml in the
// working directory if present, then PORT/AOI_VARIANT env overrides.
// A missing or unparsable config.toml is not an error: the server
// starts with defaults, same as the absence of a PORT env var always
// has.
func LoadConfig() *Config {
	cfg := defaultConfig()

	if _, err := toml.DecodeFile("config.toml", cfg); err != nil && !os.IsNotExist(err) {
		// Malformed config.toml: keep defaults rather than fail startup.
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if variant := os.Getenv("AOI_VARIANT"); variant != "" {
		cfg.Aoi.Variant = variant
	}

	return cfg
}
