package master

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every Master option from spec.md §4.3/§6. Defaults match the
// spec exactly: 10x10 board, 200ms pacing, 10s inactivity timeout, seed from
// wall clock.
type Config struct {
	Width       int      `yaml:"width"`
	Height      int      `yaml:"height"`
	DelayMS     int      `yaml:"delay_ms"`
	TimeoutSec  int      `yaml:"timeout_sec"`
	Seed        int64    `yaml:"seed"`
	ViewPath    string   `yaml:"view_path"`
	PlayerPaths []string `yaml:"player_paths"`

	// Ambient additions (SPEC_FULL.md AMBIENT STACK / DOMAIN STACK).
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	LogOutput   string `yaml:"log_output"`
	LogDir      string `yaml:"log_dir"`
	MetricsAddr string `yaml:"metrics_addr"` // empty disables the metrics server
}

// DefaultConfig returns the spec.md §4.3 defaults.
func DefaultConfig() Config {
	return Config{
		Width:      10,
		Height:     10,
		DelayMS:    200,
		TimeoutSec: 10,
		Seed:       time.Now().UnixNano(),
		LogLevel:   "info",
		LogFormat:  "text",
		LogOutput:  "stdout",
	}
}

// stringList implements flag.Value to collect repeated -p flags.
type stringList struct{ values *[]string }

func (s stringList) String() string {
	if s.values == nil {
		return ""
	}
	return fmt.Sprint(*s.values)
}

func (s stringList) Set(v string) error {
	*s.values = append(*s.values, v)
	return nil
}

// ParseFlags parses the Master CLI of spec.md §6:
//
//	master [-w W] [-h H] [-d delay_ms] [-t timeout_sec] [-s seed]
//	       [-v view_path] [-p player_path]... [-c config.yaml] player_path...
//
// Flags override values loaded from -c's YAML file, which in turn override
// DefaultConfig. At least one player path is required, from -p flags,
// positional arguments and the config file's player_paths combined (in that
// order), bounded by state.MaxPlayers.
func ParseFlags(args []string) (Config, error) {
	fs := flag.NewFlagSet("master", flag.ContinueOnError)

	cfg := DefaultConfig()
	var configFile string
	var playerFlags []string

	fs.IntVar(&cfg.Width, "w", cfg.Width, "board width")
	fs.IntVar(&cfg.Height, "h", cfg.Height, "board height")
	fs.IntVar(&cfg.DelayMS, "d", cfg.DelayMS, "pacing / readiness-wait timeout in milliseconds")
	fs.IntVar(&cfg.TimeoutSec, "t", cfg.TimeoutSec, "inactivity timeout in seconds")
	fs.Int64Var(&cfg.Seed, "s", cfg.Seed, "random seed")
	fs.StringVar(&cfg.ViewPath, "v", "", "path to the view executable")
	fs.Var(stringList{&playerFlags}, "p", "path to a player executable (repeatable)")
	fs.StringVar(&configFile, "c", "", "optional YAML config file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")
	fs.StringVar(&cfg.LogOutput, "log-output", cfg.LogOutput, "stdout, stderr, or file")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "directory for log-output=file")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "address for the Prometheus metrics server, e.g. :9090 (disabled if empty)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if configFile != "" {
		fileCfg, err := loadConfigFile(configFile)
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&cfg, fileCfg)
		// Re-parse flags on top of the file so explicit flags still win.
		// playerFlags must be cleared first: fs.Parse replays every -p from
		// args, and without resetting it first each one would be appended a
		// second time on top of what the first parse already collected.
		playerFlags = nil
		if err := fs.Parse(args); err != nil {
			return Config{}, err
		}
	}

	filePaths := cfg.PlayerPaths
	cfg.PlayerPaths = append(append([]string{}, playerFlags...), fs.Args()...)
	cfg.PlayerPaths = append(cfg.PlayerPaths, filePaths...)
	if len(cfg.PlayerPaths) == 0 {
		return Config{}, fmt.Errorf("master: at least one player path is required")
	}
	if len(cfg.PlayerPaths) > maxPlayers {
		return Config{}, fmt.Errorf("master: %d player paths given, at most %d are supported", len(cfg.PlayerPaths), maxPlayers)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Config{}, fmt.Errorf("master: width and height must be positive")
	}

	return cfg, nil
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("master: reading config file: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("master: parsing config file: %w", err)
	}
	return cfg, nil
}

// mergeConfig overlays non-zero fields from file onto cfg; flags parsed
// afterward take final precedence.
func mergeConfig(cfg *Config, file Config) {
	if file.Width != 0 {
		cfg.Width = file.Width
	}
	if file.Height != 0 {
		cfg.Height = file.Height
	}
	if file.DelayMS != 0 {
		cfg.DelayMS = file.DelayMS
	}
	if file.TimeoutSec != 0 {
		cfg.TimeoutSec = file.TimeoutSec
	}
	if file.Seed != 0 {
		cfg.Seed = file.Seed
	}
	if file.ViewPath != "" {
		cfg.ViewPath = file.ViewPath
	}
	if len(file.PlayerPaths) > 0 {
		cfg.PlayerPaths = append(cfg.PlayerPaths, file.PlayerPaths...)
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.LogFormat != "" {
		cfg.LogFormat = file.LogFormat
	}
	if file.LogOutput != "" {
		cfg.LogOutput = file.LogOutput
	}
	if file.LogDir != "" {
		cfg.LogDir = file.LogDir
	}
	if file.MetricsAddr != "" {
		cfg.MetricsAddr = file.MetricsAddr
	}
}
