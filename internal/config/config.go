package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// CurrentVersion is the only config file version this build understands.
	CurrentVersion = 1

	configFile = "config.toml"
)

// Config holds all palace configuration.
type Config struct {
	Version    int              `toml:"version"`
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Palaces    PalacesConfig    `toml:"palaces"`
	Simulation SimulationConfig `toml:"simulation"`
	Output     OutputConfig     `toml:"output"`
	Log        LogConfig        `toml:"log"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// PalacesConfig locates palace JSON files on disk.
type PalacesConfig struct {
	Dir       string `toml:"dir"`
	BackupDir string `toml:"backup_dir"`
}

// SimulationConfig are the defaults for `palace simulate` and the
// simulations API.
type SimulationConfig struct {
	DurationDays int      `toml:"duration_days"`
	SampleSize   int      `toml:"sample_size"`
	Iterations   int      `toml:"iterations"`
	Checkpoints  []int    `toml:"checkpoints"`
	Algorithms   []string `toml:"algorithms"` // challenger first, incumbent second
	Seed         uint64   `toml:"seed"`       // 0 picks a random seed per run
	Workers      int      `toml:"workers"`
	Timeout      string   `toml:"timeout"` // e.g. "10m"; empty for none
}

type OutputConfig struct {
	Dir string `toml:"dir"`
}

// LogConfig controls the CLI logger. File, when set, receives a copy of every
// record.
type LogConfig struct {
	Debug bool   `toml:"debug"`
	JSON  bool   `toml:"json"`
	File  string `toml:"file,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Version: CurrentVersion,
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Palaces: PalacesConfig{
			Dir:       "palaces",
			BackupDir: "backups",
		},
		Simulation: SimulationConfig{
			DurationDays: 90,
			SampleSize:   50,
			Iterations:   100,
			Checkpoints:  []int{30, 60, 90},
			Algorithms:   []string{"fibonacci", "exponential"},
			Workers:      1,
		},
		Output: OutputConfig{
			Dir: ".",
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// TimeoutDuration parses Simulation.Timeout. An empty value means no limit.
func (s SimulationConfig) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parse simulation timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("simulation timeout %s is negative", d)
	}
	return d, nil
}

// DefaultPath returns the default config path: ~/.palace/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".palace", configFile), nil
}

// Load reads the config at path. A missing file yields Default(). Fields left
// unset in the file are filled from Default().
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// Parse decodes TOML without applying defaults. It rejects versions other
// than CurrentVersion.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Version != 0 && cfg.Version != CurrentVersion {
		return Config{}, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating the parent directory.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg from PALACE_DB, PALACE_DEBUG and PALACE_PORT using
// getenv (os.Getenv outside tests).
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("PALACE_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := getenv("PALACE_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse PALACE_DEBUG: %w", err)
		}
		cfg.Log.Debug = debug
	}
	if v := getenv("PALACE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PALACE_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// applyDefaults fills zero-value fields in cfg with values from Default().
func applyDefaults(cfg *Config) {
	d := Default()

	if cfg.Version == 0 {
		cfg.Version = d.Version
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = d.Server.Bind
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Palaces.Dir == "" {
		cfg.Palaces.Dir = d.Palaces.Dir
	}
	if cfg.Palaces.BackupDir == "" {
		cfg.Palaces.BackupDir = d.Palaces.BackupDir
	}

	s := &cfg.Simulation
	if s.DurationDays == 0 {
		s.DurationDays = d.Simulation.DurationDays
	}
	if s.SampleSize == 0 {
		s.SampleSize = d.Simulation.SampleSize
	}
	if s.Iterations == 0 {
		s.Iterations = d.Simulation.Iterations
	}
	if len(s.Checkpoints) == 0 {
		s.Checkpoints = d.Simulation.Checkpoints
	}
	if len(s.Algorithms) == 0 {
		s.Algorithms = d.Simulation.Algorithms
	}
	if s.Workers == 0 {
		s.Workers = d.Simulation.Workers
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = d.Output.Dir
	}
}
