package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Editor    EditorConfig    `toml:"editor"`
	Project   ProjectConfig   `toml:"project"`
	Skin      SkinConfig      `toml:"skin"`
	History   HistoryConfig   `toml:"history"`
	Journal   JournalConfig   `toml:"journal"`
	Scripting ScriptingConfig `toml:"scripting"`
	Logging   LoggingConfig   `toml:"logging"`
}

type EditorConfig struct {
	Name      string        `toml:"name"`
	TickRate  time.Duration `toml:"tick_rate"`
	StartTime int64         // set at boot, not from config
}

type ProjectConfig struct {
	Dir                string `toml:"dir"`
	TrashDir           string `toml:"trash_dir"`
	ProtectedNamespace string `toml:"protected_namespace"` // never deletable
}

type SkinConfig struct {
	Path string `toml:"path"` // empty = built-in skin
}

type HistoryConfig struct {
	MaxUndo int `toml:"max_undo"` // 0 = unbounded
}

type JournalConfig struct {
	Enabled            bool   `toml:"enabled"`
	DSN                string `toml:"dsn"` // postgres://... or a sqlite file path
	FlushIntervalTicks int    `toml:"flush_interval_ticks"`
}

type ScriptingConfig struct {
	LibDir string `toml:"lib_dir"` // helper .lua files loaded before every script; empty = none
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Load reads the TOML file at path over the defaults. A missing file is not
// an error: the editor starts with defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Editor.StartTime = time.Now().Unix()
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaults()
}

func (c *Config) validate() error {
	if c.History.MaxUndo < 0 {
		return fmt.Errorf("history.max_undo must be >= 0, got %d", c.History.MaxUndo)
	}
	if c.Editor.TickRate <= 0 {
		return fmt.Errorf("editor.tick_rate must be positive")
	}
	if c.Journal.Enabled && c.Journal.DSN == "" {
		return fmt.Errorf("journal.dsn is required when the journal is enabled")
	}
	if c.Journal.FlushIntervalTicks <= 0 {
		c.Journal.FlushIntervalTicks = 1
	}
	return nil
}

func defaults() *Config {
	data := dataDir()
	return &Config{
		Editor: EditorConfig{
			Name:     "stencil",
			TickRate: 16 * time.Millisecond,
		},
		Project: ProjectConfig{
			Dir:                filepath.Join(data, "project"),
			TrashDir:           filepath.Join(data, "trash"),
			ProtectedNamespace: "_misc",
		},
		History: HistoryConfig{
			MaxUndo: 0,
		},
		Journal: JournalConfig{
			Enabled:            false,
			DSN:                filepath.Join(data, "journal.db"),
			FlushIntervalTicks: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func dataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "stencil3")
	}
	return filepath.Join(os.TempDir(), "stencil3")
}
