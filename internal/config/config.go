// Package config loads runtime settings from defaults, an optional YAML
// file, QUIZGEN_* environment variables and command-line flags, in that
// order of precedence (later wins).
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "QUIZGEN_"

// Config holds every runtime setting.
type Config struct {
	DB         string `koanf:"db"`
	Addr       string `koanf:"addr"`
	StorageKey string `koanf:"storage-key"`
	ArchiveDir string `koanf:"archive-dir"`
	LogLevel   string `koanf:"log-level"`
	Export     string `koanf:"export"`
	ExportSet  string `koanf:"export-set"`
	Import     string `koanf:"import"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DB:         "quizgen.db",
		Addr:       "127.0.0.1:8080",
		StorageKey: "blooket_question_sets",
		LogLevel:   "info",
	}
}

// Flags returns the command-line flag set. Defaults match Default.
func Flags() *pflag.FlagSet {
	d := Default()
	fs := pflag.NewFlagSet("quizgen", pflag.ContinueOnError)
	fs.String("config", "", "Path to a YAML config file")
	fs.String("db", d.DB, "Path to the SQLite database file")
	fs.String("addr", d.Addr, "Address for the editor's HTTP server")
	fs.String("storage-key", d.StorageKey, "Key the question sets are stored under")
	fs.String("archive-dir", d.ArchiveDir, "Git repository that keeps a history of exports (disabled when empty)")
	fs.String("log-level", d.LogLevel, "Log level: debug, info, warn or error")
	fs.String("export", "", "Write the CSV of a set to this path ('-' for stdout) and exit")
	fs.String("export-set", "", "Name or id of the set to export (default: the active set)")
	fs.String("import", "", "Import questions from a .md/.txt file or directory into the active set")
	return fs
}

// Load parses args and merges every configuration source.
func Load(args []string) (Config, error) {
	fs := Flags()
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	k := koanf.New(".")

	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	// Unchanged flags only fill keys no other source has set.
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load flags: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// envKey maps QUIZGEN_ARCHIVE_DIR to archive-dir.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", "-")
}

// Level converts LogLevel to a slog level, defaulting to info.
func (c Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
