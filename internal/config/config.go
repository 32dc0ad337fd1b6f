// Package config loads lvltool settings from flags, environment and an
// optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dyuri/lvltool/internal/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every tunable setting
type Config struct {
	Log    logging.Config
	Decode DecodeConfig
	Watch  WatchConfig
	Cache  CacheConfig
}

// DecodeConfig controls level decoding
type DecodeConfig struct {
	Parallel    bool // Decode regions concurrently
	Workers     int  // Concurrency limit, 0 = unlimited
	SkipTileset bool // Do not decode the tileset bitmap
}

// WatchConfig controls the watch command
type WatchConfig struct {
	Debounce time.Duration
}

// CacheConfig controls the decoded map cache
type CacheConfig struct {
	MaxCostMB int64
}

// EnvPrefix prefixes every environment variable, e.g. LVLTOOL_LOG_LEVEL
const EnvPrefix = "LVLTOOL"

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("decode.parallel", false)
	v.SetDefault("decode.workers", 0)
	v.SetDefault("decode.skip_tileset", false)
	v.SetDefault("watch.debounce", 100*time.Millisecond)
	v.SetDefault("cache.max_cost_mb", 64)
}

// BindFlags maps command line flags onto config keys. Flags that are
// absent from the set are ignored.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"log.level":           "log-level",
		"log.format":          "log-format",
		"log.file":            "log-file",
		"decode.parallel":     "parallel",
		"decode.workers":      "workers",
		"decode.skip_tileset": "skip-tileset",
		"watch.debounce":      "debounce",
	}
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads configuration into a Config. When path is empty,
// lvltool.yaml is searched in the working directory and
// $HOME/.config/lvltool; a missing file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lvltool")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "lvltool"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return &Config{
		Log: logging.Config{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
		Decode: DecodeConfig{
			Parallel:    v.GetBool("decode.parallel"),
			Workers:     v.GetInt("decode.workers"),
			SkipTileset: v.GetBool("decode.skip_tileset"),
		},
		Watch: WatchConfig{
			Debounce: v.GetDuration("watch.debounce"),
		},
		Cache: CacheConfig{
			MaxCostMB: v.GetInt64("cache.max_cost_mb"),
		},
	}, nil
}
