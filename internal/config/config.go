// Package config loads the verifier's runtime configuration:
// API keys, offline-index paths, concurrency and timeout knobs, disabled
// backends, and the opt-in author-comparison flag. Values layer local TOML
// file < environment variables < explicit CLI flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/gianlucasb/hallucinator/internal/verify/engine"
)

// Config is the plain value type the engine actually consumes. Loading it
// from files/env/flags is this package's job; the engine never reads
// viper or the environment directly.
type Config struct {
	OpenAlexKey          string
	S2APIKey             string
	DblpOfflinePath      string
	OpenAlexOfflinePath  string
	DisabledDBs          []string
	MaxConcurrentRefs    int
	DBTimeoutSecs        int
	DBTimeoutShortSecs   int
	CheckOpenAlexAuthors bool
	CacheDiskPath        string
}

// ToEngineConfig converts to the engine's own Config shape.
func (c Config) ToEngineConfig() engine.Config {
	return engine.Config{
		OpenAlexKey:          c.OpenAlexKey,
		S2APIKey:             c.S2APIKey,
		DblpOfflinePath:      c.DblpOfflinePath,
		OpenAlexOfflinePath:  c.OpenAlexOfflinePath,
		DisabledDBs:          c.DisabledDBs,
		MaxConcurrentRefs:    c.MaxConcurrentRefs,
		DBTimeoutSecs:        c.DBTimeoutSecs,
		DBTimeoutShortSecs:   c.DBTimeoutShortSecs,
		CacheDiskPath:        c.CacheDiskPath,
		CheckOpenAlexAuthors: c.CheckOpenAlexAuthors,
	}
}

// Overrides carries explicit CLI flag values, which win over both the
// config file and the environment. A nil pointer means "flag not set".
type Overrides struct {
	OpenAlexKey          *string
	S2APIKey             *string
	DblpOfflinePath      *string
	OpenAlexOfflinePath  *string
	DisabledDBs          *[]string
	CheckOpenAlexAuthors *bool
}

// Load reads tomlPath (if it exists — a missing file is not an error),
// applies environment variable fallbacks, then applies explicit CLI
// overrides, in that increasing-precedence order.
func Load(tomlPath string, overrides Overrides) (Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetDefault("max_concurrent_refs", engine.DefaultMaxConcurrentRefs)
	v.SetDefault("db_timeout_secs", engine.DefaultDBTimeoutSecs)
	v.SetDefault("db_timeout_short_secs", engine.DefaultDBTimeoutShortSecs)
	v.SetDefault("check_openalex_authors", false)

	if tomlPath != "" {
		v.SetConfigFile(tomlPath)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config file %s: %w", tomlPath, err)
			}
		}
	}

	cfg := Config{
		OpenAlexKey:          v.GetString("openalex_key"),
		S2APIKey:             v.GetString("s2_api_key"),
		DblpOfflinePath:      v.GetString("dblp_offline_path"),
		OpenAlexOfflinePath:  v.GetString("openalex_offline_path"),
		DisabledDBs:          splitCSV(v.GetString("disabled_dbs")),
		MaxConcurrentRefs:    v.GetInt("max_concurrent_refs"),
		DBTimeoutSecs:        v.GetInt("db_timeout_secs"),
		DBTimeoutShortSecs:   v.GetInt("db_timeout_short_secs"),
		CheckOpenAlexAuthors: v.GetBool("check_openalex_authors"),
		CacheDiskPath:        v.GetString("cache_path"),
	}

	applyEnv(&cfg)
	applyOverrides(&cfg, overrides)

	return cfg, nil
}

// applyEnv applies the fallback environment variables. A set variable
// overrides the TOML file's value; explicit CLI flags are applied after
// this and override both.
func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENALEX_KEY"); v != "" {
		cfg.OpenAlexKey = v
	}
	if v := os.Getenv("S2_API_KEY"); v != "" {
		cfg.S2APIKey = v
	}
	if v := os.Getenv("DBLP_OFFLINE_PATH"); v != "" {
		cfg.DblpOfflinePath = v
	}
	if v := os.Getenv("DB_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.DBTimeoutSecs = secs
		}
	}
	if v := os.Getenv("DB_TIMEOUT_SHORT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.DBTimeoutShortSecs = secs
		}
	}
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.OpenAlexKey != nil {
		cfg.OpenAlexKey = *o.OpenAlexKey
	}
	if o.S2APIKey != nil {
		cfg.S2APIKey = *o.S2APIKey
	}
	if o.DblpOfflinePath != nil {
		cfg.DblpOfflinePath = *o.DblpOfflinePath
	}
	if o.OpenAlexOfflinePath != nil {
		cfg.OpenAlexOfflinePath = *o.OpenAlexOfflinePath
	}
	if o.DisabledDBs != nil {
		cfg.DisabledDBs = *o.DisabledDBs
	}
	if o.CheckOpenAlexAuthors != nil {
		cfg.CheckOpenAlexAuthors = *o.CheckOpenAlexAuthors
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
