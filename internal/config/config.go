// Package config loads the engine's tunables (§6): layered defaults, an
// optional file, and PRECACHE_-prefixed environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	jsonparser "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/mapstructure"
)

// Config is the effective set of tunables an Engine is constructed with.
type Config struct {
	PrecacheLimit int64  `koanf:"precache_limit" mapstructure:"precache_limit"`
	PrecacheSync  bool   `koanf:"precache_sync" mapstructure:"precache_sync"`
	MetricsAddr   string `koanf:"metrics_addr" mapstructure:"metrics_addr"`
	Debug         bool   `koanf:"debug" mapstructure:"debug"`
	PrettyLogs    bool   `koanf:"pretty_logs" mapstructure:"pretty_logs"`
}

const defaultsYAML = `
precache_limit: 1073741824
precache_sync: true
metrics_addr: ""
debug: false
pretty_logs: false
`

// Load builds the layered configuration: baked-in defaults, an optional
// file (configPath, or "" to skip), then PRECACHE_-prefixed environment
// variables — each layer overriding the previous one, per §6's expansion
// note.
func Load(configPath string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaultsYAML)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		var parser koanf.Parser = yaml.Parser()
		if strings.HasSuffix(configPath, ".json") {
			parser = jsonparser.Parser()
		}
		if err := k.Load(file.Provider(configPath), parser); err != nil {
			return Config{}, fmt.Errorf("load config file %q: %w", configPath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("PRECACHE_", ".", func(s, v string) (string, interface{}) {
		key := "precache_" + strings.ToLower(strings.TrimPrefix(s, "PRECACHE_"))
		if key == "precache_sync" {
			// §6 / original cache_files(): atol(env) != 0, not a strict
			// bool parse — PRECACHE_SYNC=2 must enable sync just like
			// PRECACHE_SYNC=1 does.
			return key, ParseBoolEnv(v, k.Bool("precache_sync"))
		}
		return key, v
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// ParseBoolEnv mirrors §6's PRECACHE_SYNC rule directly: "0" disables,
// any other integer enables, and an empty or non-integer value yields
// defaultValue. Load's environment layer decodes PRECACHE_SYNC through it
// rather than through koanf's generic boolean coercion.
func ParseBoolEnv(value string, defaultValue bool) bool {
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n != 0
}

// JSON renders cfg the way --print-config dumps it: effective
// configuration, one JSON object, suitable for diffing env-var
// precedence without running any precache.
func (c Config) JSON() (string, error) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
