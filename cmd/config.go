// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/proparm/console/pkg/proplink"
	"github.com/spf13/cobra"
)

// consoleConfig is the resolved configuration shared by every command
type consoleConfig struct {
	Port        string
	Baud        int
	URL         string
	Username    string
	NoSSLVerify bool

	PollInterval   time.Duration
	ReadTimeout    time.Duration
	StatsInterval  time.Duration
	QueueDepth     int
	BufferCapacity int
	TimeStep       float64

	LogLevel string
	LogFile  string

	// Initial parameter values, keyed by parameter tag
	Parameters map[proplink.Tag]float64
}

// fileConfig mirrors the TOML file. Durations are strings ("10ms").
type fileConfig struct {
	Port           string             `toml:"port"`
	Baud           int                `toml:"baud"`
	URL            string             `toml:"url"`
	Username       string             `toml:"username"`
	PollInterval   string             `toml:"poll_interval"`
	ReadTimeout    string             `toml:"read_timeout"`
	QueueDepth     int                `toml:"queue_depth"`
	BufferCapacity int                `toml:"buffer_capacity"`
	TimeStep       float64            `toml:"time_step"`
	StatsInterval  string             `toml:"stats_interval"`
	LogLevel       string             `toml:"log_level"`
	Parameters     map[string]float64 `toml:"parameters"`
}

func defaultConsoleConfig() consoleConfig {
	params := make(map[proplink.Tag]float64)
	for _, p := range proplink.Parameters() {
		params[p.Tag] = p.Default
	}
	return consoleConfig{
		Port:           proplink.DefaultPortName,
		Baud:           proplink.DefaultBaudRate,
		PollInterval:   proplink.DefaultPollInterval,
		ReadTimeout:    proplink.DefaultReadTimeout,
		QueueDepth:     proplink.DefaultQueueDepth,
		BufferCapacity: proplink.DefaultCapacity,
		TimeStep:       proplink.DefaultTimeStep,
		LogLevel:       "info",
		Parameters:     params,
	}
}

// loadConfigFile overlays the keys present in path onto cfg
func loadConfigFile(cfg *consoleConfig, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud") {
		if raw.Baud <= 0 {
			return fmt.Errorf("parse baud: must be positive, got %d", raw.Baud)
		}
		cfg.Baud = raw.Baud
	}
	if meta.IsDefined("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("username") {
		cfg.Username = strings.TrimSpace(raw.Username)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"poll_interval", raw.PollInterval, &cfg.PollInterval},
		{"read_timeout", raw.ReadTimeout, &cfg.ReadTimeout},
		{"stats_interval", raw.StatsInterval, &cfg.StatsInterval},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("queue_depth") {
		cfg.QueueDepth = raw.QueueDepth
	}
	if meta.IsDefined("buffer_capacity") {
		cfg.BufferCapacity = raw.BufferCapacity
	}
	if meta.IsDefined("time_step") {
		if raw.TimeStep <= 0 {
			return fmt.Errorf("parse time_step: must be positive, got %v", raw.TimeStep)
		}
		cfg.TimeStep = raw.TimeStep
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	for key, value := range raw.Parameters {
		if len(key) != 1 {
			return fmt.Errorf("parameters.%s: %w", key, proplink.ErrUnknownTag)
		}
		param, ok := proplink.LookupParameter(proplink.Tag(key[0]))
		if !ok {
			return fmt.Errorf("parameters.%s: %w", key, proplink.ErrUnknownTag)
		}
		if err := param.Check(value); err != nil {
			return fmt.Errorf("parameters.%s: %w", key, err)
		}
		cfg.Parameters[param.Tag] = value
	}

	return nil
}

// resolveConfig builds the configuration for c: defaults, then the config
// file, then the environment, then any flag the user set explicitly
func resolveConfig(c *cobra.Command) (consoleConfig, error) {
	cfg := defaultConsoleConfig()

	if configPath != "" {
		if err := loadConfigFile(&cfg, configPath); err != nil {
			return consoleConfig{}, err
		}
	}

	applyEnvOverrides(&cfg)

	flags := c.Flags()
	if flags.Changed("port") {
		cfg.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.Username = wsUsername
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	cfg.NoSSLVerify = wsNoSSLVerify
	cfg.LogFile = logFile

	return cfg, nil
}
