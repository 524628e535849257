// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/stager/lib/markerlog"
)

// Config is the master configuration for a stager run.
type Config struct {
	// Experiment selects the paradigm and its params.
	Experiment ExperimentConfig `yaml:"experiment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Session configures marker and event recording.
	Session SessionConfig `yaml:"session"`

	// Remote is the default peer for remote-driven experiments.
	Remote RemoteConfig `yaml:"remote"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`
}

// ExperimentConfig selects the paradigm.
type ExperimentConfig struct {
	// Name is the registry key of the experiment module.
	Name string `yaml:"name"`

	// Seed drives every random decision of the timeline. Zero picks
	// a fresh seed per run, which is logged so the run can be
	// reproduced.
	Seed uint64 `yaml:"seed"`

	// Params is handed to the module unparsed. Each module decodes
	// it strictly against its own defaults.
	Params yaml.Node `yaml:"params"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Data is where recordings are written.
	// Default: ${HOME}/stager
	Data string `yaml:"data"`
}

// SessionConfig configures recording.
type SessionConfig struct {
	// MarkerLog is the marker log file path. Empty disables the log.
	// Default: ${STAGER_DATA}/markers.stgm
	MarkerLog string `yaml:"marker_log"`

	// EventLog is the CSV event log path. Empty disables it.
	// Default: ${STAGER_DATA}/events.csv
	EventLog string `yaml:"event_log"`

	// Compression is the marker log body compression: none, lz4, or
	// zstd.
	// Default: zstd
	Compression string `yaml:"compression"`

	// MarkerBuffer is the capacity of the queue between the
	// scheduler and the marker log. Zero selects the default.
	MarkerBuffer int `yaml:"marker_buffer"`

	// LockMemory pins the process in RAM for the run.
	LockMemory bool `yaml:"lock_memory"`

	// Nice is the scheduling priority for the run, -20 to 19. Zero
	// leaves the priority alone.
	Nice int `yaml:"nice"`
}

// RemoteConfig locates a remote peer.
type RemoteConfig struct {
	// Network is tcp or unix.
	// Default: tcp
	Network string `yaml:"network"`

	// Address is the peer address. Empty leaves the choice to the
	// experiment module.
	Address string `yaml:"address"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	// Default: info
	Level string `yaml:"level"`

	// Format is text, json, or auto (text on a terminal, json
	// otherwise).
	// Default: auto
	Format string `yaml:"format"`
}

// Default returns the default configuration. Every field the file
// leaves out keeps its value from here.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Paths: PathsConfig{
			Data: filepath.Join(homeDir, "stager"),
		},
		Session: SessionConfig{
			MarkerLog:   "${STAGER_DATA}/markers.stgm",
			EventLog:    "${STAGER_DATA}/events.csv",
			Compression: markerlog.CompressionZstd.String(),
		},
		Remote: RemoteConfig{
			Network: "tcp",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the STAGER_CONFIG environment
// variable. There is no discovery: if STAGER_CONFIG is not set, this
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv("STAGER_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("STAGER_CONFIG environment variable not set; " +
			"set it to the path of your stager.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path. Files ending in .json or
// .jsonc may carry comments and trailing commas.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is a subset of YAML once comments are stripped.
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.Data = expandVars(c.Paths.Data, vars)
	vars["STAGER_DATA"] = c.Paths.Data

	c.Session.MarkerLog = expandVars(c.Session.MarkerLog, vars)
	c.Session.EventLog = expandVars(c.Session.EventLog, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Provided vars first, then the environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Experiment.Name == "" {
		errs = append(errs, fmt.Errorf("experiment.name is required"))
	}

	if _, err := markerlog.ParseCompression(c.Session.Compression); err != nil {
		errs = append(errs, fmt.Errorf("session.compression: %w", err))
	}
	if c.Session.MarkerBuffer < 0 {
		errs = append(errs, fmt.Errorf("session.marker_buffer must not be negative"))
	}
	if c.Session.Nice < -20 || c.Session.Nice > 19 {
		errs = append(errs, fmt.Errorf("session.nice must be between -20 and 19"))
	}

	networks := []string{"tcp", "tcp4", "tcp6", "unix"}
	if !slices.Contains(networks, c.Remote.Network) {
		errs = append(errs, fmt.Errorf("remote.network must be one of: %v", networks))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", levels))
	}
	formats := []string{"auto", "text", "json"}
	if !slices.Contains(formats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the data directory and the parent directories
// of the configured log files.
func (c *Config) EnsurePaths() error {
	paths := []string{c.Paths.Data}
	for _, file := range []string{c.Session.MarkerLog, c.Session.EventLog} {
		if file != "" {
			paths = append(paths, filepath.Dir(file))
		}
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
