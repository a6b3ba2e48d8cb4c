package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// EnvMode names the environment variable holding the default mode.
	EnvMode = "TEST_MODE"

	// EnvConfig names the environment variable holding the config file path.
	EnvConfig = "EASYFIX_CONFIG"

	// DefaultDirectory is the fixture directory used when nothing sets one.
	DefaultDirectory = "test/data"
)

// File is the optional YAML configuration file.
//
// Example:
//
//	directory: test/data
//	mode: replay
//	log_path: tmp/easyfix.log
//	disable_error_reinstantiation: false
type File struct {
	// Directory is the base fixture directory.
	Directory string `yaml:"directory,omitempty"`

	// Mode is the default mode; TEST_MODE overrides it.
	Mode Mode `yaml:"mode,omitempty"`

	// LogPath enables the trace log.
	LogPath string `yaml:"log_path,omitempty"`

	// DisableErrorReinstantiation replays errors as plain errors.
	DisableErrorReinstantiation bool `yaml:"disable_error_reinstantiation,omitempty"`
}

// Load reads and parses a config file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or names an unknown mode.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "dir:" vs "directory:")
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&f); err != nil {
		if len(bytes.TrimSpace(data)) == 0 {
			return &f, nil
		}
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if f.Mode != "" {
		if _, err := ParseMode(string(f.Mode)); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
	}

	return &f, nil
}

// Environment returns the process defaults: the config file named by
// EnvConfig, with EnvMode overriding its mode. getenv is usually os.Getenv.
// The result has Directory and Mode filled in.
func Environment(getenv func(string) string) (*File, error) {
	f := &File{}
	if path := getenv(EnvConfig); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		f = loaded
	}

	if env := getenv(EnvMode); env != "" {
		m, err := ParseMode(env)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvMode, err)
		}
		f.Mode = m
	}

	if f.Directory == "" {
		f.Directory = DefaultDirectory
	}
	if f.Mode == "" {
		f.Mode = DefaultMode
	}
	return f, nil
}

// FromEnv is Environment(os.Getenv).
func FromEnv() (*File, error) {
	return Environment(os.Getenv)
}
