// Package config loads recognizer settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/FlavioCFOliveira/LightCNN/internal/model"
)

// Config captures how a recognizer is built and loaded.
type Config struct {
	CheckpointPath string  `yaml:"checkpoint_path"`
	Feature        bool    `yaml:"feature"`
	NumClasses     int     `yaml:"num_classes"`
	Blocks         []int   `yaml:"blocks"`
	Dropout        float64 `yaml:"dropout"`
	Seed           uint64  `yaml:"seed"`
	Workers        []int   `yaml:"workers"`
	LogLevel       string  `yaml:"log_level"`
}

// Overrides captures caller supplied values.
type Overrides struct {
	CheckpointPath string
	Workers        []int
	NumClasses     int
	Seed           uint64
	LogLevel       string
}

// Default returns the settings of the pretrained LightCNN-29 v2 feature
// extractor. CheckpointPath is left empty.
func Default() *Config {
	m := model.DefaultConfig()
	return &Config{
		Feature:    m.Feature,
		NumClasses: m.NumClasses,
		Blocks:     m.Blocks[:],
		Dropout:    m.DropoutP,
		LogLevel:   "info",
	}
}

// Load reads and validates a Config from YAML. Keys absent from the file
// keep their Default values.
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, Overrides{})
}

// LoadWithOverrides reads a Config from YAML, applies o and validates the
// result, so an override can supply a key the file leaves out.
func LoadWithOverrides(path string, o Overrides) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyOverrides(o)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML over Default. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.CheckpointPath != "" {
		c.CheckpointPath = o.CheckpointPath
	}
	if o.Workers != nil {
		c.Workers = o.Workers
	}
	if o.NumClasses > 0 {
		c.NumClasses = o.NumClasses
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
}

// Validate verifies the config describes a loadable recognizer.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.CheckpointPath == "" {
		return errors.New("checkpoint_path must be set")
	}
	if len(c.Blocks) != 4 {
		return fmt.Errorf("blocks must list 4 stage depths (got %d)", len(c.Blocks))
	}
	for i, w := range c.Workers {
		if w < 0 {
			return fmt.Errorf("workers[%d] must be >= 0 (got %d)", i, w)
		}
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return c.Model().Validate()
}

// Model returns the network configuration. Networks built from a file are
// always in evaluation mode.
func (c *Config) Model() model.Config {
	m := model.Config{
		NumClasses: c.NumClasses,
		Feature:    c.Feature,
		DropoutP:   c.Dropout,
		Seed:       c.Seed,
	}
	copy(m.Blocks[:], c.Blocks)
	return m
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
