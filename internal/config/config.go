// Package config loads the optional minibk configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/zhiduo233/minibackup/internal/cipher"
	"github.com/zhiduo233/minibackup/internal/compress"
	"github.com/zhiduo233/minibackup/internal/filter"
)

// Config represents the optional minibk configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	Filter   FilterConfig   `toml:"filter"`
}

// DefaultsConfig holds persistent flag defaults. Nil means unset.
type DefaultsConfig struct {
	Cipher      *string `toml:"cipher"`
	Compression *string `toml:"compression"`
	Preserve    *bool   `toml:"preserve"`
	BWLimit     *string `toml:"bwlimit"`
	Verify      *bool   `toml:"verify"`
}

// FilterConfig holds default filter clauses for pack. Nil means unset.
type FilterConfig struct {
	Name      *string `toml:"name"`
	Path      *string `toml:"path"`
	Type      *string `toml:"type"`
	MinSize   *string `toml:"min_size"`
	MaxSize   *string `toml:"max_size"`
	NewerThan *string `toml:"newer_than"`
	UID       *uint32 `toml:"uid"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "minibk", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile decodes and validates the config file at path. A missing file
// yields a zero Config.
func LoadFile(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that every set value parses.
func (c Config) Validate() error {
	d := c.Defaults
	if d.Cipher != nil {
		if _, err := cipher.ParseMode(*d.Cipher); err != nil {
			return fmt.Errorf("defaults.cipher: %w", err)
		}
	}
	if d.Compression != nil {
		if _, err := compress.ParseMode(*d.Compression); err != nil {
			return fmt.Errorf("defaults.compression: %w", err)
		}
	}
	if d.BWLimit != nil {
		if _, err := filter.ParseSize(*d.BWLimit); err != nil {
			return fmt.Errorf("defaults.bwlimit: %w", err)
		}
	}
	var opts filter.Options
	return c.Filter.Apply(&opts, func(string) bool { return false }, time.Now())
}

// Apply copies every set filter value into opts, skipping those whose
// flag name changed reports as set on the command line.
func (f FilterConfig) Apply(opts *filter.Options, changed func(flag string) bool, now time.Time) error {
	if f.Name != nil && !changed("name") {
		opts.NameContains = *f.Name
	}
	if f.Path != nil && !changed("path") {
		opts.PathContains = *f.Path
	}
	if f.Type != nil && !changed("type") {
		t, err := filter.ParseType(*f.Type)
		if err != nil {
			return fmt.Errorf("filter.type: %w", err)
		}
		opts.Type = t
	}
	if f.MinSize != nil && !changed("min-size") {
		n, err := filter.ParseSize(*f.MinSize)
		if err != nil {
			return fmt.Errorf("filter.min_size: %w", err)
		}
		opts.MinSize = n
	}
	if f.MaxSize != nil && !changed("max-size") {
		n, err := filter.ParseSize(*f.MaxSize)
		if err != nil {
			return fmt.Errorf("filter.max_size: %w", err)
		}
		opts.MaxSize = n
	}
	if f.NewerThan != nil && !changed("newer-than") {
		age, err := filter.ParseAge(*f.NewerThan)
		if err != nil {
			return fmt.Errorf("filter.newer_than: %w", err)
		}
		opts.NotOlderThan = filter.NotOlderThan(now, age)
	}
	if f.UID != nil && !changed("uid") {
		uid := *f.UID
		opts.OwnerUID = &uid
	}
	return nil
}
