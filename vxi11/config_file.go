package vxi11

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors the keys accepted in a TOML configuration file.
type fileConfig struct {
	Capacity          int    `toml:"capacity"`
	Device            string `toml:"device"`
	LockDevice        bool   `toml:"lock_device"`
	IOTimeout         string `toml:"io_timeout"`
	ReadTimeout       string `toml:"read_timeout"`
	LockTimeout       string `toml:"lock_timeout"`
	DefaultFrameLimit int    `toml:"default_frame_limit"`
	MaxFrameSize      int    `toml:"max_frame_size"`
	QueryRetryLimit   int    `toml:"query_retry_limit"`
	QueryRetryBackoff string `toml:"query_retry_backoff"`
}

// LoadConfigFile reads a TOML configuration file and returns the resulting Config.
//
// Keys absent from the file keep their defaults. opts are applied after the
// file, so they override it. Durations use time.ParseDuration syntax:
//
//	capacity = 16
//	device = "inst0"
//	io_timeout = "10s"
//	read_timeout = "2s"
//	query_retry_limit = 3
//	query_retry_backoff = "50ms"
func LoadConfigFile(path string, opts ...Option) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vxi11: load config %s: %w", path, err)
	}
	defer f.Close()

	cfg, err := DecodeConfig(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("vxi11: load config %s: %w", path, err)
	}

	return cfg, nil
}

// DecodeConfig decodes a TOML configuration from r. See LoadConfigFile.
func DecodeConfig(r io.Reader, opts ...Option) (*Config, error) {
	var raw fileConfig
	meta, err := toml.NewDecoder(r).Decode(&raw)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}

		return nil, fmt.Errorf("parse config: unknown keys %s", strings.Join(keys, ", "))
	}

	var fileOpts []Option

	if meta.IsDefined("capacity") {
		fileOpts = append(fileOpts, WithCapacity(raw.Capacity))
	}
	if meta.IsDefined("device") {
		fileOpts = append(fileOpts, WithDevice(strings.TrimSpace(raw.Device)))
	}
	if meta.IsDefined("lock_device") {
		fileOpts = append(fileOpts, WithLockDevice(raw.LockDevice))
	}
	if meta.IsDefined("default_frame_limit") {
		fileOpts = append(fileOpts, WithDefaultFrameLimit(raw.DefaultFrameLimit))
	}
	if meta.IsDefined("max_frame_size") {
		fileOpts = append(fileOpts, WithMaxFrameSize(raw.MaxFrameSize))
	}
	if meta.IsDefined("query_retry_limit") {
		fileOpts = append(fileOpts, WithQueryRetryLimit(raw.QueryRetryLimit))
	}

	durations := []struct {
		key   string
		value string
		opt   func(time.Duration) Option
	}{
		{"io_timeout", raw.IOTimeout, WithIOTimeout},
		{"read_timeout", raw.ReadTimeout, WithReadTimeout},
		{"lock_timeout", raw.LockTimeout, WithLockTimeout},
		{"query_retry_backoff", raw.QueryRetryBackoff, WithQueryRetryBackoff},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.value))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		fileOpts = append(fileOpts, d.opt(v))
	}

	return NewConfig(append(fileOpts, opts...)...)
}
