/*
Package config holds subenum's run configuration.

Values are layered: compiled defaults, then an optional YAML file, then any
command-line flag the user set explicitly. The result is validated once and
turned into the source table and fetcher settings the run needs.
*/
package config

/*
subenum — passive subdomain enumeration in Go
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/x-stp/subenum/internal/client"
	"github.com/x-stp/subenum/internal/core"
	"github.com/x-stp/subenum/internal/sources"
)

// Config is the complete run configuration.
type Config struct {
	// Timeout is the per-source request timeout.
	Timeout time.Duration `yaml:"timeout"`
	// OutputDir receives the result files; created if missing.
	OutputDir string `yaml:"output_dir"`
	// UserAgent is sent to every source.
	UserAgent string `yaml:"user_agent"`
	// RateLimit caps outbound requests per second; 0 disables it.
	RateLimit float64 `yaml:"rate_limit"`
	// Only restricts the run to these sources when non-empty.
	Only []string `yaml:"only,omitempty"`
	// Sources holds per-source overrides keyed by source name.
	Sources map[string]SourceConfig `yaml:"sources,omitempty"`

	MetricsAddr     string `yaml:"metrics_addr,omitempty"`
	MetricsTextfile string `yaml:"metrics_textfile,omitempty"`
}

// SourceConfig overrides one entry of the source table.
type SourceConfig struct {
	// Disabled removes the source from the run.
	Disabled bool `yaml:"disabled,omitempty"`
	// Endpoint replaces the URL template; it must contain {domain}.
	Endpoint string `yaml:"endpoint,omitempty"`
	// Timeout overrides the run timeout for this source.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Timeout:   core.DefaultTimeout,
		OutputDir: ".",
		UserAgent: client.DefaultUserAgent,
	}
}

// Load returns the defaults overlaid with the YAML file at path.
// An empty path returns the defaults. A named file that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
	}
	defer f.Close()
	if err := cfg.decode(f); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	return cfg, nil
}

// decode overlays YAML from r onto cfg. Unknown keys are rejected so a typo
// does not silently fall back to a default.
func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must not be negative, got %g", c.RateLimit))
	}
	known := sources.Names()
	for _, name := range c.Only {
		if !slices.Contains(known, name) {
			errs = append(errs, fmt.Errorf("unknown source %q (known: %s)", name, strings.Join(known, ", ")))
		}
	}
	for _, name := range sortedKeys(c.Sources) {
		sc := c.Sources[name]
		if !slices.Contains(known, name) {
			errs = append(errs, fmt.Errorf("sources: unknown source %q", name))
			continue
		}
		if sc.Timeout < 0 {
			errs = append(errs, fmt.Errorf("sources.%s.timeout must not be negative", name))
		}
		if sc.Endpoint != "" && !strings.Contains(sc.Endpoint, sources.DomainPlaceholder) {
			errs = append(errs, fmt.Errorf("sources.%s.endpoint must contain %s", name, sources.DomainPlaceholder))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// SourceTable returns the sources enabled for this run, in the default
// order, with per-source overrides applied.
func (c *Config) SourceTable() ([]sources.Source, error) {
	var table []sources.Source
	for _, src := range sources.All() {
		if len(c.Only) > 0 && !slices.Contains(c.Only, src.Name) {
			continue
		}
		if sc, ok := c.Sources[src.Name]; ok {
			if sc.Disabled {
				continue
			}
			if sc.Endpoint != "" {
				src.Endpoint = sc.Endpoint
			}
			if sc.Timeout > 0 {
				src.Timeout = sc.Timeout
			}
		}
		table = append(table, src)
	}
	if len(table) == 0 {
		return nil, errors.New("no sources enabled")
	}
	return table, nil
}

// FetcherConfig returns the Fetcher settings derived from c.
func (c *Config) FetcherConfig() client.FetcherConfig {
	return client.FetcherConfig{
		UserAgent: c.UserAgent,
		RateLimit: c.RateLimit,
	}
}

// MetricsEnabled reports whether any metrics output was requested.
func (c *Config) MetricsEnabled() bool {
	return c.MetricsAddr != "" || c.MetricsTextfile != ""
}

// YAML renders c as YAML, e.g. for the `config` command.
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sortedKeys(m map[string]SourceConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
