// Package config provides YAML configuration for running a resource hub as
// a standalone binary, as an alternative to the programmatic SDK.
//
// Example configuration:
//
//	title: Service Catalogue
//	port: 8080
//
//	resources:
//	  - name: users
//	    url: https://api.example.com/users
//	    auto_poll_interval: 30s
//	    headers:
//	      Authorization: Bearer ${API_TOKEN}
//	    select: data.items
//
//	grids:
//	  - name: health
//	    url_template: "https://{{.env}}.example.com/health"
//	    dimensions:
//	      env: [prod, staging]
//	    auto_poll_interval: 10s
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort = 8080

	// minAutoPollInterval keeps config-driven polling from hammering a server.
	minAutoPollInterval = 1 * time.Second
	maxAutoPollInterval = 24 * time.Hour

	minTimeout = 100 * time.Millisecond
)

// Config is the root configuration structure.
//
// It maps directly to the YAML file. Use [Load] or [Parse] to create one.
type Config struct {
	// Title is the dashboard title.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Resources defines individual polled resources.
	Resources []ResourceConfig `yaml:"resources"`

	// Grids defines resources expanded from a URL template via cartesian product.
	Grids []GridConfig `yaml:"grids"`
}

// ResourceConfig defines a single polled resource.
type ResourceConfig struct {
	// Name identifies the resource in the API and dashboard.
	Name string `yaml:"name"`

	// URL is the polled URL. Supports ${VAR} and ${VAR:-default}.
	URL string `yaml:"url"`

	// PollOnMount controls the immediate poll on activation. Defaults to true.
	PollOnMount *bool `yaml:"poll_on_mount"`

	// AutoPollInterval arms a recurring poll. Zero disables it.
	// Accepts duration strings ("30s") or integer milliseconds.
	AutoPollInterval Duration `yaml:"auto_poll_interval"`

	// Headers are sent with every poll. Values support env substitution.
	Headers map[string]string `yaml:"headers"`

	// Timeout bounds each request. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Select picks a field of a JSON body using dot notation.
	// Empty keeps the whole body.
	Select string `yaml:"select"`
}

// GridConfig defines resources that expand via cartesian product.
//
// With dimensions {env: [prod, staging], svc: [api, web]} the grid expands
// to four resources named "<name> prod api", "<name> prod web", and so on:
// values are joined in sorted key order.
type GridConfig struct {
	// Name is the base name for generated resources.
	Name string `yaml:"name"`

	// URLTemplate is a Go template; dimension keys are template variables.
	URLTemplate string `yaml:"url_template"`

	// Dimensions maps dimension names to their values.
	Dimensions map[string][]string `yaml:"dimensions"`

	PollOnMount      *bool             `yaml:"poll_on_mount"`
	AutoPollInterval Duration          `yaml:"auto_poll_interval"`
	Headers          map[string]string `yaml:"headers"`
	Timeout          Duration          `yaml:"timeout"`
	Select           string            `yaml:"select"`
}

// Duration wraps time.Duration for YAML unmarshalling.
//
// It accepts Go duration strings ("1m30s") or a bare integer, read as
// milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	if node.Tag == "!!int" {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part, if present
// Group 3: the default value
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URLs, URL templates and header
// values. Port defaults to 8080.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ResourceCount returns the number of resources the config expands to.
func (c *Config) ResourceCount() (direct, fromGrids int) {
	for _, g := range c.Grids {
		size := 1
		for _, vals := range g.Dimensions {
			size *= len(vals)
		}
		fromGrids += size
	}
	return len(c.Resources), fromGrids
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	seen := make(map[string]struct{}, len(c.Resources))
	for i := range c.Resources {
		rc := &c.Resources[i]

		if rc.Name == "" {
			return fmt.Errorf("resources[%d]: name is required", i)
		}
		ctx := fmt.Sprintf("resources[%d] (%s)", i, rc.Name)

		if _, dup := seen[rc.Name]; dup {
			return fmt.Errorf("%s: duplicate name", ctx)
		}
		seen[rc.Name] = struct{}{}

		if rc.URL == "" {
			return fmt.Errorf("%s: url is required", ctx)
		}
		expanded, err := expandEnvVars(rc.URL)
		if err != nil {
			return fmt.Errorf("%s: url: %w", ctx, err)
		}
		rc.URL = expanded

		if err := validateURL(rc.URL, ctx); err != nil {
			return err
		}

		if err := expandHeaders(rc.Headers, ctx); err != nil {
			return err
		}
		if err := validateTiming(rc.AutoPollInterval, rc.Timeout, ctx); err != nil {
			return err
		}
	}

	for i := range c.Grids {
		g := &c.Grids[i]

		if g.Name == "" {
			return fmt.Errorf("grids[%d]: name is required", i)
		}
		ctx := fmt.Sprintf("grids[%d] (%s)", i, g.Name)

		if g.URLTemplate == "" {
			return fmt.Errorf("%s: url_template is required", ctx)
		}
		expanded, err := expandEnvVars(g.URLTemplate)
		if err != nil {
			return fmt.Errorf("%s: url_template: %w", ctx, err)
		}
		g.URLTemplate = expanded

		// fail fast before the builder executes the template
		if _, err := template.New("").Parse(g.URLTemplate); err != nil {
			return fmt.Errorf("%s: invalid url_template: %w", ctx, err)
		}

		if len(g.Dimensions) == 0 {
			return fmt.Errorf("%s: at least one dimension is required", ctx)
		}
		for dimName, dimValues := range g.Dimensions {
			if len(dimValues) == 0 {
				return fmt.Errorf("%s: dimension %q has no values", ctx, dimName)
			}
			values := make(map[string]struct{}, len(dimValues))
			for _, v := range dimValues {
				if _, exists := values[v]; exists {
					return fmt.Errorf("%s: dimension %q has duplicate value %q", ctx, dimName, v)
				}
				values[v] = struct{}{}
			}
		}

		if err := expandHeaders(g.Headers, ctx); err != nil {
			return err
		}
		if err := validateTiming(g.AutoPollInterval, g.Timeout, ctx); err != nil {
			return err
		}
	}

	if len(c.Resources) == 0 && len(c.Grids) == 0 {
		return errors.New("at least one resource or grid must be defined")
	}

	return nil
}

func validateURL(raw, ctx string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid url: %w", ctx, err)
	}
	if parsed.Scheme == "" {
		return fmt.Errorf("%s: url must have a scheme (http:// or https://)", ctx)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s: url scheme must be http or https, got %q", ctx, parsed.Scheme)
	}
	return nil
}

func expandHeaders(headers map[string]string, ctx string) error {
	for k, v := range headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("%s: headers[%s]: %w", ctx, k, err)
		}
		headers[k] = expanded
	}
	return nil
}

func validateTiming(interval, timeout Duration, ctx string) error {
	if interval != 0 {
		if interval.Duration() < minAutoPollInterval {
			return fmt.Errorf("%s: auto_poll_interval must be at least %s, got %s",
				ctx, minAutoPollInterval, interval.Duration())
		}
		if interval.Duration() > maxAutoPollInterval {
			return fmt.Errorf("%s: auto_poll_interval must not exceed %s, got %s",
				ctx, maxAutoPollInterval, interval.Duration())
		}
	}

	if timeout != 0 && timeout.Duration() < minTimeout {
		return fmt.Errorf("%s: timeout must be at least %s if specified, got %s",
			ctx, minTimeout, timeout.Duration())
	}
	return nil
}
