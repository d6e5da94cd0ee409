package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"text/template"

	"github.com/jpalmerr/remoteresource"
)

// NamedResource pairs a built resource with its configured name.
type NamedResource struct {
	Name     string
	Resource *remoteresource.HubResource
}

// BuildResources converts parsed configuration into SDK resources.
//
// Direct resources come first in file order, followed by grid resources in
// deterministic dimension order. Every resource logs through logger.
func BuildResources(cfg *Config, logger *slog.Logger) ([]NamedResource, error) {
	var resources []NamedResource

	for _, rc := range cfg.Resources {
		r, err := buildResource(rc, logger)
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", rc.Name, err)
		}
		resources = append(resources, NamedResource{Name: rc.Name, Resource: r})
	}

	for _, gc := range cfg.Grids {
		gridResources, err := buildGridResources(gc, logger)
		if err != nil {
			return nil, err
		}
		resources = append(resources, gridResources...)
	}

	return resources, nil
}

// BuildHubOptions converts parsed configuration into [remoteresource.HubOption]
// values, including one [remoteresource.WithResource] per resource.
func BuildHubOptions(cfg *Config, logger *slog.Logger) ([]remoteresource.HubOption, error) {
	resources, err := BuildResources(cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := []remoteresource.HubOption{
		remoteresource.WithPort(cfg.Port),
	}
	if cfg.Title != "" {
		opts = append(opts, remoteresource.WithTitle(cfg.Title))
	}
	if logger != nil {
		opts = append(opts, remoteresource.WithHubLogger(logger))
	}
	for _, nr := range resources {
		opts = append(opts, remoteresource.WithResource(nr.Name, nr.Resource))
	}
	return opts, nil
}

// buildResource converts a single ResourceConfig to an SDK resource.
func buildResource(rc ResourceConfig, logger *slog.Logger) (*remoteresource.HubResource, error) {
	var opts []remoteresource.Option

	if rc.PollOnMount != nil {
		opts = append(opts, remoteresource.WithPollOnMount(*rc.PollOnMount))
	}
	if rc.AutoPollInterval != 0 {
		opts = append(opts, remoteresource.WithAutoPollInterval(rc.AutoPollInterval.Duration()))
	}
	if rc.Timeout != 0 {
		opts = append(opts, remoteresource.WithTimeout(rc.Timeout.Duration()))
	}
	if len(rc.Headers) > 0 {
		opts = append(opts, remoteresource.WithHeaders(mapToKeyValuePairs(rc.Headers)...))
	}
	if logger != nil {
		opts = append(opts, remoteresource.WithLogger(logger.With("resource", rc.Name)))
	}

	return remoteresource.NewWithDecoder(rc.URL, buildDecoder(rc.Select), opts...)
}

// buildDecoder picks the decoder for a select path.
func buildDecoder(selectPath string) remoteresource.Decoder[json.RawMessage] {
	if selectPath == "" {
		return remoteresource.JSONOrTextDecoder
	}
	return remoteresource.JSONFieldDecoder(selectPath)
}

// mapToKeyValuePairs converts a map to a slice of key-value pairs sorted by key.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}

// buildGridResources expands a GridConfig into resources via cartesian product.
func buildGridResources(gc GridConfig, logger *slog.Logger) ([]NamedResource, error) {
	// missingkey=error fails fast on template variables without a dimension
	tmpl, err := template.New("url").Option("missingkey=error").Parse(gc.URLTemplate)
	if err != nil {
		return nil, err
	}

	var resources []NamedResource
	for _, combo := range cartesianProduct(gc.Dimensions) {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, combo); err != nil {
			return nil, fmt.Errorf("grid (%s) with dimensions %v: template execution failed: %w", gc.Name, combo, err)
		}

		rc := ResourceConfig{
			Name:             buildGridName(gc.Name, combo),
			URL:              buf.String(),
			PollOnMount:      gc.PollOnMount,
			AutoPollInterval: gc.AutoPollInterval,
			Headers:          gc.Headers,
			Timeout:          gc.Timeout,
			Select:           gc.Select,
		}

		r, err := buildResource(rc, logger)
		if err != nil {
			return nil, fmt.Errorf("grid (%s) resource %q: %w", gc.Name, rc.Name, err)
		}
		resources = append(resources, NamedResource{Name: rc.Name, Resource: r})
	}

	return resources, nil
}

// buildGridName joins the base name with dimension values in key order.
func buildGridName(baseName string, combo map[string]string) string {
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	name := baseName
	for _, k := range keys {
		name += " " + combo[k]
	}
	return name
}

// cartesianProduct generates all combinations of dimension values.
func cartesianProduct(dimensions map[string][]string) []map[string]string {
	if len(dimensions) == 0 {
		return nil
	}

	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []map[string]string{{}}
	for _, key := range keys {
		var next []map[string]string
		for _, combo := range result {
			for _, val := range dimensions[key] {
				newCombo := make(map[string]string, len(combo)+1)
				for k, v := range combo {
					newCombo[k] = v
				}
				newCombo[key] = val
				next = append(next, newCombo)
			}
		}
		result = next
	}

	return result
}
