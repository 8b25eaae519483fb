// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

// Package envfilter parses a directive string into a layer.Filter, the Go
// analogue of tracing_subscriber::EnvFilter's grammar. Styled after
// appsec/config.Config: a plain struct with exported-free internal fields,
// built by a single fallible constructor rather than reflection-based
// binding.
package envfilter

import (
	"fmt"
	"strings"

	"github.com/layerspan/layerspan-go/filter"
	"github.com/layerspan/layerspan-go/layer"
)

// Filter admits a span or event when its target has a directive whose level
// is at least as verbose as the metadata's level, or, absent a per-target
// directive, when the default level (if any) does. A Filter with no
// directives at all admits everything.
type Filter struct {
	defaultLevel layer.Level
	hasDefault   bool
	perTarget    map[string]layer.Level
}

// Parse parses a comma-separated directive string such as
// "info,my_service=debug,noisy_dep=error" into a layer.Filter. Each
// directive is either a bare level, which sets the default applied to
// targets with no more specific directive, or "target=level", which sets
// the threshold for that exact target. Directives are separated by commas;
// surrounding whitespace on each directive and around "=" is ignored.
// Level names are matched case-insensitively against error, warn, info,
// debug, trace.
func Parse(spec string) (layer.Filter, error) {
	f := &Filter{perTarget: make(map[string]layer.Level)}

	spec = strings.TrimSpace(spec)
	if spec == "" {
		return f, nil
	}

	for _, raw := range strings.Split(spec, ",") {
		directive := strings.TrimSpace(raw)
		if directive == "" {
			continue
		}
		if err := f.applyDirective(directive); err != nil {
			return nil, fmt.Errorf("envfilter: parsing directive %q: %w", directive, err)
		}
	}
	return f, nil
}

func (f *Filter) applyDirective(directive string) error {
	target, levelName, hasTarget := strings.Cut(directive, "=")
	if !hasTarget {
		level, err := parseLevel(target)
		if err != nil {
			return err
		}
		f.defaultLevel = level
		f.hasDefault = true
		return nil
	}

	target = strings.TrimSpace(target)
	if target == "" {
		return fmt.Errorf("empty target before '='")
	}
	level, err := parseLevel(strings.TrimSpace(levelName))
	if err != nil {
		return err
	}
	f.perTarget[target] = level
	return nil
}

func parseLevel(name string) (layer.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		return layer.LevelError, nil
	case "warn", "warning":
		return layer.LevelWarn, nil
	case "info":
		return layer.LevelInfo, nil
	case "debug":
		return layer.LevelDebug, nil
	case "trace":
		return layer.LevelTrace, nil
	default:
		return 0, fmt.Errorf("unrecognized level %q", name)
	}
}

// Enabled implements layer.Filter.
func (f *Filter) Enabled(meta *layer.Metadata, _ layer.Context) bool {
	if level, ok := f.perTarget[meta.Target]; ok {
		return meta.Level <= level
	}
	if f.hasDefault {
		return meta.Level <= f.defaultLevel
	}
	return true
}

// CallsiteEnabled mirrors Enabled: every directive this Filter applies is
// decided purely from Metadata, with no Context dependency, so the verdict
// can be cached outright instead of deferring to filter.Sometimes.
func (f *Filter) CallsiteEnabled(meta *layer.Metadata) filter.Interest {
	if f.Enabled(meta, layer.Context{}) {
		return filter.Always
	}
	return filter.Never
}

// MaxLevelHint returns the most verbose threshold across every directive,
// the least restrictive bound that still upper-bounds every branch (spec.md
// §4.A's obligation). A Filter with no directives has no ceiling at all.
func (f *Filter) MaxLevelHint() (layer.Level, bool) {
	if !f.hasDefault && len(f.perTarget) == 0 {
		return 0, false
	}
	max := f.defaultLevel
	have := f.hasDefault
	for _, level := range f.perTarget {
		if !have || level > max {
			max = level
			have = true
		}
	}
	return max, true
}
