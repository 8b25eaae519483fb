// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package layer

import "github.com/layerspan/layerspan-go/filter"

// Filter determines whether a span or event is enabled for a single layer.
// It lives in package layer, not filter, because its methods traffic in
// *Metadata and Context — see DESIGN.md's note on the Go-DAG constraint
// that also moved Filtered here.
//
// Obligations (spec.md §4.A): if MaxLevelHint returns a present hint L,
// Enabled must return false for every metadata whose level is more verbose
// than L, and CallsiteEnabled must not return anything but filter.Never for
// such metadata. Violations are debug-assertion-only, never a hard error.
type Filter interface {
	Enabled(meta *Metadata, cx Context) bool

	// CallsiteEnabled defaults to filter.Sometimes for a Filter that embeds
	// BaseFilter; FilterFn's default is Always or Never from its predicate.
	CallsiteEnabled(meta *Metadata) filter.Interest

	// MaxLevelHint defaults to NoHint.
	MaxLevelHint() (Level, bool)
}

// BaseFilter supplies the two optional Filter methods with their spec
// defaults (CallsiteEnabled always Sometimes, no level hint). Embed it in
// a concrete Filter that only wants to implement Enabled.
type BaseFilter struct{}

func (BaseFilter) CallsiteEnabled(*Metadata) filter.Interest { return filter.Sometimes }
func (BaseFilter) MaxLevelHint() (Level, bool)               { return 0, false }

// FilterFn adapts a plain predicate into a Filter, mirroring the original
// crate's FilterFn: an enabled predicate is required, WithCallsiteEnabled and
// WithMaxLevelHint are optional functional options, following the teacher's
// With-style option pattern (appsec/options).
type FilterFn struct {
	enabled         func(*Metadata, Context) bool
	callsiteEnabled func(*Metadata) filter.Interest
	maxLevelHint    LevelHint
}

// FilterFnOption configures a FilterFn at construction.
type FilterFnOption func(*FilterFn)

// WithCallsiteEnabled overrides FilterFn's default callsite_enabled rule.
func WithCallsiteEnabled(f func(*Metadata) filter.Interest) FilterFnOption {
	return func(fn *FilterFn) { fn.callsiteEnabled = f }
}

// WithMaxLevelHint sets FilterFn's level hint.
func WithMaxLevelHint(l Level) FilterFnOption {
	return func(fn *FilterFn) { fn.maxLevelHint = Hint(l) }
}

// NewFilterFn builds a Filter from enabled plus any options.
func NewFilterFn(enabled func(*Metadata, Context) bool, opts ...FilterFnOption) *FilterFn {
	fn := &FilterFn{enabled: enabled}
	for _, opt := range opts {
		opt(fn)
	}
	return fn
}

func (f *FilterFn) Enabled(meta *Metadata, cx Context) bool {
	return f.enabled(meta, cx)
}

// CallsiteEnabled defaults to "always if enabled(meta, empty-context) else
// never", per spec.md §4.A's FilterFn defaults.
func (f *FilterFn) CallsiteEnabled(meta *Metadata) filter.Interest {
	if f.callsiteEnabled != nil {
		return f.callsiteEnabled(meta)
	}
	if f.enabled(meta, Context{}) {
		return filter.Always
	}
	return filter.Never
}

func (f *FilterFn) MaxLevelHint() (Level, bool) {
	return f.maxLevelHint.Level, f.maxLevelHint.Present
}

// LevelFilter is a trivial level-threshold Filter: it admits metadata no
// more verbose than Level.
type LevelFilter struct {
	Level Level
}

func (l LevelFilter) Enabled(meta *Metadata, _ Context) bool {
	return meta.Level <= l.Level
}

func (l LevelFilter) CallsiteEnabled(meta *Metadata) filter.Interest {
	if meta.Level <= l.Level {
		return filter.Always
	}
	return filter.Never
}

func (l LevelFilter) MaxLevelHint() (Level, bool) {
	return l.Level, true
}
