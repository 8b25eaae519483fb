// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package layer

import (
	"context"

	"github.com/layerspan/layerspan-go/filter"
)

// SpanData is what the registry stores per live span: its creating
// metadata, parent link, and the filter.Map recorded at NewSpan time (the
// per-span carry-over that lets a Filtered layer answer "did I admit this
// span?" long after the filter pass that decided it has ended).
type SpanData struct {
	Metadata  *Metadata
	Parent    SpanID
	HasParent bool
	Filters   filter.Map
}

// LookupSpan is the subset of the registry a Context needs: resolving a
// SpanID to its stored data. Split from FilterRegistrar per DESIGN.md's
// resolution of the source's "register_filter vs. span lookup" conflation
// (spec.md §9).
type LookupSpan interface {
	SpanData(id SpanID) (SpanData, bool)
}

// FilterRegistrar allocates dense FilterIds for Filtered wrappers attaching
// to a subscriber. Kept separate from LookupSpan: a registry implements
// both, but nothing requires a subscriber to support one without the other.
type FilterRegistrar interface {
	RegisterFilter() (filter.ID, error)
}

// FilterMapSetter is implemented by a registry that can persist the
// filter.Map accumulated during a span's admitting filter pass, so later
// callbacks can recover it via LookupSpan.SpanData. Layered.NewSpan calls
// this right after allocating a span id, if the terminal Subscriber
// supports it.
type FilterMapSetter interface {
	SetSpanFilters(id SpanID, m filter.Map)
}

// FilterCounter is implemented by a registry that knows how many
// FilterIds it has handed out so far via FilterRegistrar.RegisterFilter.
// Layered.Event and Layered.NewSpan use it to scope their event_enabled
// check to the filters that actually exist, rather than the full 64-slot
// word — see filter.State.EventEnabledAmong.
type FilterCounter interface {
	FilterCount() int
}

// Context is the ephemeral view handed to a Layer during a callback. It
// carries the context.Context that threads filter.State through one
// top-level callback chain (replacing the original's thread-local; see
// SPEC_FULL.md §1 and DESIGN.md Open Question 1), a LookupSpan for
// consulting per-span stored filter maps, and the FilterId of whichever
// Filtered is currently asking (Unregistered if none).
type Context struct {
	ctx           context.Context
	lookup        LookupSpan
	currentFilter filter.ID
}

// NewContext builds a Context for one callback chain rooted at ctx, which
// must already carry a filter.State (see filter.NewContext).
func NewContext(ctx context.Context, lookup LookupSpan) Context {
	return Context{ctx: ctx, lookup: lookup, currentFilter: filter.Unregistered}
}

// Context returns the underlying context.Context, e.g. to recover the
// carried filter.State via filter.FromContext.
func (c Context) Context() context.Context {
	return c.ctx
}

// WithFilter returns a copy of c scoped to the given FilterId, the Go
// analogue of the original's `ctx.with_filter(my_id)`.
func (c Context) WithFilter(id filter.ID) Context {
	c.currentFilter = id
	return c
}

// CurrentFilter returns the FilterId this Context is currently scoped to,
// or filter.Unregistered if none.
func (c Context) CurrentFilter() filter.ID {
	return c.currentFilter
}

// State returns the filter.State carried by this Context's underlying
// context.Context, or nil if none was attached.
func (c Context) State() *filter.State {
	return filter.FromContext(c.ctx)
}

// SpanData resolves id via the Context's LookupSpan, returning ok=false if
// there is no registry attached or the span is unknown.
func (c Context) SpanData(id SpanID) (SpanData, bool) {
	if c.lookup == nil {
		return SpanData{}, false
	}
	return c.lookup.SpanData(id)
}

// SpanFilterEnabled reports whether the given FilterId admitted span id at
// NewSpan time, per its stored filter.Map. An unknown span reads as
// enabled: a Filtered layer with no record of a span has no grounds to
// suppress it.
func (c Context) SpanFilterEnabled(id SpanID, fid filter.ID) bool {
	data, ok := c.SpanData(id)
	if !ok {
		return true
	}
	return data.Filters.IsEnabled(fid)
}
