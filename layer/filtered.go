// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package layer

import (
	"context"
	"fmt"

	"github.com/layerspan/layerspan-go/filter"
)

// Filtered pairs a single inner Layer with a Filter, so that the filter's
// verdict governs only what the inner layer sees — siblings elsewhere in a
// Layered tree are unaffected. Grounded on the original's
// filter/layer_filters.rs Filtered<L, F, S>.
type Filtered struct {
	inner Layer
	f     Filter
	id    filter.ID
}

// NewFiltered wraps inner with f. The FilterId is unregistered until this
// Filtered is attached to a subscriber via OnRegister.
func NewFiltered(inner Layer, f Filter) *Filtered {
	return &Filtered{inner: inner, f: f, id: filter.Unregistered}
}

// ErrTooManyFilters is returned by a FilterRegistrar when a 65th filter id
// would be required, matching spec.md §7's exact panic wording.
var ErrTooManyFilters = fmt.Errorf("filter IDs may not be greater than %d", filter.MaxFilters)

// OnRegister allocates this Filtered's FilterId from sub (if sub is a
// FilterRegistrar) before forwarding registration to the inner layer.
// Exceeding the 64-filter cap is a fatal configuration error, panicking at
// attach time rather than returning to the caller: spec.md §7 treats it as
// unrecoverable, same as the original.
func (f *Filtered) OnRegister(sub Subscriber) {
	if registrar, ok := sub.(FilterRegistrar); ok {
		id, err := registrar.RegisterFilter()
		if err != nil {
			panic(err)
		}
		f.id = id
	}
	f.inner.OnRegister(sub)
}

// OnRegisterCallsite is the interest pass (spec.md §4.D pattern 1): it
// folds the filter's opinion into the in-flight combined Interest and
// always claims Always for itself, since a sibling filter elsewhere in the
// tree may disagree and a premature Never here would steal that vote.
func (f *Filtered) OnRegisterCallsite(ctx context.Context, meta *Metadata) filter.Interest {
	interest := f.f.CallsiteEnabled(meta)
	filter.FromContext(ctx).AddInterest(interest)
	return filter.Always
}

// OnEnabled is the filter pass (pattern 2): it writes its verdict into the
// bit for its own id and always returns true, deferring the real decision
// to filter.State.EventEnabledAmong at the dispatch level.
func (f *Filtered) OnEnabled(meta *Metadata, cx Context) bool {
	verdict := f.f.Enabled(meta, cx.WithFilter(f.id))
	cx.State().Set(f.id, !verdict)
	return true
}

// OnNewSpan is a did-enable callback (pattern 3): it fires exactly once,
// gated by this Filtered's bit in the in-flight filter.Map, and clears that
// bit back to its default when the verdict was negative.
func (f *Filtered) OnNewSpan(attrs *Attributes, id SpanID, cx Context) {
	cx.State().DidEnable(f.id, func() {
		f.inner.OnNewSpan(attrs, id, cx)
	})
}

// OnEvent is the other did-enable callback.
func (f *Filtered) OnEvent(event *Event, cx Context) {
	cx.State().DidEnable(f.id, func() {
		f.inner.OnEvent(event, cx)
	})
}

// spanEnabled consults the stored per-span filter.Map (pattern 4), not the
// in-flight one: by the time these callbacks fire, the filter pass that
// admitted the span is long over.
func (f *Filtered) spanEnabled(id SpanID, cx Context) bool {
	return cx.SpanFilterEnabled(id, f.id)
}

func (f *Filtered) OnRecord(id SpanID, rec *Record, cx Context) {
	if f.spanEnabled(id, cx) {
		f.inner.OnRecord(id, rec, cx)
	}
}

func (f *Filtered) OnEnter(id SpanID, cx Context) {
	if f.spanEnabled(id, cx) {
		f.inner.OnEnter(id, cx)
	}
}

func (f *Filtered) OnExit(id SpanID, cx Context) {
	if f.spanEnabled(id, cx) {
		f.inner.OnExit(id, cx)
	}
}

func (f *Filtered) OnClose(id SpanID, cx Context) {
	if f.spanEnabled(id, cx) {
		f.inner.OnClose(id, cx)
	}
}

func (f *Filtered) OnIDChange(old, new SpanID, cx Context) {
	if f.spanEnabled(old, cx) {
		f.inner.OnIDChange(old, new, cx)
	}
}

// OnFollowsFrom requires both endpoints to be visible to this filter: the
// relation is meaningless if either span is invisible at this layer.
func (f *Filtered) OnFollowsFrom(span, follows SpanID, cx Context) {
	if f.spanEnabled(span, cx) && f.spanEnabled(follows, cx) {
		f.inner.OnFollowsFrom(span, follows, cx)
	}
}

func (f *Filtered) MaxLevelHint() LevelHint {
	l, ok := f.f.MaxLevelHint()
	return LevelHint{Level: l, Present: ok}
}

// IsPerLayerFiltered is always true: this is the PLF marker every Filtered
// presents, replacing the original's PlfMarker type-id downcast.
func (f *Filtered) IsPerLayerFiltered() bool { return true }
