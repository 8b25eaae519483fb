// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package layer

import (
	"context"

	"github.com/layerspan/layerspan-go/filter"
)

// Layer is an observer of diagnostic callbacks, composable above a
// Subscriber or another Layer. Method names are prefixed On* wherever a
// Subscriber exposes the producer-facing counterpart under a plain name
// (RegisterCallsite/Enabled/NewSpan), since Go has no per-interface method
// namespacing the way the original crate's Rust traits do.
//
// Every method below has a meaningful default for a layer that does not
// care about it; BaseLayer supplies all of them so a concrete Layer need
// only override what it uses.
type Layer interface {
	// OnRegister is called once, when this layer attaches to sub.
	OnRegister(sub Subscriber)

	// OnRegisterCallsite is the interest pass: ctx carries the filter.State
	// accumulating this registration's combined Interest.
	OnRegisterCallsite(ctx context.Context, meta *Metadata) filter.Interest

	// OnEnabled is the filter pass for a single span or event.
	OnEnabled(meta *Metadata, cx Context) bool

	// OnNewSpan is called once a span has already been allocated the id
	// id by the terminal registry.
	OnNewSpan(attrs *Attributes, id SpanID, cx Context)

	OnRecord(id SpanID, rec *Record, cx Context)
	OnFollowsFrom(span, follows SpanID, cx Context)
	OnEvent(event *Event, cx Context)
	OnEnter(id SpanID, cx Context)
	OnExit(id SpanID, cx Context)
	OnClose(id SpanID, cx Context)
	OnIDChange(old, new SpanID, cx Context)

	// MaxLevelHint is this layer's own opinion, uncombined with anything
	// it wraps; Layered performs the combining.
	MaxLevelHint() LevelHint

	// IsPerLayerFiltered replaces the original's marker-type downcast (see
	// SPEC_FULL.md §4): true for Filtered, and for a Layered only when
	// both of its branches report true.
	IsPerLayerFiltered() bool
}

// Subscriber is the terminal recipient of diagnostic callbacks; it owns
// the span registry. Method names mirror the external, producer-facing
// contract (no Context parameter — a Subscriber manufactures its own
// per-call Context internally, since the producer never has one to hand
// in).
type Subscriber interface {
	RegisterCallsite(meta *Metadata) filter.Interest
	Enabled(meta *Metadata) bool
	NewSpan(attrs *Attributes) SpanID
	Record(id SpanID, rec *Record)
	RecordFollowsFrom(span, follows SpanID)
	Event(event *Event)
	Enter(id SpanID)
	Exit(id SpanID)
	CloneSpan(id SpanID) SpanID
	TryClose(id SpanID) bool
	CurrentSpan() (SpanID, bool)
}

// BaseLayer implements Layer with every method a pass-through no-op.
// Concrete layers embed it and override only what they need, the Go
// analogue of the original trait's default method bodies.
type BaseLayer struct{}

func (BaseLayer) OnRegister(Subscriber) {}

func (BaseLayer) OnRegisterCallsite(context.Context, *Metadata) filter.Interest {
	return filter.Sometimes
}

func (BaseLayer) OnEnabled(*Metadata, Context) bool { return true }

func (BaseLayer) OnNewSpan(*Attributes, SpanID, Context)    {}
func (BaseLayer) OnRecord(SpanID, *Record, Context)         {}
func (BaseLayer) OnFollowsFrom(SpanID, SpanID, Context)     {}
func (BaseLayer) OnEvent(*Event, Context)                   {}
func (BaseLayer) OnEnter(SpanID, Context)                   {}
func (BaseLayer) OnExit(SpanID, Context)                    {}
func (BaseLayer) OnClose(SpanID, Context)                   {}
func (BaseLayer) OnIDChange(SpanID, SpanID, Context)        {}
func (BaseLayer) MaxLevelHint() LevelHint                   { return NoHint }
func (BaseLayer) IsPerLayerFiltered() bool                  { return false }

// OptionalLayer adapts a possibly-nil Layer into one that behaves as a
// universally-permissive pass-through when empty, the Go analogue of the
// original's blanket impl for Option<L>.
type OptionalLayer struct {
	Layer Layer
}

func (o OptionalLayer) OnRegister(sub Subscriber) {
	if o.Layer != nil {
		o.Layer.OnRegister(sub)
	}
}

func (o OptionalLayer) OnRegisterCallsite(ctx context.Context, meta *Metadata) filter.Interest {
	if o.Layer == nil {
		return filter.Always
	}
	return o.Layer.OnRegisterCallsite(ctx, meta)
}

func (o OptionalLayer) OnEnabled(meta *Metadata, cx Context) bool {
	if o.Layer == nil {
		return true
	}
	return o.Layer.OnEnabled(meta, cx)
}

func (o OptionalLayer) OnNewSpan(attrs *Attributes, id SpanID, cx Context) {
	if o.Layer != nil {
		o.Layer.OnNewSpan(attrs, id, cx)
	}
}

func (o OptionalLayer) OnRecord(id SpanID, rec *Record, cx Context) {
	if o.Layer != nil {
		o.Layer.OnRecord(id, rec, cx)
	}
}

func (o OptionalLayer) OnFollowsFrom(span, follows SpanID, cx Context) {
	if o.Layer != nil {
		o.Layer.OnFollowsFrom(span, follows, cx)
	}
}

func (o OptionalLayer) OnEvent(event *Event, cx Context) {
	if o.Layer != nil {
		o.Layer.OnEvent(event, cx)
	}
}

func (o OptionalLayer) OnEnter(id SpanID, cx Context) {
	if o.Layer != nil {
		o.Layer.OnEnter(id, cx)
	}
}

func (o OptionalLayer) OnExit(id SpanID, cx Context) {
	if o.Layer != nil {
		o.Layer.OnExit(id, cx)
	}
}

func (o OptionalLayer) OnClose(id SpanID, cx Context) {
	if o.Layer != nil {
		o.Layer.OnClose(id, cx)
	}
}

func (o OptionalLayer) OnIDChange(old, new SpanID, cx Context) {
	if o.Layer != nil {
		o.Layer.OnIDChange(old, new, cx)
	}
}

func (o OptionalLayer) MaxLevelHint() LevelHint {
	if o.Layer == nil {
		return NoHint
	}
	return o.Layer.MaxLevelHint()
}

func (o OptionalLayer) IsPerLayerFiltered() bool {
	return o.Layer != nil && o.Layer.IsPerLayerFiltered()
}
