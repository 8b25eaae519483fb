// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package layer

import "github.com/layerspan/layerspan-go/filter"

// fakeRegistry is a minimal terminal Subscriber for exercising Layered and
// Filtered without depending on package registry (which itself imports
// layer, so a real Registry cannot be used from an internal test file
// without an import cycle).
type fakeRegistry struct {
	nextID     SpanID
	nextFilter filter.ID
	spans      map[SpanID]SpanData
	events     []*Event
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{spans: make(map[SpanID]SpanData)}
}

func (r *fakeRegistry) RegisterFilter() (filter.ID, error) {
	id := r.nextFilter
	r.nextFilter++
	if int(id) >= filter.MaxFilters {
		return filter.Unregistered, ErrTooManyFilters
	}
	return id, nil
}

func (r *fakeRegistry) FilterCount() int { return int(r.nextFilter) }

func (r *fakeRegistry) SpanData(id SpanID) (SpanData, bool) {
	d, ok := r.spans[id]
	return d, ok
}

func (r *fakeRegistry) SetSpanFilters(id SpanID, m filter.Map) {
	d := r.spans[id]
	d.Filters = m
	r.spans[id] = d
}

func (r *fakeRegistry) RegisterCallsite(*Metadata) filter.Interest { return filter.Always }
func (r *fakeRegistry) Enabled(*Metadata) bool                     { return true }

func (r *fakeRegistry) NewSpan(attrs *Attributes) SpanID {
	r.nextID++
	id := r.nextID
	r.spans[id] = SpanData{Metadata: attrs.Metadata, Parent: attrs.Parent, HasParent: attrs.HasParent}
	return id
}

func (r *fakeRegistry) Record(SpanID, *Record)               {}
func (r *fakeRegistry) RecordFollowsFrom(SpanID, SpanID)     {}
func (r *fakeRegistry) Event(e *Event)                       { r.events = append(r.events, e) }
func (r *fakeRegistry) Enter(SpanID)                         {}
func (r *fakeRegistry) Exit(SpanID)                          {}
func (r *fakeRegistry) CloneSpan(id SpanID) SpanID           { return id }
func (r *fakeRegistry) TryClose(SpanID) bool                 { return true }
func (r *fakeRegistry) CurrentSpan() (SpanID, bool)          { return NilSpanID, false }

// recordingLayer records every callback it receives, for assertions.
type recordingLayer struct {
	BaseLayer
	events  []*Event
	spans   []SpanID
	entered []SpanID
}

func (l *recordingLayer) OnEvent(e *Event, _ Context) {
	l.events = append(l.events, e)
}

func (l *recordingLayer) OnNewSpan(_ *Attributes, id SpanID, _ Context) {
	l.spans = append(l.spans, id)
}

func (l *recordingLayer) OnEnter(id SpanID, _ Context) {
	l.entered = append(l.entered, id)
}
