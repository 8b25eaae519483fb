// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

// Package registry provides the default terminal span registry: the
// bottom of a Layered tree, storing span metadata, parent links, and the
// per-span filter.Map that Filtered layers consult long after the filter
// pass that produced it. Grounded on appsec/internal/dyngo's
// RWMutex-guarded listener-map shape (operation.go, events.go) and on the
// tracer's span-id allocation/parent-linkage tests.
package registry

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/layerspan/layerspan-go/filter"
	"github.com/layerspan/layerspan-go/internal/log"
	"github.com/layerspan/layerspan-go/layer"
)

type entry struct {
	data layer.SpanData
	refs int
}

// Registry is the default in-process implementation of layer.Subscriber,
// layer.LookupSpan, layer.FilterRegistrar, and layer.FilterMapSetter. It is
// always the innermost node of a Layered tree.
type Registry struct {
	mu    sync.RWMutex
	spans map[layer.SpanID]*entry

	nextID     atomic.Uint64
	nextFilter atomic.Int32
	closed     atomic.Bool

	// currentMu/current model a single-goroutine span stack. The core
	// spec treats cross-thread current-span reconciliation as out of
	// scope (spec.md §1 Non-goals, "cross-thread reconciliation of filter
	// verdicts"); this registry extends that same simplification to the
	// current-span stack rather than inventing goroutine-local storage.
	currentMu sync.Mutex
	current   []layer.SpanID

	extMu sync.RWMutex
	ext   map[layer.SpanID]map[interface{}]interface{}
}

// Option configures a Registry at construction, following the teacher's
// With-style functional-options pattern (appsec/options).
type Option func(*Registry)

// New builds an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		spans: make(map[layer.SpanID]*entry),
		ext:   make(map[layer.SpanID]map[interface{}]interface{}),
	}
	r.nextID.Store(0)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterFilter allocates the next dense FilterId, failing once 64 have
// already been handed out.
func (r *Registry) RegisterFilter() (filter.ID, error) {
	next := r.nextFilter.Add(1) - 1
	if next >= filter.MaxFilters {
		return filter.Unregistered, layer.ErrTooManyFilters
	}
	return filter.ID(next), nil
}

// FilterCount implements layer.FilterCounter: how many FilterIds have been
// handed out so far, for scoping a Layered's event_enabled check.
func (r *Registry) FilterCount() int {
	return int(r.nextFilter.Load())
}

// SpanData implements layer.LookupSpan.
func (r *Registry) SpanData(id layer.SpanID) (layer.SpanData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.spans[id]
	if !ok {
		return layer.SpanData{}, false
	}
	return e.data, true
}

// SetSpanFilters implements layer.FilterMapSetter.
func (r *Registry) SetSpanFilters(id layer.SpanID, m filter.Map) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.spans[id]; ok {
		e.data.Filters = m
	}
}

// RegisterCallsite has no opinion of its own; the registry never filters.
func (r *Registry) RegisterCallsite(*layer.Metadata) filter.Interest {
	return filter.Always
}

// Enabled has no opinion of its own.
func (r *Registry) Enabled(*layer.Metadata) bool { return true }

// NewSpan allocates a dense SpanID and stores the span's creation data.
func (r *Registry) NewSpan(attrs *layer.Attributes) layer.SpanID {
	if r.closed.Load() {
		log.Warn("registry: NewSpan called after Close")
	}
	id := layer.SpanID(r.nextID.Add(1))
	r.mu.Lock()
	r.spans[id] = &entry{data: layer.SpanData{
		Metadata:  attrs.Metadata,
		Parent:    attrs.Parent,
		HasParent: attrs.HasParent,
	}, refs: 1}
	r.mu.Unlock()
	return id
}

func (r *Registry) Record(id layer.SpanID, rec *layer.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.spans[id]
	if !ok {
		return
	}
	if e.data.Metadata == nil {
		e.data.Metadata = rec.Metadata
	}
}

// RecordFollowsFrom is a relation hint; the default registry does not
// track causal follows-from graphs, only parent/child linkage.
func (r *Registry) RecordFollowsFrom(layer.SpanID, layer.SpanID) {}

// Event is a no-op at the registry: events are not stored, only spans.
func (r *Registry) Event(*layer.Event) {}

func (r *Registry) Enter(id layer.SpanID) {
	r.currentMu.Lock()
	r.current = append(r.current, id)
	r.currentMu.Unlock()
}

func (r *Registry) Exit(id layer.SpanID) {
	r.currentMu.Lock()
	defer r.currentMu.Unlock()
	for i := len(r.current) - 1; i >= 0; i-- {
		if r.current[i] == id {
			r.current = append(r.current[:i], r.current[i+1:]...)
			return
		}
	}
}

func (r *Registry) CloneSpan(id layer.SpanID) layer.SpanID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.spans[id]; ok {
		e.refs++
	}
	return id
}

func (r *Registry) TryClose(id layer.SpanID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.spans[id]
	if !ok {
		return true
	}
	e.refs--
	if e.refs > 0 {
		return false
	}
	delete(r.spans, id)
	r.extMu.Lock()
	delete(r.ext, id)
	r.extMu.Unlock()
	return true
}

func (r *Registry) CurrentSpan() (layer.SpanID, bool) {
	r.currentMu.Lock()
	defer r.currentMu.Unlock()
	if len(r.current) == 0 {
		return layer.NilSpanID, false
	}
	return r.current[len(r.current)-1], true
}

// Extension stores an arbitrary value alongside a live span, keyed by an
// opaque key (typically a package-private type), mirroring the original
// crate's per-span extensions slot.
func (r *Registry) Extension(id layer.SpanID, key interface{}) (interface{}, bool) {
	r.extMu.RLock()
	defer r.extMu.RUnlock()
	m, ok := r.ext[id]
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

// SetExtension stores value for key alongside span id.
func (r *Registry) SetExtension(id layer.SpanID, key, value interface{}) {
	r.extMu.Lock()
	defer r.extMu.Unlock()
	m, ok := r.ext[id]
	if !ok {
		m = make(map[interface{}]interface{})
		r.ext[id] = m
	}
	m[key] = value
}

// Close marks the registry closed; further NewSpan calls are logged as
// likely programming errors but still served, since the core promises no
// panics on the hot callback path.
func (r *Registry) Close() {
	r.closed.Store(true)
}
