// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package layer

import (
	"context"

	"github.com/layerspan/layerspan-go/filter"
)

// Layered composes an outer Layer atop an inner collaborator — either
// another Layer (building a tree) or the terminal Subscriber (closing it).
// It implements both Layer (so it can itself be wrapped by a further outer
// Layered) and Subscriber (so the outermost Layered in a tree is what a
// producer talks to directly). Grounded on the original's
// layer/layered.rs Layered<L, I, S>.
type Layered struct {
	outer Layer

	innerLayer Layer       // set when composing atop another Layer
	innerSub   Subscriber  // set when composing atop the terminal Subscriber
	term       Subscriber  // the terminal Subscriber at the bottom of this subtree

	innerIsRegistry     bool
	hasLayerFilter      bool
	innerHasLayerFilter bool
}

// New composes outer atop another Layer, producing a Layer. Whether inner
// "has a layer filter" is detected automatically via inner.IsPerLayerFiltered
// rather than threaded as an explicit caller-supplied flag (a Go-idiomatic
// simplification of the original's Layered::new(outer, inner, inner_has_plf)
// that preserves the same observable invariant without asking callers to
// keep a redundant bool in sync).
func New(outer Layer, inner Layer) *Layered {
	return &Layered{
		outer:               outer,
		innerLayer:          inner,
		term:                terminalOf(inner),
		hasLayerFilter:      outer.IsPerLayerFiltered(),
		innerHasLayerFilter: inner.IsPerLayerFiltered(),
	}
}

// NewSubscriber composes outer atop the terminal Subscriber inner, closing
// the tree. The registry always counts as a PLF participant (spec.md
// §4.E), detected here via the FilterRegistrar interface rather than a
// type-id comparison.
func NewSubscriber(outer Layer, inner Subscriber) *Layered {
	_, isRegistry := inner.(FilterRegistrar)
	return &Layered{
		outer:               outer,
		innerSub:            inner,
		term:                inner,
		innerIsRegistry:     isRegistry,
		hasLayerFilter:      outer.IsPerLayerFiltered(),
		innerHasLayerFilter: true,
	}
}

func terminalOf(l Layer) Subscriber {
	if ly, ok := l.(*Layered); ok {
		return ly.term
	}
	return nil
}

func (l *Layered) lookupSpan() LookupSpan {
	if l.term == nil {
		return nil
	}
	if ls, ok := l.term.(LookupSpan); ok {
		return ls
	}
	return nil
}

// registeredFilterCount reports how many FilterIds the terminal Subscriber
// has handed out, for scoping event_enabled checks (see
// filter.State.EventEnabledAmong). *Layered itself implements FilterCounter
// (see FilterCount below) by delegating to its own term, so this sees
// straight through an intermediate *Layered built by an earlier
// NewSubscriber call to the real registry beneath it. Falls back to the
// full 64-slot word when term does not implement FilterCounter, matching
// the unscoped behavior; an intermediate *Layered whose own term exposes no
// count reports 0, which EventEnabledAmong treats as no filters registered.
func (l *Layered) registeredFilterCount() int {
	if fc, ok := l.term.(FilterCounter); ok {
		return fc.FilterCount()
	}
	return filter.MaxFilters
}

func (l *Layered) freshContext() Context {
	return NewContext(filter.NewContext(context.Background()), l.lookupSpan())
}

// --- Layer interface: pure forwarding/combination, no orchestration ---

// dispatchInner returns the collaborator to forward Layer callbacks to:
// innerLayer when this Layered was built with New, or innerSub itself when
// it was built with NewSubscriber and that Subscriber happens to also be a
// *Layered (hence a Layer too) — the case of NewSubscriber composed atop a
// Subscriber built by an earlier NewSubscriber call. Returns nil only for a
// genuinely opinion-less terminal (a plain registry), which every caller
// below already treats as "nothing to forward".
func (l *Layered) dispatchInner() Layer {
	if l.innerLayer != nil {
		return l.innerLayer
	}
	if ly, ok := l.innerSub.(Layer); ok {
		return ly
	}
	return nil
}

func (l *Layered) OnRegister(sub Subscriber) {
	if inner := l.dispatchInner(); inner != nil {
		inner.OnRegister(sub)
	}
	l.outer.OnRegister(sub)
}

// FilterCount reports the filter count of the terminal Subscriber this tree
// bottoms out at, so a further-outer Layered composed via NewSubscriber can
// see past an intermediate *Layered straight through to the real registry
// (see registeredFilterCount).
func (l *Layered) FilterCount() int {
	if fc, ok := l.term.(FilterCounter); ok {
		return fc.FilterCount()
	}
	return 0
}

func (l *Layered) innerRegisterCallsite(ctx context.Context, meta *Metadata) filter.Interest {
	if inner := l.dispatchInner(); inner != nil {
		return inner.OnRegisterCallsite(ctx, meta)
	}
	// Terminal registry: no opinion of its own. It is where the per-layer
	// filters' combined Interest is collected, if any Filtered contributed.
	if real, ok := filter.FromContext(ctx).TakeInterest(); ok {
		return real
	}
	return filter.Always
}

// OnRegisterCallsite implements the seven-branch interest-combining rule
// of spec.md §4.E.
func (l *Layered) OnRegisterCallsite(ctx context.Context, meta *Metadata) filter.Interest {
	o := l.outer.OnRegisterCallsite(ctx, meta)

	if l.hasLayerFilter {
		// outer's return value is an artifact of PLF accumulation, not its
		// real opinion; defer entirely to inner.
		return l.innerRegisterCallsite(ctx, meta)
	}
	if o == filter.Never {
		return filter.Never
	}
	i := l.innerRegisterCallsite(ctx, meta)
	if o == filter.Sometimes {
		return filter.Sometimes
	}
	if i == filter.Never && o != filter.Never && l.innerHasLayerFilter {
		return filter.Sometimes
	}
	return i
}

func (l *Layered) innerEnabled(meta *Metadata, cx Context) bool {
	if inner := l.dispatchInner(); inner != nil {
		return inner.OnEnabled(meta, cx)
	}
	return true
}

// OnEnabled short-circuits: if outer rejects, inner is never asked.
func (l *Layered) OnEnabled(meta *Metadata, cx Context) bool {
	if !l.outer.OnEnabled(meta, cx) {
		return false
	}
	return l.innerEnabled(meta, cx)
}

// OnNewSpan, like the rest of the informational callbacks below, forwards
// only to innerLayer, never to innerSub: when this Layered was built with
// NewSubscriber, the nested Subscriber's own OnX chain already runs in
// full as part of term.X() (see NewSpan/Event/etc. below) — forwarding
// here too would invoke it a second time.
func (l *Layered) OnNewSpan(attrs *Attributes, id SpanID, cx Context) {
	if l.innerLayer != nil {
		l.innerLayer.OnNewSpan(attrs, id, cx)
	}
	l.outer.OnNewSpan(attrs, id, cx)
}

func (l *Layered) OnRecord(id SpanID, rec *Record, cx Context) {
	if l.innerLayer != nil {
		l.innerLayer.OnRecord(id, rec, cx)
	}
	l.outer.OnRecord(id, rec, cx)
}

func (l *Layered) OnFollowsFrom(span, follows SpanID, cx Context) {
	if l.innerLayer != nil {
		l.innerLayer.OnFollowsFrom(span, follows, cx)
	}
	l.outer.OnFollowsFrom(span, follows, cx)
}

func (l *Layered) OnEvent(event *Event, cx Context) {
	if l.innerLayer != nil {
		l.innerLayer.OnEvent(event, cx)
	}
	l.outer.OnEvent(event, cx)
}

func (l *Layered) OnEnter(id SpanID, cx Context) {
	if l.innerLayer != nil {
		l.innerLayer.OnEnter(id, cx)
	}
	l.outer.OnEnter(id, cx)
}

func (l *Layered) OnExit(id SpanID, cx Context) {
	if l.innerLayer != nil {
		l.innerLayer.OnExit(id, cx)
	}
	l.outer.OnExit(id, cx)
}

func (l *Layered) OnClose(id SpanID, cx Context) {
	if l.innerLayer != nil {
		l.innerLayer.OnClose(id, cx)
	}
	l.outer.OnClose(id, cx)
}

func (l *Layered) OnIDChange(old, new SpanID, cx Context) {
	if l.innerLayer != nil {
		l.innerLayer.OnIDChange(old, new, cx)
	}
	l.outer.OnIDChange(old, new, cx)
}

func (l *Layered) innerMaxLevelHint() LevelHint {
	if inner := l.dispatchInner(); inner != nil {
		return inner.MaxLevelHint()
	}
	return NoHint
}

// MaxLevelHint implements the four-branch level-hint combining rule of
// spec.md §4.E.
func (l *Layered) MaxLevelHint() LevelHint {
	outerHint := l.outer.MaxLevelHint()
	if l.innerIsRegistry {
		return outerHint
	}
	innerHint := l.innerMaxLevelHint()

	switch {
	case l.hasLayerFilter && l.innerHasLayerFilter:
		return combineHints(outerHint, innerHint)
	case l.hasLayerFilter && !innerHint.Present:
		return NoHint
	case l.innerHasLayerFilter && !outerHint.Present:
		return NoHint
	default:
		return combineHints(outerHint, innerHint)
	}
}

// IsPerLayerFiltered returns true only when BOTH branches report PLF — the
// edge-case rule of spec.md §4.E: a Layered with only one PLF branch has
// already taken on combining responsibility and must hide its own PLF-ness
// from any further-outer Layered, or that outer composer would
// double-route interest/level decisions through the PLF path.
func (l *Layered) IsPerLayerFiltered() bool {
	return l.hasLayerFilter && l.innerHasLayerFilter
}

// --- Subscriber interface: orchestrates filter.State per call ---

// RegisterCallsite runs the interest pass and returns the combined Interest
// of OnRegisterCallsite. The Filtered layers' accumulated Interest enters
// that result where the chain reaches the terminal registry (see
// innerRegisterCallsite), so the combining rules above still apply to it.
func (l *Layered) RegisterCallsite(meta *Metadata) filter.Interest {
	ctx := filter.NewContext(context.Background())
	state := filter.FromContext(ctx)
	state.EnterInterestPass()
	interest := l.OnRegisterCallsite(ctx, meta)
	state.ExitInterestPass()
	return interest
}

// Enabled is a cheap, self-contained pre-check: it runs its own filter
// pass against a throwaway Context, independent of any later Event/NewSpan
// call. It never needs to share state across calls because, unlike the
// original's thread-local FilterState, nothing here is recovered by a
// later call on the same goroutine.
func (l *Layered) Enabled(meta *Metadata) bool {
	cx := l.freshContext()
	cx.State().EnterFilterPass()
	enabled := l.OnEnabled(meta, cx)
	cx.State().ExitFilterPass()
	return enabled
}

// NewSpan runs the filter pass and the did-enable dispatch within one
// context, so a Filtered's bit set during the pass is the exact bit its
// OnNewSpan consumes — folding what the original split across a
// thread-local-shared enabled() call and a later new_span() call into one
// Go call, since Go has no implicit thread-local channel between them.
//
// Like Event, NewSpan consults event_enabled after the filter pass (spec.md
// §4.E: "new-span dispatch likewise uses the map to decide whether to even
// allocate a span ID"): a Filtered's own OnEnabled always returns true by
// design, so the real per-filter verdict only lives in the FilterMap bits
// it set, and a span every registered filter rejected never gets a span ID
// at all. A span at least one filter admitted is still created, even for
// filters that individually rejected it — see the per-span carry-over rule
// (spec.md §8), which then suppresses only those filters' own forwarding.
func (l *Layered) NewSpan(attrs *Attributes) SpanID {
	cx := l.freshContext()
	state := cx.State()

	state.EnterFilterPass()
	enabled := l.OnEnabled(attrs.Metadata, cx)
	state.ExitFilterPass()
	if !enabled || !state.EventEnabledAmong(l.registeredFilterCount()) {
		return NilSpanID
	}

	id := l.term.NewSpan(attrs)
	if id == NilSpanID {
		return NilSpanID
	}
	if setter, ok := l.term.(FilterMapSetter); ok {
		setter.SetSpanFilters(id, state.FilterMap())
	}
	l.OnNewSpan(attrs, id, cx)
	return id
}

// Record, like every other informational callback below, dispatches to
// term before running its own OnX chain: when term is a plain registry this
// ordering is unobservable, but when term is itself a Subscriber composed
// in via NewSubscriber (a nested Layered tree), term.X is that tree's own
// full inner-then-outer chain and must run to completion before this level's
// outer sees the call — see spec.md §4.E's forwarding-order guarantee.
func (l *Layered) Record(id SpanID, rec *Record) {
	cx := l.freshContext()
	l.term.Record(id, rec)
	l.OnRecord(id, rec, cx)
}

func (l *Layered) RecordFollowsFrom(span, follows SpanID) {
	cx := l.freshContext()
	l.term.RecordFollowsFrom(span, follows)
	l.OnFollowsFrom(span, follows, cx)
}

// Event runs the filter pass and the did-enable dispatch within one
// context, mirroring NewSpan: spec.md §8 Scenario 1 requires exactly this
// — the same pass that sets a Filtered's bit is what its OnEvent consumes.
// term.Event runs before OnEvent for the same forwarding-order reason as
// Record above.
func (l *Layered) Event(event *Event) {
	cx := l.freshContext()
	state := cx.State()

	state.EnterFilterPass()
	enabled := l.OnEnabled(event.Metadata, cx)
	state.ExitFilterPass()
	if !enabled || !state.EventEnabledAmong(l.registeredFilterCount()) {
		return
	}
	l.term.Event(event)
	l.OnEvent(event, cx)
}

func (l *Layered) Enter(id SpanID) {
	cx := l.freshContext()
	l.term.Enter(id)
	l.OnEnter(id, cx)
}

func (l *Layered) Exit(id SpanID) {
	cx := l.freshContext()
	l.term.Exit(id)
	l.OnExit(id, cx)
}

func (l *Layered) CloneSpan(id SpanID) SpanID {
	return l.term.CloneSpan(id)
}

func (l *Layered) TryClose(id SpanID) bool {
	cx := l.freshContext()
	closed := l.term.TryClose(id)
	if closed {
		l.OnClose(id, cx)
	}
	return closed
}

func (l *Layered) CurrentSpan() (SpanID, bool) {
	return l.term.CurrentSpan()
}
