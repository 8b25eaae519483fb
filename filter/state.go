// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package filter

import "context"

// Interest is a tri-state caching opinion about a callsite: Always means
// "cache this decision as positive and skip future enabled checks", Never
// means "cache negative", Sometimes means "re-ask every time".
type Interest int

const (
	// Sometimes forces re-evaluation on every occurrence of the callsite.
	Sometimes Interest = iota
	// Always caches the callsite as permanently enabled.
	Always
	// Never caches the callsite as permanently disabled.
	Never
)

func (i Interest) String() string {
	switch i {
	case Always:
		return "always"
	case Never:
		return "never"
	default:
		return "sometimes"
	}
}

// IsNever reports whether i is the Never interest.
func (i Interest) IsNever() bool { return i == Never }

// IsAlways reports whether i is the Always interest.
func (i Interest) IsAlways() bool { return i == Always }

// State is the scratch area accumulated over one synchronous callback
// chain: the in-progress Map of per-filter verdicts for the span/event
// currently under evaluation, and the in-progress combined Interest for
// the callsite currently being registered.
//
// The original crate keeps one State per OS thread, created lazily and
// torn down with the thread, reasoning that a producer never emits two
// passes concurrently on the same thread. Go's goroutines are not pinned to
// OS threads, so this port carries State explicitly through a
// context.Context for the duration of one call chain instead of recovering
// it from thread-local storage; see DESIGN.md, Open Question 1. Everything
// it does once obtained is identical to the original: no locking, because a
// State is never shared between concurrently-running call chains.
type State struct {
	enabled  Map
	interest *Interest

	// counters guarding re-entrancy; always present, only enforced when
	// built with the layerspandebug tag. See state_debug.go/state_release.go.
	inFilterPass   int
	inInterestPass int
}

type stateKey struct{}

// NewContext returns a context carrying a fresh State, to be used as the
// root of one top-level callback chain (one callsite registration, one
// enabled evaluation, or one new-span admission).
func NewContext(parent context.Context) context.Context {
	return context.WithValue(parent, stateKey{}, &State{})
}

// FromContext returns the State carried by ctx, or nil if ctx carries none
// (e.g. a context constructed outside of this package's call chains).
func FromContext(ctx context.Context) *State {
	s, _ := ctx.Value(stateKey{}).(*State)
	return s
}

// Set updates the verdict bit for id in the in-flight Map.
func (s *State) Set(id ID, disabled bool) {
	if s == nil {
		return
	}
	s.enabled.Set(id, disabled)
}

// AddInterest folds new into the in-flight combined Interest: an empty
// cell simply stores it; a stored Always or Never that disagrees with a
// differing new value degrades to Sometimes; identical values are
// idempotent.
func (s *State) AddInterest(new Interest) {
	if s == nil {
		return
	}
	if s.interest == nil {
		v := new
		s.interest = &v
		return
	}
	cur := *s.interest
	if cur == new {
		return
	}
	combined := Sometimes
	s.interest = &combined
}

// TakeInterest moves the combined Interest out of the state, resetting the
// cell to empty. A subsequent TakeInterest with no intervening AddInterest
// yields (Sometimes, false).
func (s *State) TakeInterest() (Interest, bool) {
	if s == nil || s.interest == nil {
		return Sometimes, false
	}
	v := *s.interest
	s.interest = nil
	return v, true
}

// DidEnable is the single authoritative consumer of a filter's verdict bit
// for events and newly admitted spans (spec.md §4.D pattern 3): if the bit
// for id is clear (enabled), f runs. If it is set (disabled), the bit is
// cleared back to the default so the Map is clean for the next pass, and f
// does not run.
func (s *State) DidEnable(id ID, f func()) {
	if s == nil {
		f()
		return
	}
	if s.enabled.IsEnabled(id) {
		f()
		return
	}
	s.enabled.Reset(id)
}

// EventEnabled snapshots AnyEnabled for the in-flight Map. It never mutates
// state — see DESIGN.md Open Question 3 for why this and FilterMap are kept
// strictly read-only, leaving DidEnable as the sole place bits are cleared.
func (s *State) EventEnabled() bool {
	if s == nil {
		return true
	}
	return s.enabled.AnyEnabled()
}

// EventEnabledAmong is EventEnabled scoped to the number of filters actually
// registered against the subscriber handling this pass: true unless every
// one of them disabled it. Plain EventEnabled compares against the full
// 64-slot word, which only matches "did every real filter reject this" when
// all 64 ids happen to be in use. See DESIGN.md's write-up of this
// ambiguity, surfaced by spec.md §8 Scenario 1 (a single registered filter
// rejecting an event must make event_enabled false, which the unscoped
// formula cannot produce).
func (s *State) EventEnabledAmong(registered int) bool {
	if s == nil {
		return true
	}
	return s.enabled.AnyEnabledAmong(registered)
}

// FilterMap snapshots the whole in-flight Map, for the terminal registry to
// persist alongside a newly admitted span.
func (s *State) FilterMap() Map {
	if s == nil {
		return Map{}
	}
	return s.enabled
}

// EnterFilterPass and ExitFilterPass bracket one round of Filtered.Enabled
// calls populating this State's Map for a single span or event. In debug
// builds (see state_debug.go) mismatched enter/exit pairs, or a filter pass
// beginning while an interest pass is still open, abort the program; in
// release builds (state_release.go) they are no-ops, matching spec.md §7:
// no panics on the hot callback path.
func (s *State) EnterFilterPass() {
	if s != nil {
		s.enterFilterPass()
	}
}

// ExitFilterPass closes the bracket opened by EnterFilterPass.
func (s *State) ExitFilterPass() {
	if s != nil {
		s.exitFilterPass()
	}
}

// EnterInterestPass and ExitInterestPass bracket one round of
// Filtered.CallsiteEnabled calls populating this State's combined Interest
// for a single callsite registration.
func (s *State) EnterInterestPass() {
	if s != nil {
		s.enterInterestPass()
	}
}

// ExitInterestPass closes the bracket opened by EnterInterestPass.
func (s *State) ExitInterestPass() {
	if s != nil {
		s.exitInterestPass()
	}
}
