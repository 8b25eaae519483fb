// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

//go:build layerspandebug

package filter

// Debug builds (-tags layerspandebug) enforce spec.md §4.C's nesting rule:
// the filter pass and the interest pass never interleave, and each bracket
// is entered and exited exactly once before the other kind may begin. This
// mirrors internal/locking/assert's //go:build debug-gated assertions: a
// violation means a producer re-entered the subscriber from inside a
// callback (spec.md §5, "re-entrancy"), which corrupts the in-flight Map.

func (s *State) enterFilterPass() {
	if s.inInterestPass != 0 {
		panic("filter: entered a filter pass while an interest pass was open")
	}
	if s.inFilterPass != 0 {
		panic("filter: filter pass re-entered before the previous one exited")
	}
	s.inFilterPass++
}

func (s *State) exitFilterPass() {
	if s.inFilterPass == 0 {
		panic("filter: exitFilterPass called without a matching enter")
	}
	s.inFilterPass--
}

func (s *State) enterInterestPass() {
	if s.inFilterPass != 0 {
		panic("filter: entered an interest pass while a filter pass was open")
	}
	if s.inInterestPass != 0 {
		panic("filter: interest pass re-entered before the previous one exited")
	}
	s.inInterestPass++
}

func (s *State) exitInterestPass() {
	if s.inInterestPass == 0 {
		panic("filter: exitInterestPass called without a matching enter")
	}
	s.inInterestPass--
}
