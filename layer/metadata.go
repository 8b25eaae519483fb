// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

// Package layer implements layer composition (Layered) and per-layer
// filtering (Filtered): the two mechanisms by which independent diagnostic
// observers are combined into one subscriber while keeping each observer's
// filtering decisions local to itself.
package layer

import "fmt"

// Level is a callsite's severity, ordered from least to most verbose.
// Combining two hints takes the larger (more verbose) value, matching the
// "most-verbose wins" rule for LevelHint.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

func maxLevel(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}

// LevelHint is an optional severity ceiling: Present false means "no
// opinion, enable anything". Combining rule lives on Layered and Filter.
type LevelHint struct {
	Level   Level
	Present bool
}

// NoHint is the absent LevelHint ("no ceiling").
var NoHint = LevelHint{}

// Hint constructs a present LevelHint at l.
func Hint(l Level) LevelHint {
	return LevelHint{Level: l, Present: true}
}

func combineHints(a, b LevelHint) LevelHint {
	if !a.Present || !b.Present {
		return NoHint
	}
	return Hint(maxLevel(a.Level, b.Level))
}

// Metadata is an immutable callsite descriptor, supplied by the event
// producer and compared by pointer identity — mirroring the 'static
// lifetime pointer the original crate relies on.
type Metadata struct {
	Level  Level
	Target string
	Name   string
	Fields []string
	IsSpan bool
}

// SpanID is an opaque handle identifying one live span in the registry.
type SpanID uint64

// NilSpanID is the sentinel returned when a span was never created, e.g.
// because every per-layer filter (and the overall composition) rejected it.
const NilSpanID SpanID = 0

// Attributes describes a span at creation time: its callsite metadata and
// an optional parent link.
type Attributes struct {
	Metadata  *Metadata
	Parent    SpanID
	HasParent bool
}

// Record carries field updates for an already-live span.
type Record struct {
	Metadata *Metadata
	Fields   map[string]interface{}
}

// Event is a single point-in-time diagnostic observation.
type Event struct {
	Metadata *Metadata
	Fields   map[string]interface{}
}
