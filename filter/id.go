// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

// Package filter holds the primitives of per-layer filtering (PLF), in
// which an independent filter predicate attached to a single layer governs
// only that layer's view of a span or event: filter ids, the per-filter
// verdict Map, Interest, and the per-call-chain State. The Filtered wrapper
// and the Filter contract live in package layer.
package filter

import "fmt"

// ID densely identifies one per-layer filter within a subscriber tree. Valid
// registered ids are in [0, MaxFilters). Unregistered is the sentinel value
// held by a Filtered that has not yet been attached to a subscriber.
type ID int8

// Unregistered is the id of a Filtered that has not been registered with a
// subscriber yet. It always reads back as "disabled" from a Map, and writes
// through it are no-ops: nothing has allocated storage for it.
const Unregistered ID = -1

// MaxFilters is the number of distinct per-layer filters a single subscriber
// tree may host. Map is a single 64-bit word, one bit per filter id, chosen
// deliberately for branchless, cache-line-friendly bit ops; raise it only
// with a corresponding change to Map's backing type.
const MaxFilters = 64

// Valid reports whether id is a registered, in-range filter id.
func (id ID) Valid() bool {
	return id >= 0 && int(id) < MaxFilters
}

func (id ID) String() string {
	if id == Unregistered {
		return "unregistered"
	}
	return fmt.Sprintf("filter#%d", int(id))
}
