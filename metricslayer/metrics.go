// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

// Package metricslayer provides a layer.Layer that counts the spans and
// events it is handed, per target, and pushes them through
// github.com/DataDog/datadog-go/v5/statsd, the teacher's own runtime
// metrics client.
package metricslayer

import (
	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/layerspan/layerspan-go/internal/log"
	"github.com/layerspan/layerspan-go/layer"
)

const (
	metricSpansNew    = "layerspan.spans.new"
	metricEventsAdmit = "layerspan.events.admitted"
)

// Option configures a Layer at construction, following the teacher's
// With-style functional-options pattern (appsec/options).
type Option func(*Layer)

// WithTags appends tags applied to every metric this Layer emits.
func WithTags(tags ...string) Option {
	return func(l *Layer) { l.tags = append(l.tags, tags...) }
}

// WithSampleRate sets the sample rate passed to every statsd call.
// Defaults to 1 (no sampling).
func WithSampleRate(rate float64) Option {
	return func(l *Layer) { l.rate = rate }
}

// Layer counts admitted spans and events by target and pushes the counts
// through a statsd.ClientInterface. It is an ordinary layer.Layer with no
// PLF knowledge of its own — the common case layer.Layered must combine
// correctly against a layer.Filtered sibling. Spans and events filtered out
// before reaching it are not counted.
type Layer struct {
	layer.BaseLayer

	client statsd.ClientInterface
	tags   []string
	rate   float64
}

// New builds a Layer emitting metrics through client. client is typically
// built with statsd.New(addr) by the caller; Layer never owns its
// lifecycle (it does not Close it).
func New(client statsd.ClientInterface, opts ...Option) *Layer {
	l := &Layer{client: client, rate: 1}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Layer) OnNewSpan(attrs *layer.Attributes, _ layer.SpanID, _ layer.Context) {
	l.count(metricSpansNew, attrs.Metadata)
}

func (l *Layer) OnEvent(event *layer.Event, _ layer.Context) {
	l.count(metricEventsAdmit, event.Metadata)
}

func (l *Layer) count(metric string, meta *layer.Metadata) {
	tags := l.tags
	if meta != nil && meta.Target != "" {
		tags = append(append([]string(nil), l.tags...), "target:"+meta.Target)
	}
	if err := l.client.Count(metric, 1, tags, l.rate); err != nil {
		log.Warn("metricslayer: count %s failed: %s", metric, err)
	}
}
