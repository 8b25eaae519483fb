// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

// Command layerspan-demo wires envfilter, registry, encoding, and
// metricslayer into a small Layered tree and prints every span/event that
// reaches it, driven by a directive string on the command line.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/spf13/pflag"

	"github.com/layerspan/layerspan-go/encoding"
	"github.com/layerspan/layerspan-go/envfilter"
	"github.com/layerspan/layerspan-go/layer"
	"github.com/layerspan/layerspan-go/metricslayer"
	"github.com/layerspan/layerspan-go/registry"
)

func main() {
	directive := pflag.StringP("filter", "f", "info", `filter directive, e.g. "info,payments=debug,noisy_dep=error"`)
	format := pflag.StringP("format", "o", "json", `output format: "json" or "msgp"`)
	statsdAddr := pflag.String("statsd", "", "statsd address to push span/event counters to; empty disables metrics")
	pflag.Parse()

	f, err := envfilter.Parse(*directive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "layerspan-demo: %s\n", err)
		os.Exit(1)
	}

	var formatter layer.Layer
	switch *format {
	case "json":
		formatter = encoding.NewJSONLayer(os.Stdout)
	case "msgp":
		formatter = encoding.NewMsgpLayer(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "layerspan-demo: unrecognized format %q\n", *format)
		os.Exit(1)
	}

	reg := registry.New()
	sub := layer.NewSubscriber(layer.NewFiltered(formatter, f), reg)

	if *statsdAddr != "" {
		client, err := statsd.New(*statsdAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "layerspan-demo: statsd: %s\n", err)
			os.Exit(1)
		}
		defer client.Close()
		sub = layer.NewSubscriber(metricslayer.New(client), sub)
	}
	sub.OnRegister(reg)

	runDemo(sub)
}

// runDemo emits a handful of representative spans and events through sub,
// so a reader can see the directive filter and formatter interact without
// needing a real diagnostic producer wired up.
func runDemo(sub layer.Subscriber) {
	now := time.Now()
	meta := func(level layer.Level, target, name string) *layer.Metadata {
		return &layer.Metadata{Level: level, Target: target, Name: name}
	}

	root := sub.NewSpan(&layer.Attributes{Metadata: meta(layer.LevelInfo, "payments", "charge")})
	sub.Enter(root)

	sub.Event(&layer.Event{
		Metadata: meta(layer.LevelInfo, "payments", "charge.accepted"),
		Fields:   map[string]interface{}{"amount_cents": 4200, "at": now.Format(time.RFC3339)},
	})
	sub.Event(&layer.Event{
		Metadata: meta(layer.LevelDebug, "noisy_dep", "poll"),
		Fields:   map[string]interface{}{"tick": 1},
	})

	sub.Exit(root)
	sub.TryClose(root)
}
