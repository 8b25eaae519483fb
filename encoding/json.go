// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

// Package encoding provides concrete formatter layers: ordinary
// layer.Layer implementations with no PLF knowledge of their own, the
// common case layer.Layered must combine correctly against a
// layer.Filtered sibling.
package encoding

import (
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/layerspan/layerspan-go/internal/log"
	"github.com/layerspan/layerspan-go/layer"
)

// JSONLayer renders every admitted span and event as one JSON line, via
// zap's zapcore.Encoder — the same encoder the teacher's zap integration
// wraps, used here directly rather than through a *zap.Logger since there
// is no need for zap's own level/sampling machinery on top of the layer
// tree's own filtering.
type JSONLayer struct {
	layer.BaseLayer

	encoder zapcore.Encoder
	mu      sync.Mutex
	out     io.Writer
}

// NewJSONLayer builds a JSONLayer writing newline-delimited JSON to w.
func NewJSONLayer(w io.Writer) *JSONLayer {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "target",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}
	return &JSONLayer{encoder: zapcore.NewJSONEncoder(cfg), out: w}
}

func (l *JSONLayer) OnEvent(event *layer.Event, _ layer.Context) {
	l.write(event.Metadata, event.Fields)
}

func (l *JSONLayer) OnNewSpan(attrs *layer.Attributes, _ layer.SpanID, _ layer.Context) {
	l.write(attrs.Metadata, nil)
}

func (l *JSONLayer) write(meta *layer.Metadata, fields map[string]interface{}) {
	zfields := make([]zapcore.Field, 0, len(fields))
	for k, v := range fields {
		zfields = append(zfields, zap.Any(k, v))
	}

	buf, err := l.encoder.EncodeEntry(zapcore.Entry{
		Level:      zapLevel(meta.Level),
		Time:       time.Now(),
		LoggerName: meta.Target,
		Message:    meta.Name,
	}, zfields)
	if err != nil {
		log.Error("encoding: zap encode failed: %s", err)
		return
	}
	defer buf.Free()

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(buf.Bytes())
}

func zapLevel(l layer.Level) zapcore.Level {
	switch l {
	case layer.LevelError:
		return zapcore.ErrorLevel
	case layer.LevelWarn:
		return zapcore.WarnLevel
	case layer.LevelInfo:
		return zapcore.InfoLevel
	default:
		// zapcore has no Trace level; Debug and Trace both render as debug.
		return zapcore.DebugLevel
	}
}
