// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package encoding

import (
	"io"
	"sync"

	"github.com/tinylib/msgp/msgp"

	"github.com/layerspan/layerspan-go/internal/log"
	"github.com/layerspan/layerspan-go/layer"
)

// MsgpLayer renders every admitted span and event as a compact MessagePack
// record, using github.com/tinylib/msgp/msgp's runtime Writer directly —
// the same library dd-trace-go uses to encode its trace payloads — rather
// than generating a schema, since the span/event shape here is small and
// fixed.
type MsgpLayer struct {
	layer.BaseLayer

	mu sync.Mutex
	w  *msgp.Writer
}

// NewMsgpLayer builds a MsgpLayer writing to w.
func NewMsgpLayer(w io.Writer) *MsgpLayer {
	return &MsgpLayer{w: msgp.NewWriter(w)}
}

func (l *MsgpLayer) OnEvent(event *layer.Event, _ layer.Context) {
	l.encode(event.Metadata, event.Fields)
}

func (l *MsgpLayer) OnNewSpan(attrs *layer.Attributes, _ layer.SpanID, _ layer.Context) {
	l.encode(attrs.Metadata, nil)
}

func (l *MsgpLayer) encode(meta *layer.Metadata, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.w.WriteMapHeader(4); err != nil {
		log.Error("encoding: msgp write failed: %s", err)
		return
	}
	fail := func(err error) bool {
		if err != nil {
			log.Error("encoding: msgp write failed: %s", err)
			return true
		}
		return false
	}

	if fail(l.w.WriteString("target")) || fail(l.w.WriteString(meta.Target)) {
		return
	}
	if fail(l.w.WriteString("name")) || fail(l.w.WriteString(meta.Name)) {
		return
	}
	if fail(l.w.WriteString("level")) || fail(l.w.WriteInt(int(meta.Level))) {
		return
	}
	if fail(l.w.WriteString("fields")) || fail(l.w.WriteMapHeader(uint32(len(fields)))) {
		return
	}
	for k, v := range fields {
		if fail(l.w.WriteString(k)) {
			return
		}
		if err := l.w.WriteIntf(v); err != nil {
			log.Error("encoding: msgp write failed: %s", err)
		}
	}

	if err := l.w.Flush(); err != nil {
		log.Error("encoding: msgp flush failed: %s", err)
	}
}
