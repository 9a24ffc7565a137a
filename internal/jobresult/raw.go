package jobresult

import (
	"unicode/utf8"

	"github.com/jenkinstray/jenkinstray/internal/bus"
	"github.com/jenkinstray/jenkinstray/internal/connectors"
	"github.com/jenkinstray/jenkinstray/internal/dataflow"
	"github.com/jenkinstray/jenkinstray/internal/transport"
)

const rawPreviewLimit = 64

// RawFrameExecuter matches every frame and publishes a diagnostic copy on the bus.
type RawFrameExecuter struct {
	bus bus.MessageBus
}

func NewRawFrameExecuter(messageBus bus.MessageBus) *RawFrameExecuter {
	return &RawFrameExecuter{bus: messageBus}
}

func (e *RawFrameExecuter) Match(frame transport.Frame) (dataflow.Action, bool) {
	if e.bus == nil {
		return nil, false
	}

	return func() {
		e.bus.Publish(connectors.TopicRawFrameIn, connectors.RawFrame{
			Kind:    frame.Kind.String(),
			Len:     frame.Len(),
			Preview: preview(frame),
		})
	}, true
}

// preview is the leading UTF-8 text of the frame, cut on a rune boundary. Non-UTF-8 payloads give "".
func preview(frame transport.Frame) string {
	raw := frame.Bytes()
	if !utf8.Valid(raw) {
		return ""
	}
	if len(raw) <= rawPreviewLimit {
		return string(raw)
	}
	cut := rawPreviewLimit
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}

	return string(raw[:cut])
}
