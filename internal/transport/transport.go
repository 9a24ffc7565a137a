package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConnected is returned by frame operations on a transport with no open socket.
var ErrNotConnected = errors.New("transport is not connected")

type Transport interface {
	Name() string
	Connect(ctx context.Context, target string) error
	Close() error
	ReadFrame(ctx context.Context) (Frame, error)
	WriteFrame(ctx context.Context, frame Frame) error
}

type FrameKind uint8

const (
	FrameText FrameKind = iota + 1
	FrameBinary
)

func (k FrameKind) String() string {
	switch k {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Frame is one inbound or outbound WebSocket payload, tagged as text or binary.
type Frame struct {
	Kind   FrameKind
	Text   string
	Binary []byte
}

func TextFrame(text string) Frame {
	return Frame{Kind: FrameText, Text: text}
}

func BinaryFrame(data []byte) Frame {
	return Frame{Kind: FrameBinary, Binary: data}
}

func (f Frame) Len() int {
	if f.Kind == FrameText {
		return len(f.Text)
	}

	return len(f.Binary)
}

// Bytes returns the frame payload regardless of its kind.
func (f Frame) Bytes() []byte {
	if f.Kind == FrameText {
		return []byte(f.Text)
	}

	return f.Binary
}
