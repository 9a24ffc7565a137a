package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newEchoServer(t *testing.T, greet ...Frame) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for _, f := range greet {
			msgType := websocket.TextMessage
			if f.Kind == FrameBinary {
				msgType = websocket.BinaryMessage
			}
			if err := conn.WriteMessage(msgType, f.Bytes()); err != nil {
				return
			}
		}
		for {
			msgType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msgType, payload); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketTransportReadsTaggedFrames(t *testing.T) {
	target := newEchoServer(t, TextFrame(`{"project":"X"}`), BinaryFrame([]byte{0x01, 0x02}))
	tr := NewWebSocketTransport(DefaultWebSocketOptions())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tr.Connect(ctx, target); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = tr.Close() }()
	if !tr.Connected() {
		t.Fatalf("expected transport to report connected")
	}
	if tr.StatusTarget() != target {
		t.Fatalf("unexpected status target %q", tr.StatusTarget())
	}

	text, err := tr.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("read text frame: %v", err)
	}
	if text.Kind != FrameText || text.Text != `{"project":"X"}` {
		t.Fatalf("unexpected text frame %+v", text)
	}

	bin, err := tr.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("read binary frame: %v", err)
	}
	if bin.Kind != FrameBinary || len(bin.Binary) != 2 || bin.Binary[1] != 0x02 {
		t.Fatalf("unexpected binary frame %+v", bin)
	}
}

func TestWebSocketTransportWriteEcho(t *testing.T) {
	target := newEchoServer(t)
	tr := NewWebSocketTransport(WebSocketOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tr.Connect(ctx, target); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = tr.Close() }()

	if err := tr.WriteFrame(ctx, TextFrame("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := tr.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if got.Text != "ping" {
		t.Fatalf("unexpected echo %+v", got)
	}
}

func TestWebSocketTransportCloseIsIdempotent(t *testing.T) {
	target := newEchoServer(t)
	tr := NewWebSocketTransport(DefaultWebSocketOptions())
	if err := tr.Connect(context.Background(), target); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := tr.ReadFrame(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after close, got %v", err)
	}
	if err := tr.WriteFrame(context.Background(), TextFrame("x")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected on write after close, got %v", err)
	}
}

func TestWebSocketTransportRejectsBadTargets(t *testing.T) {
	tr := NewWebSocketTransport(DefaultWebSocketOptions())
	for _, target := range []string{"", "http://example.com", "ws://", "::bad"} {
		if err := tr.Connect(context.Background(), target); err == nil {
			t.Fatalf("expected target %q to be rejected", target)
		}
	}
}

func TestWebSocketTransportDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	tr := NewWebSocketTransport(WebSocketOptions{HandshakeTimeout: time.Second})
	if err := tr.Connect(context.Background(), target); err == nil {
		t.Fatalf("expected dial to a closed server to fail")
	}
	if tr.Connected() {
		t.Fatalf("transport must not report connected after a failed dial")
	}
}

func TestWebSocketTransportReadStopsOnCancel(t *testing.T) {
	target := newEchoServer(t)
	tr := NewWebSocketTransport(DefaultWebSocketOptions())
	if err := tr.Connect(context.Background(), target); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = tr.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := tr.ReadFrame(ctx)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("read did not return after cancel")
	}
}

func TestFrameKindString(t *testing.T) {
	if FrameText.String() != "text" || FrameBinary.String() != "binary" {
		t.Fatalf("unexpected frame kind names")
	}
	if got := FrameKind(9).String(); got != "unknown(9)" {
		t.Fatalf("unexpected unknown kind name %q", got)
	}
}
