package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketOptions tunes timeouts and limits of the WebSocket transport.
type WebSocketOptions struct {
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	PongWait         time.Duration
	PingPeriod       time.Duration
	MaxMessageSize   int64
	Header           http.Header
}

func DefaultWebSocketOptions() WebSocketOptions {
	return WebSocketOptions{
		HandshakeTimeout: 10 * time.Second,
		WriteWait:        10 * time.Second,
		PongWait:         60 * time.Second,
		PingPeriod:       54 * time.Second,
		MaxMessageSize:   1 << 20,
	}
}

// WebSocketTransport owns a single client connection built on gorilla/websocket.
type WebSocketTransport struct {
	opts WebSocketOptions

	mu       sync.Mutex
	conn     *websocket.Conn
	target   string
	stopPing chan struct{}
	writeMu  sync.Mutex
}

func NewWebSocketTransport(opts WebSocketOptions) *WebSocketTransport {
	defaults := DefaultWebSocketOptions()
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaults.WriteWait
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaults.MaxMessageSize
	}
	if opts.PingPeriod > 0 && opts.PongWait > 0 && opts.PingPeriod >= opts.PongWait {
		opts.PingPeriod = opts.PongWait * 9 / 10
	}

	return &WebSocketTransport{opts: opts}
}

func (t *WebSocketTransport) Name() string {
	return "websocket"
}

func (t *WebSocketTransport) StatusTarget() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.target
}

func (t *WebSocketTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil
}

func (t *WebSocketTransport) Connect(ctx context.Context, target string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := t.logger("target", target)
	if t.conn != nil {
		logger.Debug("connect skipped: already connected")

		return nil
	}
	if err := validateTarget(target); err != nil {
		logger.Warn("connect failed: bad target", "error", err)

		return err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.opts.HandshakeTimeout,
	}
	logger.Info("connecting")
	conn, resp, err := dialer.DialContext(ctx, target, t.opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		logger.Warn("connect failed", "error", err)

		return fmt.Errorf("dial websocket: %w", err)
	}

	conn.SetReadLimit(t.opts.MaxMessageSize)
	if t.opts.PongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(t.opts.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(t.opts.PongWait))
		})
	}

	t.conn = conn
	t.target = target
	if t.opts.PingPeriod > 0 {
		t.stopPing = make(chan struct{})
		go t.runPing(conn, t.stopPing)
	}
	logger.Info("connected", "remote", conn.RemoteAddr().String())

	return nil
}

// Close sends a normal-closure frame and releases the socket. It is a no-op when not connected.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := t.logger("target", t.target)
	if t.conn == nil {
		logger.Debug("close skipped: not connected")

		return nil
	}
	if t.stopPing != nil {
		close(t.stopPing)
		t.stopPing = nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.opts.WriteWait)); err != nil &&
		!errors.Is(err, websocket.ErrCloseSent) {
		logger.Debug("close frame not sent", "error", err)
	}
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		logger.Warn("close failed", "error", err)

		return err
	}
	logger.Info("closed")

	return nil
}

func (t *WebSocketTransport) ReadFrame(ctx context.Context) (Frame, error) {
	conn, err := t.currentConn()
	if err != nil {
		return Frame{}, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	// ReadMessage only returns on a frame, a deadline or a closed socket.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	msgType, payload, err := conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Frame{}, fmt.Errorf("read websocket frame: %w", ctxErr)
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			t.logger().Warn("read frame failed", "error", err)
		}

		return Frame{}, fmt.Errorf("read websocket frame: %w", err)
	}

	switch msgType {
	case websocket.TextMessage:
		t.logger().Debug("read frame", "kind", FrameText, "len", len(payload))
		return TextFrame(string(payload)), nil
	case websocket.BinaryMessage:
		t.logger().Debug("read frame", "kind", FrameBinary, "len", len(payload))
		return BinaryFrame(payload), nil
	default:
		return Frame{}, fmt.Errorf("unexpected websocket message type %d", msgType)
	}
}

func (t *WebSocketTransport) WriteFrame(ctx context.Context, frame Frame) error {
	conn, err := t.currentConn()
	if err != nil {
		return err
	}

	msgType := websocket.TextMessage
	if frame.Kind == FrameBinary {
		msgType = websocket.BinaryMessage
	}

	deadline := time.Now().Add(t.opts.WriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(msgType, frame.Bytes()); err != nil {
		t.logger().Warn("write frame failed", "kind", frame.Kind, "len", frame.Len(), "error", err)

		return fmt.Errorf("write websocket frame: %w", err)
	}
	t.logger().Debug("write frame", "kind", frame.Kind, "len", frame.Len())

	return nil
}

func (t *WebSocketTransport) runPing(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(t.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.opts.WriteWait)); err != nil {
				t.logger().Debug("ping failed", "error", err)

				return
			}
		}
	}
}

func (t *WebSocketTransport) currentConn() (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, ErrNotConnected
	}

	return t.conn, nil
}

func (t *WebSocketTransport) logger(attrs ...any) *slog.Logger {
	return slog.With(append([]any{"component", "transport", "transport", t.Name()}, attrs...)...)
}

func validateTarget(target string) error {
	if strings.TrimSpace(target) == "" {
		return errors.New("websocket target is empty")
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parse websocket target: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("unsupported websocket scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("websocket target has no host")
	}

	return nil
}
