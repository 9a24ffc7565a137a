// Package wsclient keeps a single outbound WebSocket connection to the notification
// server alive and reports its lifecycle and inbound frames to registered handlers.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jenkinstray/jenkinstray/internal/backoff"
	"github.com/jenkinstray/jenkinstray/internal/bus"
	"github.com/jenkinstray/jenkinstray/internal/connectors"
	"github.com/jenkinstray/jenkinstray/internal/transport"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotImplemented  = errors.New("not implemented")
	ErrClosed          = errors.New("client is closed")
)

// DefaultRetryDelay is used between attempts when no backoff is configured.
const DefaultRetryDelay = 3 * time.Second

// Endpoint is the connection target and its retry budget.
type Endpoint struct {
	URI        string
	MaxRetries int
}

func (e Endpoint) validate() error {
	if strings.TrimSpace(e.URI) == "" {
		return fmt.Errorf("%w: uri is empty", ErrInvalidArgument)
	}
	if e.MaxRetries <= 0 {
		return fmt.Errorf("%w: max retries must be positive, got %d", ErrInvalidArgument, e.MaxRetries)
	}

	return nil
}

type State = connectors.ConnectionState

const (
	StateIdle       = connectors.ConnectionStateIdle
	StateConnecting = connectors.ConnectionStateConnecting
	StateOpen       = connectors.ConnectionStateOpen
	StateClosed     = connectors.ConnectionStateClosed
	StateFailed     = connectors.ConnectionStateFailed
)

type Option func(*Client)

func WithBackoff(b backoff.Backoff) Option {
	return func(c *Client) {
		if b != nil {
			c.backoff = b
		}
	}
}

// WithScheduler sets where every event handler runs.
func WithScheduler(s Scheduler) Option {
	return func(c *Client) {
		if s != nil {
			c.scheduler = s
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBus publishes a connectors.ConnectionStatus on every state change.
func WithBus(b bus.MessageBus) Option {
	return func(c *Client) {
		c.bus = b
	}
}

// Client is the reconnecting WebSocket communicator.
type Client struct {
	transport transport.Transport
	backoff   backoff.Backoff
	scheduler Scheduler
	logger    *slog.Logger
	bus       bus.MessageBus

	mu       sync.Mutex
	state    State
	endpoint Endpoint
	attempt  int
	cancel   context.CancelFunc
	done     chan struct{}
	closed   bool

	handlersMu         sync.RWMutex
	onConnected        []func()
	onDisconnected     []func(error)
	onConnectionFailed []func(error)
	onReceived         []func(transport.Frame)
	onReceivedError    []func(error)
}

func New(tr transport.Transport, opts ...Option) *Client {
	c := &Client{
		transport: tr,
		backoff:   backoff.Constant(DefaultRetryDelay),
		scheduler: InlineScheduler{},
		logger:    slog.Default().With("component", "wsclient"),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) OnConnected(fn func()) {
	if fn == nil {
		return
	}
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onConnected = append(c.onConnected, fn)
}

// OnDisconnected fires when an open connection ends. err is nil after Disconnect.
func (c *Client) OnDisconnected(fn func(err error)) {
	if fn == nil {
		return
	}
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onDisconnected = append(c.onDisconnected, fn)
}

// OnConnectionFailed fires once the retry budget is exhausted.
func (c *Client) OnConnectionFailed(fn func(err error)) {
	if fn == nil {
		return
	}
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onConnectionFailed = append(c.onConnectionFailed, fn)
}

func (c *Client) OnReceived(fn func(frame transport.Frame)) {
	if fn == nil {
		return
	}
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onReceived = append(c.onReceived, fn)
}

func (c *Client) OnReceivedError(fn func(err error)) {
	if fn == nil {
		return
	}
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onReceivedError = append(c.onReceivedError, fn)
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *Client) Connected() bool {
	return c.State() == StateOpen
}

// Attempts returns the number of consecutive failed opens in the current session.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.attempt
}

func (c *Client) Endpoint() Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.endpoint
}

// Done is closed when the current connection loop exits.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		ch := make(chan struct{})
		close(ch)

		return ch
	}

	return c.done
}

// Connect validates ep and starts the connection loop in the background.
// It is a no-op while a connection is being opened or is open.
func (c *Client) Connect(ctx context.Context, ep Endpoint) error {
	if err := ep.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return ErrClosed
	}
	if state := c.state; state == StateConnecting || state == StateOpen {
		c.mu.Unlock()
		c.logger.Debug("connect skipped", "state", state)

		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.endpoint = ep
	c.attempt = 0
	c.cancel = cancel
	c.done = done
	c.state = StateConnecting
	c.mu.Unlock()

	c.publishStatus(StateConnecting, nil, 0)
	go c.run(runCtx, ep, done)

	return nil
}

// Disconnect stops the connection loop and closes an open socket gracefully.
// It does not wait for handlers that are already running.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()

		return nil
	}
	wasOpen := c.state == StateOpen
	c.cancel()
	c.cancel = nil
	c.state = StateClosed
	c.mu.Unlock()

	c.publishStatus(StateClosed, nil, 0)
	if !wasOpen {
		return nil
	}
	if err := c.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}

	return nil
}

// Close disconnects and drops every registered handler. Later calls are no-ops.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.Disconnect()
	if closeErr := c.transport.Close(); err == nil {
		err = closeErr
	}

	c.handlersMu.Lock()
	c.onConnected = nil
	c.onDisconnected = nil
	c.onConnectionFailed = nil
	c.onReceived = nil
	c.onReceivedError = nil
	c.handlersMu.Unlock()

	return err
}

// Send is not supported by the notification protocol.
func (c *Client) Send(context.Context, transport.Frame) error {
	return ErrNotImplemented
}

func (c *Client) run(ctx context.Context, ep Endpoint, done chan struct{}) {
	defer c.finish(done)
	logger := c.logger.With("target", ep.URI)

	for {
		err := c.transport.Connect(ctx, ep.URI)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt, ok := c.failAttempt(ctx, ep, err)
			if !ok {
				return
			}
			if attempt > ep.MaxRetries {
				_ = c.transport.Close()
				logger.Error("connection failed, retries exhausted", "attempts", attempt, "error", err)
				c.emitError(c.connectionFailedHandlers(), err)

				return
			}
			delay := c.backoff.Next(attempt)
			logger.Warn("connect failed, retrying", "attempt", attempt, "max_retries", ep.MaxRetries, "delay", delay, "error", err)
			if !sleepWithContext(ctx, delay) {
				return
			}
			continue
		}

		if !c.transition(ctx, StateOpen, nil, true) {
			_ = c.transport.Close()

			return
		}
		logger.Info("connected")
		c.emitConnected()

		err = c.readLoop(ctx)
		if ctx.Err() != nil {
			logger.Info("disconnected")
			c.emitError(c.disconnectedHandlers(), nil)

			return
		}

		_ = c.transport.Close()
		logger.Warn("connection lost", "error", err)
		c.emitError(c.receivedErrorHandlers(), err)
		if !c.transition(ctx, StateConnecting, err, false) {
			return
		}
		c.emitError(c.disconnectedHandlers(), err)
		if !sleepWithContext(ctx, c.backoff.Next(1)) {
			return
		}
	}
}

// finish marks a loop stopped by its parent context as Closed, closes the socket and releases Done waiters.
func (c *Client) finish(done chan struct{}) {
	c.mu.Lock()
	stale := c.done == done && (c.state == StateConnecting || c.state == StateOpen)
	if stale {
		c.state = StateClosed
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
	}
	c.mu.Unlock()

	if stale {
		_ = c.transport.Close()
		c.publishStatus(StateClosed, nil, 0)
	}
	close(done)
}

func (c *Client) readLoop(ctx context.Context) error {
	for {
		frame, err := c.transport.ReadFrame(ctx)
		if err != nil {
			return err
		}
		c.emitReceived(frame)
	}
}

// failAttempt bumps the retry counter and moves to Connecting or, past the budget, Failed.
func (c *Client) failAttempt(ctx context.Context, ep Endpoint, cause error) (int, bool) {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()

		return 0, false
	}
	c.attempt++
	attempt := c.attempt
	state := StateConnecting
	if attempt > ep.MaxRetries {
		state = StateFailed
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
	}
	c.state = state
	c.mu.Unlock()

	c.publishStatus(state, cause, attempt)

	return attempt, true
}

// transition applies state unless the loop was stopped by Disconnect.
func (c *Client) transition(ctx context.Context, state State, cause error, resetAttempts bool) bool {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()

		return false
	}
	c.state = state
	if resetAttempts {
		c.attempt = 0
	}
	attempt := c.attempt
	c.mu.Unlock()

	c.publishStatus(state, cause, attempt)

	return true
}

func (c *Client) publishStatus(state State, cause error, attempt int) {
	if c.bus == nil {
		return
	}
	status := connectors.ConnectionStatus{
		State:         state,
		TransportName: c.transport.Name(),
		Target:        c.Endpoint().URI,
		Attempt:       attempt,
		Timestamp:     time.Now(),
	}
	if cause != nil {
		status.Err = cause.Error()
	}
	c.bus.Publish(connectors.TopicConnStatus, status)
}

func (c *Client) emitConnected() {
	c.handlersMu.RLock()
	handlers := append([]func(){}, c.onConnected...)
	c.handlersMu.RUnlock()
	if len(handlers) == 0 {
		return
	}
	c.scheduler.Do(func() {
		for _, h := range handlers {
			h()
		}
	})
}

func (c *Client) emitReceived(frame transport.Frame) {
	c.handlersMu.RLock()
	handlers := append([]func(transport.Frame){}, c.onReceived...)
	c.handlersMu.RUnlock()
	if len(handlers) == 0 {
		return
	}
	c.scheduler.Do(func() {
		for _, h := range handlers {
			h(frame)
		}
	})
}

func (c *Client) emitError(handlers []func(error), err error) {
	if len(handlers) == 0 {
		return
	}
	c.scheduler.Do(func() {
		for _, h := range handlers {
			h(err)
		}
	})
}

func (c *Client) disconnectedHandlers() []func(error) {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()

	return append([]func(error){}, c.onDisconnected...)
}

func (c *Client) connectionFailedHandlers() []func(error) {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()

	return append([]func(error){}, c.onConnectionFailed...)
}

func (c *Client) receivedErrorHandlers() []func(error) {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()

	return append([]func(error){}, c.onReceivedError...)
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
