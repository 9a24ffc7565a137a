// Package dataflow routes frames received by the WebSocket client to registered executers.
//
// Binary frames run only the first executer that matches: binary payloads are assumed
// to be unambiguous. Text frames run every executer that matches, in registration
// order, because one text payload may satisfy several conditions at once.
package dataflow

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/jenkinstray/jenkinstray/internal/transport"
)

var ErrInvalidArgument = errors.New("invalid argument")

// Action runs the work prepared by a successful match.
type Action func()

// Executer inspects a frame and, on a match, returns the action that consumes it.
// The action carries everything it needs, so one executer may be matched concurrently.
type Executer interface {
	Match(frame transport.Frame) (Action, bool)
}

// ExecuterFunc adapts a function to Executer.
type ExecuterFunc func(frame transport.Frame) (Action, bool)

func (f ExecuterFunc) Match(frame transport.Frame) (Action, bool) {
	return f(frame)
}

// Task reacts to a connection lifecycle event. cause is nil for Connected.
type Task interface {
	Run(cause error)
}

type TaskFunc func(cause error)

func (f TaskFunc) Run(cause error) {
	f(cause)
}

// Source is the event surface of the WebSocket client used by the dispatcher.
type Source interface {
	OnConnected(fn func())
	OnConnectionFailed(fn func(err error))
	OnReceived(fn func(frame transport.Frame))
}

type Dispatcher struct {
	source Source
	logger *slog.Logger

	mu             sync.RWMutex
	executeTasks   []Executer
	connectedTasks []Task
	failedTasks    []Task

	configureOnce sync.Once
}

func New(source Source, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default().With("component", "dataflow")
	}

	return &Dispatcher{source: source, logger: logger}
}

func (d *Dispatcher) RegisterExecuteTask(e Executer) error {
	if isNil(e) {
		return fmt.Errorf("%w: executer is nil", ErrInvalidArgument)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.executeTasks = append(d.executeTasks, e)

	return nil
}

func (d *Dispatcher) RegisterConnectedTask(t Task) error {
	if isNil(t) {
		return fmt.Errorf("%w: connected task is nil", ErrInvalidArgument)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectedTasks = append(d.connectedTasks, t)

	return nil
}

func (d *Dispatcher) RegisterConnectionFailedTask(t Task) error {
	if isNil(t) {
		return fmt.Errorf("%w: connection failed task is nil", ErrInvalidArgument)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failedTasks = append(d.failedTasks, t)

	return nil
}

// isNil also catches typed nils such as a nil *Executer stored in the interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// ConfigureRegistration subscribes the dispatcher to its source. Repeated calls are no-ops.
func (d *Dispatcher) ConfigureRegistration() {
	d.configureOnce.Do(func() {
		d.source.OnConnected(d.handleConnected)
		d.source.OnConnectionFailed(d.handleConnectionFailed)
		d.source.OnReceived(d.Dispatch)
		d.logger.Debug("dispatcher subscribed", "execute_tasks", d.count())
	})
}

// Dispatch routes one frame. It is also the handler registered on the source.
func (d *Dispatcher) Dispatch(frame transport.Frame) {
	switch frame.Kind {
	case transport.FrameBinary:
		d.dispatchFirst(frame)
	case transport.FrameText:
		d.dispatchAll(frame)
	default:
		d.logger.Warn("dropping frame of unknown kind", "kind", frame.Kind)
	}
}

func (d *Dispatcher) dispatchFirst(frame transport.Frame) {
	for i, e := range d.executers() {
		action, ok := e.Match(frame)
		if !ok {
			continue
		}
		d.logger.Debug("binary frame matched", "executer", i, "len", frame.Len())
		run(action)

		return
	}
	d.logger.Info("no executer matched binary frame", "len", frame.Len())
}

func (d *Dispatcher) dispatchAll(frame transport.Frame) {
	matched := 0
	for i, e := range d.executers() {
		action, ok := e.Match(frame)
		if !ok {
			continue
		}
		matched++
		d.logger.Debug("text frame matched", "executer", i, "len", frame.Len())
		run(action)
	}
	if matched == 0 {
		d.logger.Info("no executer matched text frame", "len", frame.Len())
	}
}

func (d *Dispatcher) handleConnected() {
	d.mu.RLock()
	tasks := append([]Task(nil), d.connectedTasks...)
	d.mu.RUnlock()

	d.logger.Info("connected", "tasks", len(tasks))
	for _, t := range tasks {
		t.Run(nil)
	}
}

func (d *Dispatcher) handleConnectionFailed(err error) {
	d.mu.RLock()
	tasks := append([]Task(nil), d.failedTasks...)
	d.mu.RUnlock()

	d.logger.Warn("connection failed", "tasks", len(tasks), "error", err)
	for _, t := range tasks {
		t.Run(err)
	}
}

func (d *Dispatcher) executers() []Executer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return append([]Executer(nil), d.executeTasks...)
}

func (d *Dispatcher) count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.executeTasks)
}

func run(action Action) {
	if action != nil {
		action()
	}
}
