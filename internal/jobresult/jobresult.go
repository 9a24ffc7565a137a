// Package jobresult turns Jenkins job notification frames into history entries.
package jobresult

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jenkinstray/jenkinstray/internal/bus"
	"github.com/jenkinstray/jenkinstray/internal/connectors"
	"github.com/jenkinstray/jenkinstray/internal/dataflow"
	"github.com/jenkinstray/jenkinstray/internal/history"
	"github.com/jenkinstray/jenkinstray/internal/transport"
)

var errNotJobResult = errors.New("payload is not a job result")

// Payload is the wire shape of a job notification.
type Payload struct {
	Project string `json:"project"`
	Number  int    `json:"number"`
	Status  string `json:"status"`
	Result  string `json:"result"`
}

// Decode parses a frame body as a job notification.
func Decode(raw []byte) (Payload, error) {
	if !utf8.Valid(raw) {
		return Payload{}, fmt.Errorf("%w: not utf-8", errNotJobResult)
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("decode job result: %w", err)
	}
	p.Project = strings.TrimSpace(p.Project)
	if p.Project == "" {
		return Payload{}, fmt.Errorf("%w: project is empty", errNotJobResult)
	}

	return p, nil
}

// Entry maps the payload to a history entry received at the given time.
func (p Payload) Entry(receivedAt time.Time) history.Entry {
	return history.NewEntry(p.Project, p.Number, history.ParseStatus(p.Status), history.ParseResult(p.Result), receivedAt)
}

// Executer matches job notifications and records them.
type Executer struct {
	entries *history.Collection
	bus     bus.MessageBus
	logger  *slog.Logger
	now     func() time.Time
}

func NewExecuter(entries *history.Collection, messageBus bus.MessageBus, logger *slog.Logger) *Executer {
	if logger == nil {
		logger = slog.Default().With("component", "jobresult")
	}

	return &Executer{entries: entries, bus: messageBus, logger: logger, now: time.Now}
}

func (e *Executer) Match(frame transport.Frame) (dataflow.Action, bool) {
	payload, err := Decode(frame.Bytes())
	if err != nil {
		e.logger.Info("frame is not a match", "kind", frame.Kind.String(), "len", frame.Len(), "error", err)
		return nil, false
	}

	return func() {
		entry := payload.Entry(e.now())
		if e.entries != nil {
			e.entries.Append(entry)
		}
		if e.bus != nil {
			e.bus.Publish(connectors.TopicJobResult, entry)
		}
		e.logger.Debug("job result recorded", "project", entry.Project, "build", entry.BuildNumber, "status", entry.Status.String(), "result", entry.Result.String())
	}, true
}
