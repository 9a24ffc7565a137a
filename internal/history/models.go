package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the build phase reported by Jenkins.
type Status int

const (
	StatusNone Status = iota
	StatusStart
	StatusSuccess
	StatusFailure
)

// ParseStatus maps a wire value to a Status, ignoring case. Unknown values map to StatusNone.
func ParseStatus(raw string) Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "START":
		return StatusStart
	case "SUCCESS":
		return StatusSuccess
	case "FAILURE":
		return StatusFailure
	default:
		return StatusNone
	}
}

func (s Status) String() string {
	switch s {
	case StatusStart:
		return "START"
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	default:
		return "None"
	}
}

// Result is the build outcome reported by Jenkins.
type Result int

const (
	ResultNone Result = iota
	ResultSuccess
	ResultWarning
	ResultFailure
)

// ParseResult maps a wire value to a Result, ignoring case. Unknown values map to ResultNone.
func ParseResult(raw string) Result {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESS":
		return ResultSuccess
	case "WARNING":
		return ResultWarning
	case "FAILURE":
		return ResultFailure
	default:
		return ResultNone
	}
}

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "SUCCESS"
	case ResultWarning:
		return "Warning"
	case ResultFailure:
		return "Failure"
	default:
		return "None"
	}
}

// Entry is one received job notification.
type Entry struct {
	ID          string
	Project     string
	BuildNumber int
	Status      Status
	Result      Result
	ReceivedAt  time.Time
}

func NewEntry(project string, buildNumber int, status Status, result Result, receivedAt time.Time) Entry {
	return Entry{
		ID:          uuid.NewString(),
		Project:     project,
		BuildNumber: buildNumber,
		Status:      status,
		Result:      result,
		ReceivedAt:  receivedAt,
	}
}

func (e Entry) Failed() bool {
	return e.Status == StatusFailure || e.Result == ResultFailure
}

func (e Entry) Succeeded() bool {
	if e.Failed() {
		return false
	}

	return e.Result == ResultSuccess || e.Status == StatusSuccess
}

func (e Entry) Title() string {
	return fmt.Sprintf("%s #%d", e.Project, e.BuildNumber)
}

func (e Entry) Summary() string {
	if e.Result == ResultNone {
		return e.Status.String()
	}

	return fmt.Sprintf("%s (%s)", e.Status, e.Result)
}
