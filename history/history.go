// Package history records the actions taken while resolving a context, so
// that a failed or surprising resolution can be replayed and inspected after
// the fact instead of only from a point-in-time log line.
//
// Unlike the original implementation this is based on, recording is not a
// pair of package-level toggle functions writing into a shared mapping: a
// Recorder is a value threaded explicitly through the resolver, so two
// resolutions running concurrently in the same process never share state.
package history

import (
	"encoding/json"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ActionKind identifies the kind of event a recorded Action describes.
type ActionKind string

const (
	GraphCreation        ActionKind = "graph_creation"
	CombinationExtracted ActionKind = "combination_extracted"
	ConflictDetected     ActionKind = "conflict_detected"
	ResolutionFailure    ActionKind = "resolution_failure"
	ResolutionSuccess    ActionKind = "resolution_success"
	Downgrade            ActionKind = "downgrade"
)

// Action is a single recorded event, in insertion order.
type Action struct {
	Kind      ActionKind `json:"kind"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// Report is the serializable snapshot of a Recorder, analogous to the
// version/user/hostname/timestamp/command/actions mapping the original
// history module accumulated.
type Report struct {
	ID        string     `json:"id"`
	User      string     `json:"user"`
	Hostname  string     `json:"hostname"`
	Timestamp time.Time  `json:"timestamp"`
	Command   []string   `json:"command,omitempty"`
	Actions   []Action   `json:"actions"`
}

// Recorder accumulates Actions for a single resolution attempt. The zero
// Recorder discards every Record call, so callers that do not want history
// collection can pass &Recorder{} (or a nil *Recorder; see Record).
type Recorder struct {
	enabled bool
	minimal bool
	logger  *log.Logger

	report Report
}

// NewRecorder creates a Recorder that records every action and, if logger is
// non-nil, also emits each one as a debug-level log line. command is stored
// verbatim in the resulting Report for audit purposes.
func NewRecorder(logger *log.Logger, command []string) *Recorder {
	hostname, _ := os.Hostname()
	return &Recorder{
		enabled: true,
		logger:  logger,
		report: Report{
			ID:        uuid.NewString(),
			User:      os.Getenv("USER"),
			Hostname:  hostname,
			Timestamp: time.Now(),
			Command:   command,
		},
	}
}

// Minimal restricts future recordings to just their kind, discarding the
// message text; it mirrors start_recording's minimal_actions flag for
// callers that resolve often and only need a coarse audit trail.
func (r *Recorder) Minimal(minimal bool) {
	if r == nil {
		return
	}
	r.minimal = minimal
}

// Record appends an action to the recorder's report and, if a logger was
// configured, emits it at debug level. A nil Recorder is a valid no-op
// receiver, so callers that don't care about history can pass nil.
func (r *Recorder) Record(kind ActionKind, message string) {
	if r == nil || !r.enabled {
		return
	}
	action := Action{Kind: kind, Timestamp: time.Now()}
	if !r.minimal {
		action.Message = message
	}
	r.report.Actions = append(r.report.Actions, action)
	if r.logger != nil {
		r.logger.Debug(message, "action", kind)
	}
}

// Report returns the accumulated report. The returned value is a copy of the
// header fields but shares the Actions backing array; callers should treat
// it as read-only.
func (r *Recorder) Report() Report {
	if r == nil {
		return Report{}
	}
	return r.report
}

// Serialize renders the report as JSON, the same shape record_action's
// caller could previously obtain from wiz.history.get(serialized=True).
func (r *Recorder) Serialize() ([]byte, error) {
	return json.Marshal(r.Report())
}

// Discard returns a Recorder that records nothing; used where a Recorder is
// required but the caller has not opted into history collection.
func Discard() *Recorder {
	return &Recorder{enabled: false}
}
