package poll

import (
	"errors"
	"fmt"
)

// State is the orchestrator's view of one task.
type State int

const (
	Unsubmitted State = iota
	Submitting
	AwaitingResult
	Succeeded
	Failed
	SubmittedOnly
)

func (s State) String() string {
	switch s {
	case Unsubmitted:
		return "UNSUBMITTED"
	case Submitting:
		return "SUBMITTING"
	case AwaitingResult:
		return "AWAITING_RESULT"
	case Succeeded:
		return "SUCCEEDED"
	case Failed:
		return "FAILED"
	case SubmittedOnly:
		return "SUBMITTED_ONLY"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Task is owned by exactly one orchestrator run.
type Task struct {
	ID            string
	// BaseURL is the server the task was submitted to and is polled on.
	BaseURL       string
	State         State
	ArtifactURL   string
	FailureReason string
}

// IsTerminal returns true once the server has resolved the task.
func (t *Task) IsTerminal() bool {
	return t.State == Succeeded || t.State == Failed
}

// Resumable reports whether a later run can pick the task up by id.
func (t *Task) Resumable() bool {
	return t.ID != "" && !t.IsTerminal()
}

var (
	ErrConflictingModes = errors.New("task id and submit-only are mutually exclusive")
	ErrSubmitRejected   = errors.New("submission rejected by server")
	ErrCancelled        = errors.New("stopped waiting for task")
)

// RemoteTaskFailure is returned when the server reports the task failed.
type RemoteTaskFailure struct {
	TaskID string
	Reason string
}

func (e *RemoteTaskFailure) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("task %s failed", e.TaskID)
	}
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Reason)
}
