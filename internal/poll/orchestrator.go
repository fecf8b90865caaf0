// Package poll drives one remote generation task from submission to a
// terminal outcome.
//
//	Unsubmitted -> Submitting -> Failed | SubmittedOnly | AwaitingResult
//	AwaitingResult -> AwaitingResult (InProgress, Unknown; after one interval)
//	AwaitingResult -> Succeeded | Failed
//
// Cancelling the context while awaiting leaves the task in AwaitingResult so
// it can be resumed by id.
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/dmorgan81/imagine/internal/log"
	"github.com/dmorgan81/imagine/internal/midjourney"
)

const (
	DefaultInterval      = 20 * time.Second
	DefaultMaxPollErrors = 3
)

// TaskClient is the part of *midjourney.Client the orchestrator needs.
type TaskClient interface {
	Submit(context.Context, midjourney.GenerationRequest) (string, midjourney.SubmitCode, error)
	PollOneAt(ctx context.Context, base, id string) (midjourney.Status, error)
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

type Options struct {
	Interval time.Duration
	// MaxPollErrors is how many consecutive failed polls are tolerated
	// before giving up. Negative means never tolerate one.
	MaxPollErrors int
	Wait          WaitFunc
}

func DefaultOptions() Options {
	return Options{
		Interval:      DefaultInterval,
		MaxPollErrors: DefaultMaxPollErrors,
		Wait:          Sleep,
	}
}

type RunOptions struct {
	// TaskID resumes an earlier submission instead of submitting again.
	TaskID string
	// SubmitOnly returns as soon as the server has accepted the task.
	SubmitOnly bool
}

// Orchestrator holds no per-task state; one instance may serve many
// goroutines, each running its own task.
type Orchestrator struct {
	client TaskClient
	opts   Options
}

func New(client TaskClient, opts Options) *Orchestrator {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxPollErrors == 0 {
		opts.MaxPollErrors = DefaultMaxPollErrors
	}
	if opts.Wait == nil {
		opts.Wait = Sleep
	}
	return &Orchestrator{client: client, opts: opts}
}

// Run always returns the task, whatever state it ended in, alongside any
// error explaining why it is not Succeeded or SubmittedOnly.
func (o *Orchestrator) Run(ctx context.Context, req midjourney.GenerationRequest, opts RunOptions) (*Task, error) {
	task := &Task{State: Unsubmitted, BaseURL: req.BaseURL}
	if opts.TaskID != "" && opts.SubmitOnly {
		return task, ErrConflictingModes
	}

	if opts.TaskID != "" {
		task.ID = opts.TaskID
		log.FromContextOrDiscard(ctx).WithGroup("poll").Info("resuming task", "task", task.ID)
	} else if err := o.submit(ctx, task, req); err != nil {
		return task, err
	}

	if opts.SubmitOnly {
		task.State = SubmittedOnly
		return task, nil
	}

	return task, o.await(ctx, task)
}

func (o *Orchestrator) submit(ctx context.Context, task *Task, req midjourney.GenerationRequest) error {
	task.State = Submitting

	id, code, err := o.client.Submit(ctx, req)
	if err != nil {
		task.State = Failed
		task.FailureReason = err.Error()
		return err
	}
	if !code.Accepted() {
		task.State = Failed
		task.FailureReason = ErrSubmitRejected.Error()
		return ErrSubmitRejected
	}

	task.ID = id
	log.FromContextOrDiscard(ctx).WithGroup("poll").Info("task submitted", "task", id, "code", code)
	return nil
}

func (o *Orchestrator) await(ctx context.Context, task *Task) error {
	logger := log.FromContextOrDiscard(ctx).WithGroup("poll").With("task", task.ID)
	task.State = AwaitingResult

	failures := 0
	for {
		status, err := o.client.PollOneAt(ctx, task.BaseURL, task.ID)
		switch {
		case err != nil && ctx.Err() == nil:
			failures++
			if o.opts.MaxPollErrors < 0 || failures > o.opts.MaxPollErrors {
				return fmt.Errorf("poll task %s: %w", task.ID, err)
			}
			logger.Warn("poll failed", "error", err, "failures", failures)
		case err == nil:
			failures = 0
			switch status.State {
			case midjourney.Succeeded:
				task.State = Succeeded
				task.ArtifactURL = status.ArtifactURL
				logger.Info("task succeeded", "url", status.ArtifactURL)
				return nil
			case midjourney.Failed:
				task.State = Failed
				task.FailureReason = status.Reason
				logger.Info("task failed", "reason", status.Reason)
				return &RemoteTaskFailure{TaskID: task.ID, Reason: status.Reason}
			}
			logger.Info("task not finished, waiting", "state", status.State, "interval", o.opts.Interval)
		}

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w %s: %w", ErrCancelled, task.ID, err)
		}
		if err := o.opts.Wait(ctx, o.opts.Interval); err != nil {
			return fmt.Errorf("%w %s: %w", ErrCancelled, task.ID, err)
		}
	}
}

// Sleep waits for d, returning early with ctx's error if it is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
