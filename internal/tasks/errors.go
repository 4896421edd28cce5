package tasks

import (
	"errors"
	"fmt"
	"time"
)

// ErrTaskNotFound is returned by a Registry when no row exists for an id.
var ErrTaskNotFound = errors.New("task not found")

// ErrUnknownHandle is returned when a handle does not belong to a live or finished session.
var ErrUnknownHandle = errors.New("unknown task handle")

// ErrResultNotReady is returned when a result is requested before the task completed.
var ErrResultNotReady = errors.New("task result not ready")

// ValidationError rejects parameters before anything is written. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// AuthError means no owner context was available for the submission.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "no owner context: " + e.Reason
}

// SubmitError means the registry write failed. The caller may resubmit.
type SubmitError struct {
	Kind Kind
	Err  error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("failed to submit %s task: %v", e.Kind, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// TimeoutError is synthesized locally when no terminal status arrived within the budget.
type TimeoutError struct {
	TaskID string
	Kind   Kind
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s task %s timed out after %s", e.Kind, e.TaskID, e.Budget)
}

// WorkerReportedError carries the message the worker wrote with status=failed.
type WorkerReportedError struct {
	TaskID  string
	Message string
}

func (e *WorkerReportedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("worker failed task %s", e.TaskID)
	}
	return fmt.Sprintf("worker failed task %s: %s", e.TaskID, e.Message)
}

// CancelledError marks a session the caller abandoned. The registry row is untouched.
type CancelledError struct {
	TaskID string
	Reason string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("session for task %s cancelled: %s", e.TaskID, e.Reason)
}

// ResultFetchError means the task completed but its result set could not be read.
type ResultFetchError struct {
	TaskID string
	Err    error
}

func (e *ResultFetchError) Error() string {
	return fmt.Sprintf("failed to fetch result for task %s: %v", e.TaskID, e.Err)
}

func (e *ResultFetchError) Unwrap() error {
	return e.Err
}
