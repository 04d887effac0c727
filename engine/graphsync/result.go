package graphsync

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// ErrorKind classifies why an invocation did not succeed.
type ErrorKind string

const (
	KindSpawn    ErrorKind = "SpawnError"
	KindExit     ErrorKind = "ExitError"
	KindCanceled ErrorKind = "CanceledError"
	KindConfig   ErrorKind = "ConfigError"
	KindLock     ErrorKind = "LockError"
)

// Retryable reports whether the engine may usefully run the activity again.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindExit, KindLock:
		return true
	default:
		return false
	}
}

type ErrorDetail struct {
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	ExitCode int       `json:"exit_code,omitempty"`
}

// Result is the activity output. Result keeps the legacy payload: the
// success sentinel or the failure text. Status is the explicit discriminant.
type Result struct {
	Result     string       `json:"result"`
	Status     Status       `json:"status"`
	Error      *ErrorDetail `json:"error,omitempty"`
	ExitCode   int          `json:"exit_code"`
	DurationMs int64        `json:"duration_ms"`
}

func Succeeded(exitCode int, duration time.Duration) *Result {
	return &Result{
		Result:     SuccessSentinel,
		Status:     StatusOK,
		ExitCode:   exitCode,
		DurationMs: duration.Milliseconds(),
	}
}

func Failed(kind ErrorKind, message string, exitCode int, duration time.Duration) *Result {
	if message == "" {
		message = string(kind)
	}
	return &Result{
		Result: message,
		Status: StatusError,
		Error: &ErrorDetail{
			Kind:     kind,
			Message:  message,
			ExitCode: exitCode,
		},
		ExitCode:   exitCode,
		DurationMs: duration.Milliseconds(),
	}
}

func (r *Result) OK() bool {
	return r != nil && r.Status == StatusOK
}

// String renders the client-facing form, e.g. { result: '0' }.
func (r *Result) String() string {
	if r == nil {
		return "{ result: undefined }"
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`).Replace(r.Result)
	return fmt.Sprintf("{ result: '%s' }", escaped)
}
