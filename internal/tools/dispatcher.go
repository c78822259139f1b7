// ABOUTME: Dispatches tool calls to registered handlers and builds response envelopes.
// ABOUTME: Recovers panics, converts domain errors to data, and records an audit entry per call.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// Generic error codes produced by the dispatcher itself.
const (
	CodeToolNotFound   = "TOOL_NOT_FOUND"
	CodeExecutionError = "EXECUTION_ERROR"
)

// AuditEntry describes one completed tool call for the audit ledger.
type AuditEntry struct {
	RequestID string
	Tool      string
	Success   bool
	ErrorCode string
	Duration  time.Duration
	CalledAt  time.Time
}

// Recorder persists audit entries. Recording is best-effort: failures are
// logged and never affect the tool response.
type Recorder interface {
	Record(ctx context.Context, e AuditEntry) error
}

// Dispatcher executes tool calls against a Registry.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Registry *Registry
	Logger   *slog.Logger
	Recorder Recorder // optional
	Now      func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		registry: cfg.Registry,
		logger:   logger,
		recorder: cfg.Recorder,
		now:      now,
	}
}

// Call executes the named tool and always returns an envelope. Domain
// errors (*Error) become failure envelopes; anything else, including a
// panic in the handler, becomes a generic EXECUTION_ERROR.
func (d *Dispatcher) Call(ctx context.Context, name string, input json.RawMessage, requestID string) Envelope {
	start := d.now()

	tool := d.registry.Get(name)
	if tool == nil {
		d.logger.Debug("tool not found", "tool_name", name, "request_id", requestID)
		env := Fail(Errf(CodeToolNotFound, "tool %q is not registered", name))
		d.record(ctx, name, requestID, env, start)
		return env
	}

	if len(input) == 0 {
		input = json.RawMessage("{}")
	}

	env := d.invoke(ctx, tool, input, Call{RequestID: requestID, Timestamp: start})

	d.logger.Debug("tool call complete",
		"tool_name", name,
		"request_id", requestID,
		"success", env.Success,
		"duration", d.now().Sub(start),
	)

	d.record(ctx, name, requestID, env, start)
	return env
}

// invoke runs the handler under panic recovery.
func (d *Dispatcher) invoke(ctx context.Context, tool *Tool, input json.RawMessage, call Call) (env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool handler panicked",
				"tool_name", tool.Name,
				"request_id", call.RequestID,
				"panic", r,
			)
			env = Fail(Errf(CodeExecutionError, "tool execution failed"))
		}
	}()

	data, err := tool.Handler(ctx, input, call)
	if err != nil {
		var domainErr *Error
		if errors.As(err, &domainErr) {
			return Fail(domainErr)
		}
		d.logger.Warn("tool handler error",
			"tool_name", tool.Name,
			"request_id", call.RequestID,
			"error", err,
		)
		return Fail(Errf(CodeExecutionError, "tool execution failed"))
	}
	return OK(data, call.RequestID, call.Timestamp)
}

func (d *Dispatcher) record(ctx context.Context, name, requestID string, env Envelope, start time.Time) {
	if d.recorder == nil {
		return
	}
	entry := AuditEntry{
		RequestID: requestID,
		Tool:      name,
		Success:   env.Success,
		Duration:  d.now().Sub(start),
		CalledAt:  start,
	}
	if env.Error != nil {
		entry.ErrorCode = env.Error.Code
	}
	if err := d.recorder.Record(ctx, entry); err != nil {
		d.logger.Warn("audit record failed", "request_id", requestID, "error", err)
	}
}
