// ABOUTME: Thread-safe registry for tool packs with name-collision detection.
// ABOUTME: All tools execute in-process; packs are a grouping for registration and display.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ErrToolCollision indicates a tool name is already registered by another pack.
var ErrToolCollision = errors.New("tool name collision")

// Call carries per-invocation correlation data into handlers.
type Call struct {
	RequestID string
	Timestamp time.Time
}

// Handler executes a tool. Domain failures are returned as *Error; any
// other error is treated as an unexpected fault by the dispatcher.
type Handler func(ctx context.Context, input json.RawMessage, call Call) (any, error)

// Tool is a named, schema-described operation.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// Pack groups related tools under an identifier.
type Pack struct {
	ID    string
	Tools []*Tool
}

type entry struct {
	tool   *Tool
	packID string
}

// Registry maps tool names to their handlers.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*entry
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*entry),
		logger: logger,
	}
}

// RegisterPack stores a pack's tools. All-or-nothing: a name collision
// rejects the whole pack.
func (r *Registry) RegisterPack(pack *Pack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tool := range pack.Tools {
		if existing, ok := r.tools[tool.Name]; ok {
			return fmt.Errorf("%w: tool %q already registered by pack %q",
				ErrToolCollision, tool.Name, existing.packID)
		}
	}

	for _, tool := range pack.Tools {
		r.tools[tool.Name] = &entry{tool: tool, packID: pack.ID}
	}

	r.logger.Info("pack registered",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
		"total_tools", len(r.tools),
	)
	return nil
}

// Get returns the tool with the given name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.tools[name]; ok {
		return e.tool
	}
	return nil
}

// List returns all registered tools sorted by name for deterministic
// tools/list responses.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Tool, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
