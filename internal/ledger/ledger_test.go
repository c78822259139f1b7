// ABOUTME: Tests for the audit ledger using a file-backed SQLite database.

package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/agoramesh/agora-gateway/internal/tools"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndRecent(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	entries := []tools.AuditEntry{
		{RequestID: "r1", Tool: "register_agent", Success: true, Duration: 120 * time.Microsecond, CalledAt: base},
		{RequestID: "r2", Tool: "create_task", Success: true, Duration: 80 * time.Microsecond, CalledAt: base.Add(time.Second)},
		{RequestID: "r3", Tool: "get_task", Success: false, ErrorCode: "TASK_NOT_FOUND", Duration: 30 * time.Microsecond, CalledAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := l.Record(ctx, e); err != nil {
			t.Fatalf("Record %s: %v", e.RequestID, err)
		}
	}

	recent, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].RequestID != "r3" {
		t.Errorf("newest entry = %s, want r3", recent[0].RequestID)
	}
	if recent[0].Success {
		t.Error("r3 should be a failure")
	}
	if recent[0].ErrorCode != "TASK_NOT_FOUND" {
		t.Errorf("error code = %s", recent[0].ErrorCode)
	}
}

func TestCountByTool(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, tool := range []string{"get_task", "get_task", "list_tasks"} {
		e := tools.AuditEntry{
			RequestID: string(rune('a' + i)),
			Tool:      tool,
			Success:   true,
			CalledAt:  now,
		}
		if err := l.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	counts, err := l.CountByTool(ctx)
	if err != nil {
		t.Fatalf("CountByTool: %v", err)
	}
	if counts["get_task"] != 2 || counts["list_tasks"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestRecordIsIdempotentPerRequestID(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	e := tools.AuditEntry{RequestID: "dup", Tool: "ping", Success: true, CalledAt: time.Now().UTC()}
	if err := l.Record(ctx, e); err != nil {
		t.Fatalf("first Record: %v", err)
	}
	if err := l.Record(ctx, e); err != nil {
		t.Fatalf("second Record: %v", err)
	}

	recent, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("expected 1 entry after duplicate record, got %d", len(recent))
	}
}
