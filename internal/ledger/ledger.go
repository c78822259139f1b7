// ABOUTME: SQLite-backed audit ledger using modernc.org/sqlite.
// ABOUTME: Records one row per tool call with automatic schema creation.

package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agoramesh/agora-gateway/internal/tools"
)

// Ledger persists tool-call audit entries. Marketplace state stays in
// memory; the ledger is the only thing that survives a restart.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates (or reopens) the ledger database at the given path.
// Parent directories are created if needed. Use ":memory:" for tests.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ledger")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	// WAL keeps writers from blocking the read side of the admin queries.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	l := &Ledger{db: db, logger: logger}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}

	logger.Info("audit ledger opened", "path", path)
	return l, nil
}

func (l *Ledger) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tool_calls (
			request_id  TEXT PRIMARY KEY,
			tool        TEXT NOT NULL,
			success     INTEGER NOT NULL,
			error_code  TEXT NOT NULL DEFAULT '',
			duration_us INTEGER NOT NULL,
			called_at   DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tool_calls_tool ON tool_calls(tool);
		CREATE INDEX IF NOT EXISTS idx_tool_calls_called_at ON tool_calls(called_at);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Record implements tools.Recorder.
func (l *Ledger) Record(ctx context.Context, e tools.AuditEntry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO tool_calls
			(request_id, tool, success, error_code, duration_us, called_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Tool, boolToInt(e.Success), e.ErrorCode,
		e.Duration.Microseconds(), e.CalledAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording tool call %s: %w", e.RequestID, err)
	}
	return nil
}

// Entry is one audited tool call read back from the ledger.
type Entry struct {
	RequestID string    `json:"request_id"`
	Tool      string    `json:"tool"`
	Success   bool      `json:"success"`
	ErrorCode string    `json:"error_code,omitempty"`
	Duration  int64     `json:"duration_us"`
	CalledAt  time.Time `json:"called_at"`
}

// Recent returns the most recent entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT request_id, tool, success, error_code, duration_us, called_at
		FROM tool_calls
		ORDER BY called_at DESC, request_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying tool calls: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var success int
		if err := rows.Scan(&e.RequestID, &e.Tool, &success, &e.ErrorCode, &e.Duration, &e.CalledAt); err != nil {
			return nil, fmt.Errorf("scanning tool call: %w", err)
		}
		e.Success = success != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByTool returns per-tool call counts for the stats endpoint.
func (l *Ledger) CountByTool(ctx context.Context) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT tool, COUNT(*) FROM tool_calls GROUP BY tool`)
	if err != nil {
		return nil, fmt.Errorf("counting tool calls: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var tool string
		var n int
		if err := rows.Scan(&tool, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		out[tool] = n
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
