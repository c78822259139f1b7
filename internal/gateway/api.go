// ABOUTME: HTTP endpoints served alongside the MCP transport
// ABOUTME: Health probes, rendered documentation pages, and ledger statistics

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const docsPageShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { max-width: 44rem; margin: 2rem auto; padding: 0 1rem; font-family: sans-serif; line-height: 1.5; }
pre { background: #f4f4f4; padding: 0.75rem; overflow-x: auto; }
code { background: #f4f4f4; padding: 0 0.2rem; }
</style>
</head>
<body>
%s
</body>
</html>
`

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the tool registry is populated.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	count := g.registry.Count()
	if count == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no tools registered"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d tools)", count)
}

// handleDocsIndex lists the available documentation pages.
func (g *Gateway) handleDocsIndex(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	b.WriteString("<h1>Documentation</h1>\n<ul>\n")
	for _, res := range g.resources.List() {
		fmt.Fprintf(&b, "<li><a href=\"/docs/%s\">%s</a> &mdash; %s</li>\n",
			res.Name, res.Name, res.Description)
	}
	b.WriteString("</ul>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, docsPageShell, "Documentation", b.String())
}

// handleDocsPage renders one documentation page as HTML.
func (g *Gateway) handleDocsPage(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/docs/")
	if name == "" {
		g.handleDocsIndex(w, r)
		return
	}

	body, err := g.resources.HTML(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, docsPageShell, name, string(body))
}

// handleToolStats returns per-tool call counts from the audit ledger.
func (g *Gateway) handleToolStats(w http.ResponseWriter, r *http.Request) {
	counts, err := g.ledger.CountByTool(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": counts})
}

// handleRecentCalls returns the newest audit ledger entries.
// The limit query parameter caps the result (default 50).
func (g *Gateway) handleRecentCalls(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := g.ledger.Recent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": entries, "count": len(entries)})
}
