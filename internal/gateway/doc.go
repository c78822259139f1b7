// Package gateway assembles and runs the agora-gateway server.
//
// # Overview
//
// The gateway wires the marketplace state machine, the tool registry and
// dispatcher, the SQLite audit ledger, and the documentation resources
// into a single HTTP server. The MCP endpoint at /mcp carries all tool
// traffic; a handful of plain HTTP endpoints sit next to it.
//
// # Endpoints
//
//	POST   /mcp            MCP Streamable HTTP (JSON-RPC 2.0)
//	DELETE /mcp            Terminate an MCP session
//	GET    /health         Liveness probe
//	GET    /health/ready   Readiness probe (tool registry populated)
//	GET    /docs           Documentation index (HTML)
//	GET    /docs/{name}    Rendered documentation page
//	GET    /stats/tools    Per-tool call counts from the audit ledger
//	GET    /stats/calls    Recent audit ledger entries (?limit=N)
//
// # Lifecycle
//
// New() builds everything and applies the optional seed file through the
// dispatcher, so seeded fixtures pass the same validation as client
// calls. Run() listens, optionally starts the docs directory watcher,
// and blocks until the context is canceled, then shuts down within
// server.shutdown_timeout.
//
// Marketplace state lives in memory and is lost on restart; only the
// audit ledger persists.
package gateway
