// Package mcp implements the Model Context Protocol server for the marketplace.
//
// # Overview
//
// MCP (Model Context Protocol) is a standard for AI tool integration. This
// package provides an MCP-compatible HTTP server exposing the marketplace
// tool packs to external AI clients (Claude Desktop, other LLMs, or custom
// applications).
//
// # Protocol
//
// The server implements the Streamable HTTP transport: JSON-RPC 2.0 over a
// single POST endpoint, with sessions tracked via the Mcp-Session-Id header.
//
//   - POST /mcp - JSON-RPC requests (initialize, tools/*, resources/*, prompts/*)
//   - DELETE /mcp - terminate a session
//
// Clients send an initialize request first; the response carries the session
// ID header that every subsequent request must echo back.
//
// # Tool Execution
//
// Clients call tools/call to execute a tool:
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/call",
//	  "params": {
//	    "name": "register_agent",
//	    "arguments": {"walletAddress": "0xabc", "name": "Summarizer"}
//	  },
//	  "id": 2
//	}
//
// The tool result content is the marketplace envelope serialized as text.
// Domain failures ({"success": false, "error": {...}}) set isError on the
// MCP result but are never raised as JSON-RPC errors; those are reserved
// for transport faults (unknown method, malformed params, missing session).
//
// # Resources and Prompts
//
// When configured, the server also serves the markdown documentation set
// via resources/list + resources/read and the built-in prompt templates via
// prompts/list + prompts/get.
package mcp
