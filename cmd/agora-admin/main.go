// ABOUTME: Admin CLI for agora-gateway inspection and tool invocation
// ABOUTME: Speaks MCP over HTTP to list tools, call them, and read the audit ledger

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

const banner = `
  __ _  __ _  ___  _ __ __ _        __ _  __| |_ __ ___ (_)_ __
 / _' |/ _' |/ _ \| '__/ _' |_____ / _' |/ _' | '_ ' _ \| | '_ \
| (_| | (_| | (_) | | | (_| |_____| (_| | (_| | | | | | | | | | |
 \__,_|\__, |\___/|_|  \__,_|      \__,_|\__,_|_| |_| |_|_|_| |_|
       |___/
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	baseURL := os.Getenv("AGORA_GATEWAY_URL")
	if baseURL == "" {
		if host := os.Getenv("AGORA_GATEWAY_HOST"); host != "" {
			baseURL = "http://" + host
		} else {
			baseURL = "http://localhost:8080"
		}
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "status":
		err = cmdStatus(baseURL)
	case "tools":
		err = cmdTools(baseURL)
	case "call":
		err = cmdCall(baseURL, args)
	case "calls", "ledger":
		err = cmdCalls(baseURL, args)
	case "stats":
		err = cmdStats(baseURL)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: agora-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status                Show gateway health and tool count")
	fmt.Println("  tools                 List available marketplace tools")
	fmt.Println("  call <tool> [json]    Call a tool with JSON arguments")
	fmt.Println("  calls [limit]         Show recent tool calls from the audit ledger")
	fmt.Println("  stats                 Show per-tool call counts")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  AGORA_GATEWAY_URL     Gateway base URL (default: http://localhost:8080)")
	fmt.Println("  AGORA_GATEWAY_HOST    Gateway hostname (derives http:// URL)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  agora-admin tools")
	fmt.Println("  agora-admin call list_agents '{}'")
	fmt.Println("  agora-admin call get_task '{\"taskId\":\"...\"}'")
	fmt.Println("  agora-admin calls 20")
	fmt.Println()
}

// mcpClient is a minimal MCP Streamable HTTP client.
type mcpClient struct {
	baseURL string
	http    *http.Client
	session string
	nextID  int
}

func newMCPClient(baseURL string) *mcpClient {
	return &mcpClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		nextID:  1,
	}
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *mcpClient) rpc(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextID,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, err
	}
	c.nextID++

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.session != "" {
		req.Header.Set("Mcp-Session-Id", c.session)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if session := resp.Header.Get("Mcp-Session-Id"); session != "" {
		c.session = session
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%s: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	return rpcResp.Result, nil
}

func (c *mcpClient) initialize(ctx context.Context) error {
	_, err := c.rpc(ctx, "initialize", map[string]any{
		"protocolVersion": "2025-03-26",
		"clientInfo":      map[string]string{"name": "agora-admin", "version": "dev"},
	})
	if err != nil {
		return err
	}
	if c.session == "" {
		return fmt.Errorf("gateway did not assign a session")
	}
	return nil
}

// cmdStatus shows gateway health and readiness
func cmdStatus(baseURL string) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()

	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		yellow.Printf("  Gateway: ")
		color.Red("UNREACHABLE (%v)\n", err)
		return nil
	}
	resp.Body.Close()

	green.Printf("  Gateway: ")
	fmt.Printf("connected to %s\n", baseURL)

	resp, err = http.Get(baseURL + "/health/ready")
	if err != nil {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		green.Printf("  Ready:   ")
	} else {
		yellow.Printf("  Ready:   ")
	}
	fmt.Println(string(body))
	fmt.Println()
	return nil
}

// cmdTools lists the marketplace tools
func cmdTools(baseURL string) error {
	ctx := context.Background()
	client := newMCPClient(baseURL)
	if err := client.initialize(ctx); err != nil {
		return err
	}

	result, err := client.rpc(ctx, "tools/list", map[string]any{})
	if err != nil {
		return err
	}

	var list struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(result, &list); err != nil {
		return fmt.Errorf("decoding tools list: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Printf("  Tools (%d)\n", len(list.Tools))
	cyan.Println("  ---------")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, t := range list.Tools {
		fmt.Fprintf(w, "  %s\t%s\n", t.Name, truncate(t.Description, 64))
	}
	w.Flush()
	fmt.Println()
	return nil
}

// cmdCall invokes one tool and prints the result envelope
func cmdCall(baseURL string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: call <tool> [json-arguments]")
	}
	toolName := args[0]
	rawArgs := "{}"
	if len(args) >= 2 {
		rawArgs = args[1]
	}

	var toolArgs json.RawMessage
	if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
		return fmt.Errorf("arguments must be valid JSON: %w", err)
	}

	ctx := context.Background()
	client := newMCPClient(baseURL)
	if err := client.initialize(ctx); err != nil {
		return err
	}

	result, err := client.rpc(ctx, "tools/call", map[string]any{
		"name":      toolName,
		"arguments": toolArgs,
	})
	if err != nil {
		return err
	}

	var call struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(result, &call); err != nil {
		return fmt.Errorf("decoding call result: %w", err)
	}
	if len(call.Content) == 0 {
		return fmt.Errorf("empty result from %s", toolName)
	}

	// Pretty-print the envelope
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(call.Content[0].Text), "", "  "); err != nil {
		fmt.Println(call.Content[0].Text)
		return nil
	}

	if call.IsError {
		color.Red("✗ %s failed", toolName)
	} else {
		color.Green("✓ %s", toolName)
	}
	fmt.Println(pretty.String())
	return nil
}

// cmdCalls shows recent entries from the audit ledger
func cmdCalls(baseURL string, args []string) error {
	limit := "50"
	if len(args) >= 1 {
		limit = args[0]
	}

	resp, err := http.Get(baseURL + "/stats/calls?limit=" + limit)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Calls []struct {
			RequestID string    `json:"request_id"`
			Tool      string    `json:"tool"`
			Success   bool      `json:"success"`
			ErrorCode string    `json:"error_code"`
			Duration  int64     `json:"duration_us"`
			CalledAt  time.Time `json:"called_at"`
		} `json:"calls"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Recent Tool Calls")
	cyan.Println("  -----------------")

	if len(result.Calls) == 0 {
		fmt.Println("  (no calls recorded)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TIME\tTOOL\tOK\tERROR\tDURATION")
	fmt.Fprintln(w, "  ----\t----\t--\t-----\t--------")
	for _, c := range result.Calls {
		ok := "yes"
		if !c.Success {
			ok = "no"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			c.CalledAt.Local().Format("Jan 02 15:04:05"),
			c.Tool,
			ok,
			c.ErrorCode,
			(time.Duration(c.Duration) * time.Microsecond).String(),
		)
	}
	w.Flush()
	fmt.Println()
	return nil
}

// cmdStats shows per-tool call counts
func cmdStats(baseURL string) error {
	resp, err := http.Get(baseURL + "/stats/tools")
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	var result struct {
		Tools map[string]int `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Call Counts")
	cyan.Println("  -----------")

	if len(result.Tools) == 0 {
		fmt.Println("  (no calls recorded)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for tool, count := range result.Tools {
		fmt.Fprintf(w, "  %s\t%d\n", tool, count)
	}
	w.Flush()
	fmt.Println()
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
