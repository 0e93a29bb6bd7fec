package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// maxTextBytes caps how much of a rendered body is handed back to the model.
const maxTextBytes = 512 << 10

// healthResponse mirrors the gateway's GET /health body.
type healthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Version   string `json:"version"`
	PoolStats struct {
		MaxTabs    int `json:"max_tabs"`
		ActiveTabs int `json:"active_tabs"`
	} `json:"pool_stats"`
}

func main() {
	apiURL := os.Getenv("RENDERGATE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}
	apiURL = strings.TrimRight(apiURL, "/")

	s := server.NewMCPServer(
		"rendergate",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	renderURLTool := mcp.NewTool("render_url",
		mcp.WithDescription("Load a URL in a headless browser and return the rendered DOM (after JavaScript ran), or the raw bytes summary when the URL is a file download."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL of the page to render"),
		),
	)
	s.AddTool(renderURLTool, handleRender(apiURL, http.MethodGet))

	postURLTool := mcp.NewTool("post_url",
		mcp.WithDescription("Submit a POST body to a URL from inside a headless browser and return the rendered result page."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL to POST to"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Raw request body, sent verbatim"),
		),
		mcp.WithString("content_type",
			mcp.Description("Content-Type of the body (default: 'application/x-www-form-urlencoded')"),
		),
	)
	s.AddTool(postURLTool, handleRender(apiURL, http.MethodPost))

	healthTool := mcp.NewTool("gateway_health",
		mcp.WithDescription("Report the render gateway's status and browser tab utilisation."),
	)
	s.AddTool(healthTool, handleHealth(apiURL))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleRender(apiURL, method string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		var body io.Reader
		if method == http.MethodPost {
			raw, err := request.RequireString("body")
			if err != nil {
				return mcp.NewToolResultError("body is required"), nil
			}
			body = strings.NewReader(raw)
		}

		endpoint := apiURL + "/?url=" + url.QueryEscape(target)
		httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		if method == http.MethodPost {
			httpReq.Header.Set("Content-Type", request.GetString("content_type", "application/x-www-form-urlencoded"))
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("gateway request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		if resp.StatusCode != http.StatusOK {
			return mcp.NewToolResultError(fmt.Sprintf("[%d] %s", resp.StatusCode, strings.TrimSpace(string(respBody)))), nil
		}

		return mcp.NewToolResultText(formatResult(target, resp, respBody)), nil
	}
}

// formatResult builds a short header followed by the body. Binary bodies are
// summarised instead of inlined.
func formatResult(target string, resp *http.Response, body []byte) string {
	var sb strings.Builder
	contentType := resp.Header.Get("Content-Type")
	sb.WriteString(fmt.Sprintf("Source: %s\nContent-Type: %s\n", target, contentType))
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		sb.WriteString(fmt.Sprintf("Content-Disposition: %s\n", cd))
	}
	if n := len(resp.Cookies()); n > 0 {
		sb.WriteString(fmt.Sprintf("Cookies set: %d\n", n))
	}
	sb.WriteString("\n")

	if !isText(contentType, body) {
		sb.WriteString(fmt.Sprintf("[binary body, %d bytes]", len(body)))
		return sb.String()
	}
	if len(body) > maxTextBytes {
		sb.Write(bytes.ToValidUTF8(body[:maxTextBytes], nil))
		sb.WriteString(fmt.Sprintf("\n\n---\nTruncated: showing %d of %d bytes", maxTextBytes, len(body)))
		return sb.String()
	}
	sb.Write(body)
	return sb.String()
}

func isText(contentType string, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if strings.HasPrefix(mt, "text/") || strings.HasSuffix(mt, "json") || strings.HasSuffix(mt, "xml") {
			return true
		}
	}
	return utf8.Valid(body)
}

func handleHealth(apiURL string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/health", nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("gateway request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		var health healthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse health response: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Status: %s\nVersion: %s\nUptime: %s\nTabs: %d/%d",
			health.Status, health.Version, health.Uptime,
			health.PoolStats.ActiveTabs, health.PoolStats.MaxTabs)), nil
	}
}
