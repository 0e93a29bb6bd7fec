package models

import "net/http"

// Outcome values reported on a RenderResult.
const (
	OutcomeDocument = "document"
	OutcomeDownload = "download"
)

// RenderResult is what a finished session hands back to the gateway.
type RenderResult struct {
	// Status is the status written to the caller (always 200 on success).
	Status int

	// Headers are already sanitised and escaped.
	Headers http.Header

	// Body is the serialised DOM or the raw download bytes.
	Body []byte

	// Cookies are relayed one Set-Cookie each, in browser order.
	Cookies []*http.Cookie

	// Outcome is OutcomeDocument or OutcomeDownload.
	Outcome string

	// FinalURL is the URL of the last main-frame document response.
	FinalURL string

	// Challenged is true when a challenge page triggered the re-wait.
	Challenged bool
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports tab utilisation.
type PoolStats struct {
	MaxTabs    int `json:"max_tabs"`
	ActiveTabs int `json:"active_tabs"`
}

// ErrorResponse is the JSON body used by middleware rejections.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error,omitempty"`
}
