package models

import (
	"net/http"
)

// RenderRequest is one inbound gateway call, normalised.
type RenderRequest struct {
	// URL is the absolute http(s) URL to render. Required.
	URL string

	// Method is http.MethodGet or http.MethodPost.
	Method string

	// Body is the caller's raw POST payload. It is replayed as the body of
	// the first network request the tab issues.
	Body []byte

	// Headers are the caller's request headers, before sanitisation.
	Headers http.Header
}

// IsPost reports whether the request body must be replayed.
func (r *RenderRequest) IsPost() bool {
	return r.Method == http.MethodPost
}
