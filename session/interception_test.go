package session

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/rendergate/config"
)

func TestIsDownload(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers []string
		want    bool
	}{
		{"html", 200, []string{"Content-Type", "text/html; charset=utf-8"}, false},
		{"plain text", 200, []string{"Content-Type", "text/plain"}, false},
		{"json", 200, []string{"Content-Type", "application/json"}, false},
		{"svg", 200, []string{"Content-Type", "image/svg+xml"}, false},
		{"xhtml", 200, []string{"Content-Type", "application/xhtml+xml"}, false},
		{"no content type", 200, nil, false},
		{"attachment", 200, []string{"Content-Type", "text/csv", "Content-Disposition", "attachment; filename=a.csv"}, true},
		{"attachment uppercase", 200, []string{"Content-Disposition", "ATTACHMENT"}, true},
		{"malformed attachment", 200, []string{"Content-Disposition", "attachment; filename=\"unterminated"}, true},
		{"inline", 200, []string{"Content-Type", "text/html", "Content-Disposition", "inline"}, false},
		{"zip", 200, []string{"Content-Type", "application/zip"}, true},
		{"octet stream", 200, []string{"Content-Type", "application/octet-stream"}, true},
		{"pdf", 200, []string{"Content-Type", "application/pdf"}, true},
		{"redirect with attachment", 302, []string{"Location", "/next", "Content-Disposition", "attachment"}, false},
		{"unparseable content type", 200, []string{"Content-Type", "text/html;;;"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for i := 0; i+1 < len(tt.headers); i += 2 {
				h.Add(tt.headers[i], tt.headers[i+1])
			}
			assert.Equal(t, tt.want, IsDownload(tt.status, h))
		})
	}
}

func TestChallengeDetector_Detect(t *testing.T) {
	d := testDetector(t, time.Second)

	assert.True(t, d.Detect(`<div class="cf-browser-verification"></div>`))
	assert.True(t, d.Detect(`<html><body><div id="cf-challenge-running"></div></body></html>`))
	assert.True(t, d.Detect(`<html><body><div id="challenge-stage"></div></body></html>`))
	assert.False(t, d.Detect(`<html><body><p>challenge-running is just text</p></body></html>`))
	assert.False(t, d.Detect(``))
}

func TestNewChallengeDetector_RejectsBadSelector(t *testing.T) {
	_, err := NewChallengeDetector(config.ChallengeConfig{Selectors: []string{"div[["}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "div[[")
}

func TestPageTitle(t *testing.T) {
	assert.Equal(t, "Just a moment...", pageTitle(`<html><head><title> Just a moment... </title></head></html>`))
	assert.Equal(t, "", pageTitle(`<p>no title</p>`))
}
