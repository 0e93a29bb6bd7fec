package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/rendergate/models"
)

type fakeRenderer struct {
	res   *models.RenderResult
	err   error
	got   *models.RenderRequest
	calls int
	stats models.PoolStats
}

func (f *fakeRenderer) Render(ctx context.Context, req *models.RenderRequest) (*models.RenderResult, error) {
	f.calls++
	f.got = req
	return f.res, f.err
}

func (f *fakeRenderer) Stats() models.PoolStats { return f.stats }

func newEngine(f *fakeRenderer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	h := Render(f, 16)
	e.GET("/", h)
	e.POST("/", h)
	e.GET("/health", Health(f, time.Now()))
	return e
}

func TestRender_Document(t *testing.T) {
	f := &fakeRenderer{res: &models.RenderResult{
		Status:  http.StatusOK,
		Headers: http.Header{"Content-Type": {"text/html; charset=utf-8"}, "X-Origin": {"a", "b"}},
		Body:    []byte("<html>ok</html>"),
		Cookies: []*http.Cookie{{Name: "a", Value: "1"}, {Name: "a", Value: "2"}},
		Outcome: models.OutcomeDocument,
	}}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?url=https://example.com/p?x=1&y=2", nil)
	req.Header.Set("Authorization", "Bearer t")
	newEngine(f).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>ok</html>", w.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, []string{"a", "b"}, w.Header().Values("X-Origin"))
	assert.Equal(t, []string{"a=1", "a=2"}, w.Header().Values("Set-Cookie"))

	require.NotNil(t, f.got)
	assert.Equal(t, "https://example.com/p?x=1&y=2", f.got.URL)
	assert.Equal(t, http.MethodGet, f.got.Method)
	assert.Equal(t, "Bearer t", f.got.Headers.Get("Authorization"))
	assert.Nil(t, f.got.Body)
}

func TestRender_PostForwardsRawBody(t *testing.T) {
	f := &fakeRenderer{res: &models.RenderResult{Status: http.StatusOK, Body: []byte("done")}}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/?url=https://example.com/echo", strings.NewReader(`{"a":1}`))
	newEngine(f).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte(`{"a":1}`), f.got.Body)
	assert.True(t, f.got.IsPost())
}

func TestRender_PostBodyTooLarge(t *testing.T) {
	f := &fakeRenderer{}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/?url=https://example.com/", strings.NewReader(strings.Repeat("x", 17)))
	newEngine(f).ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Zero(t, f.calls)
}

func TestRender_MissingURL(t *testing.T) {
	for _, target := range []string{"/", "/?foo=bar", "/?url=", "/?url=not-a-url", "/?url=ftp://example.com/f"} {
		f := &fakeRenderer{}
		w := httptest.NewRecorder()
		newEngine(f).ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Equal(t, MissingURLMessage, w.Body.String(), target)
		assert.Zero(t, f.calls, target)
	}
}

func TestRender_FailureStillSetsCookies(t *testing.T) {
	f := &fakeRenderer{
		res: &models.RenderResult{Cookies: []*http.Cookie{{Name: "cf_clearance", Value: "x"}}},
		err: models.NewRenderError(models.ErrCodeTimeout, "navigation to target URL failed", context.DeadlineExceeded),
	}

	w := httptest.NewRecorder()
	newEngine(f).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?url=https://slow.example.com/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "context deadline exceeded")
	assert.Equal(t, []string{"cf_clearance=x"}, w.Header().Values("Set-Cookie"))
}

func TestRender_Busy(t *testing.T) {
	f := &fakeRenderer{err: models.NewRenderError(models.ErrCodeBusy, "no browser tab became free in time", nil)}

	w := httptest.NewRecorder()
	newEngine(f).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?url=https://example.com/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTargetURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"url=https://example.com/", "https://example.com/", true},
		{"url=https://example.com/a?b=1&c=2", "https://example.com/a?b=1&c=2", true},
		{"url=https%3A%2F%2Fexample.com%2Fa%3Fb%3D1", "https://example.com/a?b=1", true},
		{"debug=1&url=http://example.com/x", "http://example.com/x", true},
		{"url=https://example.com/a%20b", "https://example.com/a%20b", true},
		{"", "", false},
		{"curl=https://example.com/", "", false},
		{"url=/relative", "", false},
		{"url=javascript:alert(1)", "", false},
	}
	for _, tt := range tests {
		got, ok := TargetURL(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestHealth_Degraded(t *testing.T) {
	f := &fakeRenderer{stats: models.PoolStats{MaxTabs: 10, ActiveTabs: 9}}

	w := httptest.NewRecorder()
	newEngine(f).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
	assert.Contains(t, w.Body.String(), `"max_tabs":10`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.NewRenderError(models.ErrCodeInvalidInput, MissingURLMessage, nil), http.StatusBadRequest},
		{models.NewRenderError(models.ErrCodeBusy, "busy", nil), http.StatusServiceUnavailable},
		{models.NewRenderError(models.ErrCodeRateLimited, "slow down", nil), http.StatusTooManyRequests},
		{models.NewRenderError(models.ErrCodeBodyFetch, "body", nil), http.StatusInternalServerError},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}
