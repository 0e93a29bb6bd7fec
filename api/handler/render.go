package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rendergate/models"
)

// MissingURLMessage is the body of the 400 answer to a request without a
// usable url parameter.
const MissingURLMessage = "Please specify the URL in the 'url' query string."

// Renderer renders one request in a fresh browser tab.
type Renderer interface {
	Render(ctx context.Context, req *models.RenderRequest) (*models.RenderResult, error)
}

// Render returns the handler for GET|POST /?url=<target>.
//
// Orchestration flow:
//  1. Extract the target URL from the raw query.
//  2. Read the POST body, bounded by maxBody.
//  3. Renderer.Render → document or download.
//  4. Relay cookies, sanitized headers and the body.
func Render(r Renderer, maxBody int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Target URL ───────────────────────────────────────────
		target, ok := TargetURL(c.Request.URL.RawQuery)
		if !ok {
			invalid := models.NewRenderError(models.ErrCodeInvalidInput, MissingURLMessage, nil)
			c.String(statusFor(invalid), invalid.Message)
			return
		}

		req := &models.RenderRequest{
			URL:     target,
			Method:  c.Request.Method,
			Headers: c.Request.Header.Clone(),
		}

		// ── 2. Body ─────────────────────────────────────────────────
		if req.IsPost() {
			body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBody))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					c.String(http.StatusRequestEntityTooLarge, "request body too large")
					return
				}
				c.String(http.StatusBadRequest, "failed to read request body")
				return
			}
			req.Body = body
		}

		// ── 3. Render ───────────────────────────────────────────────
		res, err := r.Render(c.Request.Context(), req)
		if res != nil {
			for _, cookie := range res.Cookies {
				http.SetCookie(c.Writer, cookie)
			}
		}
		if err != nil {
			c.String(statusFor(err), err.Error())
			return
		}

		// ── 4. Relay ────────────────────────────────────────────────
		h := c.Writer.Header()
		for name, values := range res.Headers {
			for _, v := range values {
				h.Add(name, v)
			}
		}
		c.Status(res.Status)
		_, _ = c.Writer.Write(res.Body)
	}
}

// TargetURL extracts the page to render. Everything after "url=" is taken
// verbatim so that unescaped '&' in the target survive; a fully escaped
// value is unescaped. Only absolute http(s) URLs are accepted.
func TargetURL(rawQuery string) (string, bool) {
	var v string
	if strings.HasPrefix(rawQuery, "url=") {
		v = rawQuery[len("url="):]
	} else if i := strings.Index(rawQuery, "&url="); i >= 0 {
		v = rawQuery[i+len("&url="):]
	} else {
		return "", false
	}

	if !strings.Contains(v, "://") {
		if unescaped, err := url.QueryUnescape(v); err == nil {
			v = unescaped
		}
	}

	u, err := url.Parse(v)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return v, true
}

// statusFor maps a RenderError code to the gateway's status.
func statusFor(err error) int {
	var re *models.RenderError
	if !errors.As(err, &re) {
		return http.StatusInternalServerError
	}
	switch re.Code {
	case models.ErrCodeBusy:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	default:
		return http.StatusInternalServerError // 500
	}
}
