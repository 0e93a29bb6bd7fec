package session

import (
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/rendergate/metrics"
	"github.com/use-agent/rendergate/models"
)

const (
	stageRequest  = "request"
	stageResponse = "response"
)

// InterceptionController resolves every paused request of one tab. It
// captures main-frame downloads, replays the caller's POST body on the first
// request, fails requests to ad hosts when blocking is on and lets
// everything else through.
type InterceptionController struct {
	tab      Tab
	state    *state
	log      *slog.Logger
	closeTab func()
	blockAds bool

	postBody []byte
	rewrite  atomic.Bool

	stop func()
}

func newInterceptionController(tab Tab, st *state, log *slog.Logger, closeTab func(), blockAds bool) *InterceptionController {
	return &InterceptionController{
		tab:      tab,
		state:    st,
		log:      log,
		closeTab: closeTab,
		blockAds: blockAds,
	}
}

// RewriteFirstAsPost makes the next request-stage event go out as a POST
// carrying body. It applies once. Call it before Arm.
func (c *InterceptionController) RewriteFirstAsPost(body []byte) {
	c.postBody = body
	c.rewrite.Store(true)
}

// Arm subscribes to paused requests and enables interception. It must run
// before the tab navigates.
func (c *InterceptionController) Arm() error {
	c.stop = c.tab.OnRequestPaused(c.handle)

	patterns := []*proto.FetchRequestPattern{{
		URLPattern:   "*",
		ResourceType: proto.NetworkResourceTypeDocument,
		RequestStage: proto.FetchRequestStageResponse,
	}}
	if c.rewrite.Load() || c.blockAds {
		patterns = append(patterns, &proto.FetchRequestPattern{
			URLPattern:   "*",
			RequestStage: proto.FetchRequestStageRequest,
		})
	}
	if err := c.tab.EnableFetch(patterns); err != nil {
		c.Disarm()
		return err
	}
	return nil
}

// Disarm ends the subscription. A handler already running finishes first.
func (c *InterceptionController) Disarm() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
}

func (c *InterceptionController) handle(e *proto.FetchRequestPaused) {
	if e.ResponseStatusCode == nil && e.ResponseErrorReason == "" {
		c.onRequest(e)
		return
	}
	c.onResponse(e)
}

func (c *InterceptionController) onRequest(e *proto.FetchRequestPaused) {
	if c.rewrite.CompareAndSwap(true, false) {
		c.log.Debug("replaying caller body", "url", requestURL(e), "bytes", len(c.postBody))
		c.proceed(stageRequest, "post", &proto.FetchContinueRequest{
			RequestID: e.RequestID,
			Method:    http.MethodPost,
			PostData:  c.postBody,
		})
		return
	}
	if c.blockAds && !c.isNavigation(e) && isAdRequest(requestURL(e)) {
		c.log.Debug("blocking ad request", "url", requestURL(e))
		c.abort(stageRequest, "blocked", e.RequestID)
		return
	}
	c.proceed(stageRequest, "continue", &proto.FetchContinueRequest{RequestID: e.RequestID})
}

// isNavigation reports whether e is the main frame's own document. The page
// the caller asked for is never blocked, whatever its host.
func (c *InterceptionController) isNavigation(e *proto.FetchRequestPaused) bool {
	return e.ResourceType == proto.NetworkResourceTypeDocument && e.FrameID == c.tab.MainFrameID()
}

func (c *InterceptionController) onResponse(e *proto.FetchRequestPaused) {
	status := 0
	if e.ResponseStatusCode != nil {
		status = *e.ResponseStatusCode
	}
	headers := fetchHeaders(e.ResponseHeaders)
	resp := response{status: status, headers: headers, url: requestURL(e)}
	mainFrame := e.FrameID == c.tab.MainFrameID()

	if e.ResponseErrorReason != "" || !IsDownload(status, headers) {
		if mainFrame && e.ResponseErrorReason == "" {
			c.state.recordNavigation(resp)
		}
		c.proceed(stageResponse, "continue", &proto.FetchContinueRequest{RequestID: e.RequestID})
		return
	}

	if !mainFrame {
		c.log.Debug("dropping sub-frame download", "url", resp.url)
		c.abort(stageResponse, "abort", e.RequestID)
		return
	}

	// The body is only readable while the request is still paused.
	body, err := c.tab.ResponseBody(e.RequestID)
	if err != nil {
		c.log.Warn("failed to read download body", "url", resp.url, "error", err)
		c.state.fail(models.NewRenderError(models.ErrCodeBodyFetch, "failed to read download body", err))
	} else {
		c.log.Debug("download captured", "url", resp.url, "status", status, "bytes", len(body))
		c.state.captureDownload(resp, body)
	}
	c.abort(stageResponse, "abort", e.RequestID)
	c.closeTab()
}

func (c *InterceptionController) proceed(stage, resolution string, req *proto.FetchContinueRequest) {
	if err := c.tab.ContinueRequest(req); err != nil {
		c.log.Debug("continue paused request failed", "stage", stage, "error", err)
	}
	metrics.Interceptions.WithLabelValues(stage, resolution).Inc()
}

func (c *InterceptionController) abort(stage, resolution string, id proto.FetchRequestID) {
	if err := c.tab.FailRequest(id, proto.NetworkErrorReasonBlockedByClient); err != nil {
		c.log.Debug("abort paused request failed", "stage", stage, "error", err)
	}
	metrics.Interceptions.WithLabelValues(stage, resolution).Inc()
}

// IsDownload reports whether a document response would be saved rather than
// rendered: an attachment, or a body type the browser cannot display.
// Redirects are never downloads.
func IsDownload(status int, h http.Header) bool {
	if status >= 300 && status < 400 && h.Get("Location") != "" {
		return false
	}
	if cd := h.Get("Content-Disposition"); cd != "" {
		disposition, _, err := mime.ParseMediaType(cd)
		if err != nil {
			disposition, _, _ = strings.Cut(cd, ";")
		}
		if strings.EqualFold(strings.TrimSpace(disposition), "attachment") {
			return true
		}
	}
	ct := h.Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return !renderable(mediaType)
}

func renderable(mediaType string) bool {
	switch {
	case strings.HasPrefix(mediaType, "text/"),
		strings.HasPrefix(mediaType, "image/"),
		strings.HasSuffix(mediaType, "+xml"),
		strings.HasSuffix(mediaType, "+json"):
		return true
	}
	switch mediaType {
	case "application/xml", "application/json", "application/javascript",
		"application/ecmascript", "multipart/x-mixed-replace":
		return true
	}
	return false
}

func fetchHeaders(entries []*proto.FetchHeaderEntry) http.Header {
	h := make(http.Header, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		h.Add(e.Name, e.Value)
	}
	return h
}

func requestURL(e *proto.FetchRequestPaused) string {
	if e.Request == nil {
		return ""
	}
	return e.Request.URL
}
