package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/rendergate/metrics"
	"github.com/use-agent/rendergate/models"
	"github.com/use-agent/rendergate/relay"
)

// Options tune a single PageSession.
type Options struct {
	// NavigationTimeout bounds navigation until DOMContentLoaded.
	NavigationTimeout time.Duration

	// Challenge is consulted on every rendered document. Nil disables it.
	Challenge *ChallengeDetector

	// BlockAds fails sub-resource requests to known ad and tracking hosts.
	BlockAds bool
}

// PageSession owns one tab for one inbound request. A session is used once.
type PageSession struct {
	tab  Tab
	req  *models.RenderRequest
	opts Options
	log  *slog.Logger

	st   *state
	ctrl *InterceptionController

	closeOnce   sync.Once
	releaseOnce sync.Once
	cookies     []*proto.NetworkCookie
	challenged  bool
}

// NewPageSession wraps an opened tab. log should already carry the
// session attributes.
func NewPageSession(tab Tab, req *models.RenderRequest, opts Options, log *slog.Logger) *PageSession {
	if log == nil {
		log = slog.Default()
	}
	s := &PageSession{
		tab:  tab,
		req:  req,
		opts: opts,
		log:  log,
		st:   newState(),
	}
	s.ctrl = newInterceptionController(tab, s.st, log, s.closeTab, opts.BlockAds)
	return s
}

// Run drives the session to a terminal outcome. The tab is closed and its
// cookies read on every path.
//
// On failure the error is a *models.RenderError and the returned result is
// still non-nil: it carries the cookies read before close and nothing else.
//
// Lifecycle (numbered steps match the inline comments in drive):
//
//  1. Interrupt           – cancel in-flight waits once interception settles
//  2. Extra headers       – caller headers minus the outbound deny-list
//  3. Arm interception    – MUST happen before navigation
//  4. Navigate            – bounded by NavigationTimeout
//  5. Wait                – DOMContentLoaded, armed before Navigate
//  6. Serialize           – page.HTML()
//  7. Challenge           – one bounded re-wait when a marker is present
//  8. Settle              – Rendered, unless a download already won
func (s *PageSession) Run(ctx context.Context) (*models.RenderResult, error) {
	defer s.release()

	if err := s.drive(ctx); err != nil {
		s.st.fail(err)
	}
	s.release()

	return s.result()
}

func (s *PageSession) drive(ctx context.Context) error {
	// ── 1. Interrupt ──────────────────────────────────────────────────
	// A captured download or a failed body read ends the session; Navigate
	// and the waits must not sit out their timeouts.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.st.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	// ── 2. Extra headers ──────────────────────────────────────────────
	if h := relay.SanitizeOutbound(s.req.Headers); len(h) > 0 {
		if err := s.tab.SetExtraHeaders(h); err != nil {
			s.log.Warn("failed to set extra headers, proceeding without them",
				"error", err,
			)
		}
	}

	// ── 3. Arm interception ───────────────────────────────────────────
	if s.req.IsPost() {
		s.ctrl.RewriteFirstAsPost(s.req.Body)
	}
	if err := s.ctrl.Arm(); err != nil {
		return models.NewRenderError(models.ErrCodeBrowserCrash, "failed to enable request interception", err)
	}

	// ── 4. Navigate ───────────────────────────────────────────────────
	navCtx, navCancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	defer navCancel()

	wait := s.tab.WaitDOMContentLoaded(navCtx)
	if err := s.tab.Navigate(navCtx, s.req.URL); err != nil {
		if s.st.settled() {
			return nil
		}
		return categorizeError(err, "navigation to target URL failed")
	}

	// ── 5. Wait for DOMContentLoaded ──────────────────────────────────
	if err := wait(); err != nil {
		if s.st.settled() {
			return nil
		}
		return categorizeError(err, "page did not reach DOMContentLoaded")
	}

	// ── 6. Serialize ──────────────────────────────────────────────────
	html, err := s.tab.HTML(navCtx)
	if err != nil {
		if s.st.settled() {
			return nil
		}
		return categorizeError(err, "failed to serialize page")
	}

	// ── 7. Challenge ──────────────────────────────────────────────────
	if s.opts.Challenge != nil {
		out, challenged, err := s.opts.Challenge.CheckAndMaybeRetry(ctx, s.tab, html)
		s.challenged = challenged
		if err != nil {
			if s.st.settled() {
				return nil
			}
			return err
		}
		if challenged {
			cleared := !s.opts.Challenge.Detect(out)
			s.log.Info("challenge page re-waited",
				"cleared", cleared,
				"title", pageTitle(out),
			)
			if cleared {
				metrics.Challenges.WithLabelValues("cleared").Inc()
			} else {
				metrics.Challenges.WithLabelValues("persistent").Inc()
			}
		}
		html = out
	}

	// ── 8. Settle ─────────────────────────────────────────────────────
	s.st.render(html)
	return nil
}

// release stops interception, then reads cookies and closes the tab.
func (s *PageSession) release() {
	s.releaseOnce.Do(func() {
		s.ctrl.Disarm()
		s.closeTab()
	})
}

// closeTab is the single close point, shared with the interception
// handler. Cookies are read while the tab is still open.
func (s *PageSession) closeTab() {
	s.closeOnce.Do(func() {
		cookies, err := s.tab.Cookies(s.st.cookieURLs(s.req.URL))
		if err != nil {
			s.log.Warn("failed to read cookies before close",
				"error", err,
			)
		}
		s.cookies = cookies

		if err := s.tab.Close(); err != nil {
			s.log.Warn("failed to close tab",
				"error", err,
			)
		}
	})
}

// Outcome names the terminal outcome, for logs and metrics.
func (s *PageSession) Outcome() string {
	return s.st.snapshot().outcome.String()
}

func (s *PageSession) result() (*models.RenderResult, error) {
	v := s.st.snapshot()
	res := &models.RenderResult{
		Cookies:    relay.Cookies(s.cookies),
		Challenged: s.challenged,
	}

	switch v.outcome {
	case outcomeDownloadCaptured:
		res.Status = http.StatusOK
		res.Outcome = models.OutcomeDownload
		res.Headers = relay.SanitizeInbound(v.dl.headers)
		res.Body = v.body
		res.FinalURL = v.dl.url
		return res, nil

	case outcomeRendered:
		res.Status = http.StatusOK
		res.Outcome = models.OutcomeDocument
		res.Headers = relay.SanitizeInbound(v.nav.headers)
		res.Body = []byte(v.doc)
		res.FinalURL = v.nav.url
		if res.FinalURL == "" {
			res.FinalURL = s.req.URL
		}
		return res, nil

	default:
		err := v.err
		if err == nil {
			err = models.NewRenderError(models.ErrCodeInternal, "session ended without an outcome", nil)
		}
		return res, err
	}
}

// categorizeError wraps raw errors into typed RenderErrors so the API layer
// can map them to responses.
func categorizeError(err error, msg string) *models.RenderError {
	var re *models.RenderError
	if errors.As(err, &re) {
		return re
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewRenderError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewRenderError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewRenderError(models.ErrCodeNavigation, msg, err)
	}
}
