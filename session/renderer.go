package session

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/rendergate/config"
	"github.com/use-agent/rendergate/metrics"
	"github.com/use-agent/rendergate/models"
	"golang.org/x/sync/semaphore"
)

// Renderer runs PageSessions against fresh tabs, capping how many are open
// at once. It is safe for concurrent use.
type Renderer struct {
	open           OpenFunc
	sem            *semaphore.Weighted
	maxTabs        int
	acquireTimeout time.Duration
	opts           Options
	active         atomic.Int32
	log            *slog.Logger
}

// NewRenderer returns a Renderer that opens tabs with open.
func NewRenderer(open OpenFunc, browserCfg config.BrowserConfig, sessionCfg config.SessionConfig, challenge *ChallengeDetector) *Renderer {
	maxTabs := browserCfg.MaxTabs
	if maxTabs <= 0 {
		maxTabs = 1
	}
	return &Renderer{
		open:           open,
		sem:            semaphore.NewWeighted(int64(maxTabs)),
		maxTabs:        maxTabs,
		acquireTimeout: browserCfg.AcquireTimeout,
		opts: Options{
			NavigationTimeout: sessionCfg.NavigationTimeout,
			Challenge:         challenge,
			BlockAds:          sessionCfg.BlockAds,
		},
		log: slog.Default(),
	}
}

// Render opens a tab, runs one session on it and closes it.
//
// Errors are *models.RenderError. ErrCodeBusy means no tab slot became free
// within the acquire timeout and no tab was opened. For session failures the
// result is non-nil and carries the cookies read before the tab closed.
func (r *Renderer) Render(ctx context.Context, req *models.RenderRequest) (*models.RenderResult, error) {
	// ── 1. Acquire a tab slot ─────────────────────────────────────────
	acquireCtx, cancel := context.WithTimeout(ctx, r.acquireTimeout)
	err := r.sem.Acquire(acquireCtx, 1)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, categorizeError(ctx.Err(), "request canceled while waiting for a tab")
		}
		metrics.Rejections.WithLabelValues("busy").Inc()
		return nil, models.NewRenderError(models.ErrCodeBusy, "no browser tab became free in time", err)
	}
	defer r.sem.Release(1)

	r.active.Add(1)
	metrics.ActiveTabs.Inc()
	defer func() {
		r.active.Add(-1)
		metrics.ActiveTabs.Dec()
	}()

	log := r.log.With(
		"session_id", uuid.NewString(),
		"url", req.URL,
		"method", req.Method,
	)
	start := time.Now()

	// ── 2. Open a fresh tab ───────────────────────────────────────────
	tab, err := r.open(ctx)
	if err != nil {
		metrics.Sessions.WithLabelValues(outcomeFailed.String()).Inc()
		log.Error("failed to open tab", "error", err)
		return nil, models.NewRenderError(models.ErrCodeBrowserCrash, "failed to open browser tab", err)
	}

	// ── 3. Run the session; it closes the tab ─────────────────────────
	s := NewPageSession(tab, req, r.opts, log)
	res, err := s.Run(ctx)

	outcome := s.Outcome()
	elapsed := time.Since(start)
	metrics.Sessions.WithLabelValues(outcome).Inc()
	metrics.SessionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())

	if err != nil {
		log.Warn("render failed",
			"outcome", outcome,
			"duration_ms", elapsed.Milliseconds(),
			"cookies", len(res.Cookies),
			"error", err,
		)
		return res, err
	}
	log.Info("render finished",
		"outcome", outcome,
		"duration_ms", elapsed.Milliseconds(),
		"final_url", res.FinalURL,
		"bytes", len(res.Body),
		"cookies", len(res.Cookies),
		"challenged", res.Challenged,
	)
	return res, nil
}

// Stats returns a snapshot of tab utilisation.
func (r *Renderer) Stats() models.PoolStats {
	return models.PoolStats{
		MaxTabs:    r.maxTabs,
		ActiveTabs: int(r.active.Load()),
	}
}
