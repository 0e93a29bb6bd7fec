package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/rendergate/config"
)

// ChallengeDetector recognises anti-automation interstitials and gives the
// page one chance to move past them.
type ChallengeDetector struct {
	marker    string
	selectors []cascadia.Sel
	timeout   time.Duration
}

// NewChallengeDetector compiles the configured selectors.
func NewChallengeDetector(cfg config.ChallengeConfig) (*ChallengeDetector, error) {
	d := &ChallengeDetector{
		marker:  cfg.Marker,
		timeout: cfg.Timeout,
	}
	for _, s := range cfg.Selectors {
		sel, err := cascadia.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("challenge selector %q: %w", s, err)
		}
		d.selectors = append(d.selectors, sel)
	}
	return d, nil
}

// Detect reports whether content is a challenge page.
func (d *ChallengeDetector) Detect(content string) bool {
	if d.marker != "" && strings.Contains(content, d.marker) {
		return true
	}
	if len(d.selectors) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil || len(doc.Nodes) == 0 {
		return false
	}
	for _, sel := range d.selectors {
		if cascadia.Query(doc.Nodes[0], sel) != nil {
			return true
		}
	}
	return false
}

// CheckAndMaybeRetry returns content unchanged unless it is a challenge
// page. For a challenge it waits once for the next DOMContentLoaded and
// returns the document serialized after it, challenged or not. The wait and
// the serialization are each bounded by the detector's timeout. challenged
// reports whether the wait happened.
func (d *ChallengeDetector) CheckAndMaybeRetry(ctx context.Context, tab Tab, content string) (out string, challenged bool, err error) {
	if !d.Detect(content) {
		return content, false, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	wait := tab.WaitDOMContentLoaded(waitCtx)
	if err := wait(); err != nil {
		return "", true, categorizeError(err, "challenge page did not navigate")
	}

	htmlCtx, cancelHTML := context.WithTimeout(ctx, d.timeout)
	defer cancelHTML()

	out, err = tab.HTML(htmlCtx)
	if err != nil {
		return "", true, categorizeError(err, "failed to serialize page after challenge")
	}
	return out, true, nil
}

// pageTitle returns the document title, for logging.
func pageTitle(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
