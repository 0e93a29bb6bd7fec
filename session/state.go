package session

import (
	"net/http"
	"sync"
)

type outcome int

const (
	outcomePending outcome = iota
	outcomeRendered
	outcomeDownloadCaptured
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeRendered:
		return "document"
	case outcomeDownloadCaptured:
		return "download"
	case outcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// response is a main-frame document response as seen at the response stage.
type response struct {
	status  int
	headers http.Header
	url     string
}

// state is shared between the session goroutine and the interception
// handler. The first terminal outcome wins; later ones are ignored.
type state struct {
	mu      sync.Mutex
	outcome outcome
	err     error
	doc     string
	dl      response
	body    []byte
	nav     response
	urls    []string
	done    chan struct{}
}

func newState() *state {
	return &state{done: make(chan struct{})}
}

// settleLocked moves to a terminal outcome. Callers hold mu.
func (s *state) settleLocked(o outcome) bool {
	if s.outcome != outcomePending {
		return false
	}
	s.outcome = o
	close(s.done)
	return true
}

func (s *state) recordNavigation(r response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav = r
	s.seenLocked(r.url)
}

func (s *state) captureDownload(r response, body []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seenLocked(r.url)
	if !s.settleLocked(outcomeDownloadCaptured) {
		return false
	}
	s.dl = r
	s.body = body
	return true
}

func (s *state) render(doc string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.settleLocked(outcomeRendered) {
		return false
	}
	s.doc = doc
	return true
}

func (s *state) fail(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.settleLocked(outcomeFailed) {
		return false
	}
	s.err = err
	return true
}

func (s *state) seenLocked(url string) {
	if url == "" {
		return
	}
	for _, u := range s.urls {
		if u == url {
			return
		}
	}
	s.urls = append(s.urls, url)
}

// settled reports whether a terminal outcome has been reached.
func (s *state) settled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// cookieURLs is the request URL followed by every main-frame URL seen.
func (s *state) cookieURLs(requestURL string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	urls := make([]string, 0, len(s.urls)+1)
	urls = append(urls, requestURL)
	for _, u := range s.urls {
		if u != requestURL {
			urls = append(urls, u)
		}
	}
	return urls
}

// view is a consistent copy of state for building the result.
type view struct {
	outcome outcome
	err     error
	doc     string
	dl      response
	body    []byte
	nav     response
}

func (s *state) snapshot() view {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{
		outcome: s.outcome,
		err:     s.err,
		doc:     s.doc,
		dl:      s.dl,
		body:    s.body,
		nav:     s.nav,
	}
}
