package session

import (
	"context"
	"errors"
	"sync"

	"github.com/go-rod/rod/lib/proto"
)

const mainFrame proto.PageFrameID = "MAIN"

var errTabClosed = errors.New("target closed")

// fakeTab replays scripted Fetch events. Navigate runs script, which calls
// pause for every event the browser would deliver; pause returns once the
// handler resolved it, as Chrome would block the request until then.
type fakeTab struct {
	script func(ctx context.Context, f *fakeTab) error

	bodies  map[proto.FetchRequestID][]byte
	bodyErr error

	htmls   []string
	htmlErr error
	// hangFrom makes the HTML call with this index and later ones block
	// until their context ends. Zero disables it.
	hangFrom int

	cookies   []*proto.NetworkCookie
	cookieErr error

	dcl chan struct{}

	deliverMu sync.Mutex
	handler   func(*proto.FetchRequestPaused)
	stopped   bool

	mu         sync.Mutex
	calls      []string
	patterns   []*proto.FetchRequestPattern
	continued  []*proto.FetchContinueRequest
	failed     []proto.FetchRequestID
	extra      map[string]string
	cookieURLs []string
	closes     int
	htmlCalls  int
}

func newFakeTab(script func(ctx context.Context, f *fakeTab) error) *fakeTab {
	return &fakeTab{
		script: script,
		bodies: map[proto.FetchRequestID][]byte{},
		dcl:    make(chan struct{}, 4),
	}
}

func (f *fakeTab) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeTab) OnRequestPaused(handler func(*proto.FetchRequestPaused)) func() {
	f.deliverMu.Lock()
	f.handler = handler
	f.deliverMu.Unlock()
	return func() {
		f.deliverMu.Lock()
		f.stopped = true
		f.deliverMu.Unlock()
	}
}

// pause delivers e and waits for the handler to return. Events after stop
// are dropped.
func (f *fakeTab) pause(e *proto.FetchRequestPaused) {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()
	if f.handler == nil || f.stopped {
		return
	}
	f.handler(e)
}

func (f *fakeTab) EnableFetch(patterns []*proto.FetchRequestPattern) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns = patterns
	f.calls = append(f.calls, "enable")
	return nil
}

func (f *fakeTab) ContinueRequest(req *proto.FetchContinueRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.continued = append(f.continued, req)
	f.calls = append(f.calls, "continue:"+string(req.RequestID))
	return nil
}

func (f *fakeTab) FailRequest(id proto.FetchRequestID, reason proto.NetworkErrorReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, id)
	f.calls = append(f.calls, "fail:"+string(id))
	return nil
}

func (f *fakeTab) ResponseBody(id proto.FetchRequestID) ([]byte, error) {
	f.record("body:" + string(id))
	if f.bodyErr != nil {
		return nil, f.bodyErr
	}
	return f.bodies[id], nil
}

func (f *fakeTab) SetExtraHeaders(headers map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extra = headers
	return nil
}

func (f *fakeTab) MainFrameID() proto.PageFrameID { return mainFrame }

func (f *fakeTab) WaitDOMContentLoaded(ctx context.Context) func() error {
	return func() error {
		select {
		case <-f.dcl:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *fakeTab) Navigate(ctx context.Context, url string) error {
	f.record("navigate")
	if f.script == nil {
		return nil
	}
	return f.script(ctx, f)
}

func (f *fakeTab) HTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	if f.hangFrom > 0 && f.htmlCalls >= f.hangFrom {
		f.htmlCalls++
		f.mu.Unlock()
		<-ctx.Done()
		return "", ctx.Err()
	}
	defer f.mu.Unlock()
	if f.closes > 0 {
		return "", errTabClosed
	}
	if f.htmlErr != nil {
		return "", f.htmlErr
	}
	if len(f.htmls) == 0 {
		return "<html><head></head><body></body></html>", nil
	}
	i := f.htmlCalls
	if i >= len(f.htmls) {
		i = len(f.htmls) - 1
	}
	f.htmlCalls++
	return f.htmls[i], nil
}

func (f *fakeTab) Cookies(urls []string) ([]*proto.NetworkCookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookieURLs = urls
	f.calls = append(f.calls, "cookies")
	return f.cookies, f.cookieErr
}

func (f *fakeTab) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.calls = append(f.calls, "close")
	return nil
}

func (f *fakeTab) wasFailed(id proto.FetchRequestID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, got := range f.failed {
		if got == id {
			return true
		}
	}
	return false
}

// resolutions counts how often each request id was resolved.
func (f *fakeTab) resolutions() map[proto.FetchRequestID]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := map[proto.FetchRequestID]int{}
	for _, c := range f.continued {
		n[c.RequestID]++
	}
	for _, id := range f.failed {
		n[id]++
	}
	return n
}

func (f *fakeTab) snapshotCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// requestPaused builds a request-stage event.
func requestPaused(id, url string) *proto.FetchRequestPaused {
	return &proto.FetchRequestPaused{
		RequestID:    proto.FetchRequestID(id),
		Request:      &proto.NetworkRequest{URL: url, Method: "GET"},
		FrameID:      mainFrame,
		ResourceType: proto.NetworkResourceTypeDocument,
	}
}

// responsePaused builds a response-stage Document event; headers are
// name/value pairs.
func responsePaused(id string, frame proto.PageFrameID, url string, status int, headers ...string) *proto.FetchRequestPaused {
	entries := make([]*proto.FetchHeaderEntry, 0, len(headers)/2)
	for i := 0; i+1 < len(headers); i += 2 {
		entries = append(entries, &proto.FetchHeaderEntry{Name: headers[i], Value: headers[i+1]})
	}
	return &proto.FetchRequestPaused{
		RequestID:          proto.FetchRequestID(id),
		Request:            &proto.NetworkRequest{URL: url, Method: "GET"},
		FrameID:            frame,
		ResourceType:       proto.NetworkResourceTypeDocument,
		ResponseStatusCode: &status,
		ResponseHeaders:    entries,
	}
}

// resourcePaused builds a request-stage event for a sub-resource.
func resourcePaused(id, url string, rt proto.NetworkResourceType) *proto.FetchRequestPaused {
	return &proto.FetchRequestPaused{
		RequestID:    proto.FetchRequestID(id),
		Request:      &proto.NetworkRequest{URL: url, Method: "GET"},
		FrameID:      mainFrame,
		ResourceType: rt,
	}
}
