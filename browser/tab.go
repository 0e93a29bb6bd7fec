package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// callTimeout bounds protocol calls that must not hang on a wedged tab.
const callTimeout = 10 * time.Second

// serializeDocument returns the live document with its doctype, which
// DOM.getOuterHTML of <html> leaves out.
const serializeDocument = `() => {
	const dt = document.doctype ? new XMLSerializer().serializeToString(document.doctype) : '';
	return dt + (document.documentElement ? document.documentElement.outerHTML : '');
}`

// tab adapts a rod page to session.Tab.
//
// page is never bound to the request context, so resolutions, cookie reads
// and Close still go through after the caller has gone away. ctx is the
// request context, used for the calls that should die with it.
type tab struct {
	page *rod.Page
	ctx  context.Context

	closed atomic.Bool
}

func newTab(ctx context.Context, page *rod.Page) *tab {
	return &tab{page: page, ctx: ctx}
}

// call runs fn against the page with a bounded context.
func (t *tab) call(fn func(p *rod.Page) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return fn(t.page.Context(ctx))
}

func (t *tab) OnRequestPaused(handler func(*proto.FetchRequestPaused)) func() {
	p, cancel := t.page.WithCancel()
	wait := p.EachEvent(func(e *proto.FetchRequestPaused) {
		handler(e)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		wait()
	}()

	return func() {
		cancel()
		<-done
	}
}

func (t *tab) EnableFetch(patterns []*proto.FetchRequestPattern) error {
	return t.call(func(p *rod.Page) error {
		return proto.FetchEnable{Patterns: patterns}.Call(p)
	})
}

func (t *tab) ContinueRequest(req *proto.FetchContinueRequest) error {
	return t.call(func(p *rod.Page) error {
		return req.Call(p)
	})
}

func (t *tab) FailRequest(id proto.FetchRequestID, reason proto.NetworkErrorReason) error {
	return t.call(func(p *rod.Page) error {
		return proto.FetchFailRequest{RequestID: id, ErrorReason: reason}.Call(p)
	})
}

func (t *tab) ResponseBody(id proto.FetchRequestID) ([]byte, error) {
	res, err := proto.FetchGetResponseBody{RequestID: id}.Call(t.page.Context(t.ctx))
	if err != nil {
		return nil, err
	}
	if !res.Base64Encoded {
		return []byte(res.Body), nil
	}
	body, err := base64.StdEncoding.DecodeString(res.Body)
	if err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return body, nil
}

func (t *tab) SetExtraHeaders(headers map[string]string) error {
	return t.call(func(p *rod.Page) error {
		return proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(p)
	})
}

func (t *tab) MainFrameID() proto.PageFrameID {
	return t.page.FrameID
}

// WaitDOMContentLoaded only counts a DOMContentLoaded that belongs to a
// main-frame document committed after the waiter was armed, so the blank
// page the tab was created with cannot satisfy it.
func (t *tab) WaitDOMContentLoaded(ctx context.Context) func() error {
	p := t.page.Context(ctx)
	if err := (proto.PageSetLifecycleEventsEnabled{Enabled: true}).Call(p); err != nil {
		slog.Debug("enable lifecycle events failed", "error", err)
	}

	var loader proto.NetworkLoaderID
	wait := p.EachEvent(
		func(e *proto.PageFrameNavigated) bool {
			if e.Frame != nil && e.Frame.ID == t.page.FrameID {
				loader = e.Frame.LoaderID
			}
			return false
		},
		func(e *proto.PageLifecycleEvent) bool {
			return loader != "" &&
				e.FrameID == t.page.FrameID &&
				e.LoaderID == loader &&
				e.Name == proto.PageLifecycleEventNameDOMContentLoaded
		},
	)

	return func() error {
		wait()
		return ctx.Err()
	}
}

func (t *tab) Navigate(ctx context.Context, url string) error {
	return t.page.Context(ctx).Navigate(url)
}

func (t *tab) HTML(ctx context.Context) (string, error) {
	res, err := t.page.Context(ctx).Eval(serializeDocument)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (t *tab) Cookies(urls []string) ([]*proto.NetworkCookie, error) {
	var cookies []*proto.NetworkCookie
	err := t.call(func(p *rod.Page) error {
		res, err := proto.NetworkGetCookies{Urls: urls}.Call(p)
		if err != nil {
			return err
		}
		cookies = res.Cookies
		return nil
	})
	return cookies, err
}

func (t *tab) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.call(func(p *rod.Page) error {
		return p.Close()
	})
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
