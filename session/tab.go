// Package session drives one browser tab through a single render: request
// interception, navigation, challenge re-wait, serialization and cookie
// capture.
package session

import (
	"context"

	"github.com/go-rod/rod/lib/proto"
)

// Tab is the slice of a browser tab a PageSession needs. The browser package
// implements it over rod; tests replay scripted events through a fake.
type Tab interface {
	// OnRequestPaused subscribes handler to Fetch.requestPaused. The
	// subscription is live when the call returns. Events are delivered one
	// at a time. stop ends the subscription and waits for a running handler
	// to return; it must not be called from inside the handler.
	OnRequestPaused(handler func(*proto.FetchRequestPaused)) (stop func())

	// EnableFetch turns on request interception for patterns.
	EnableFetch(patterns []*proto.FetchRequestPattern) error

	ContinueRequest(req *proto.FetchContinueRequest) error
	FailRequest(id proto.FetchRequestID, reason proto.NetworkErrorReason) error

	// ResponseBody returns the decoded body of a request paused at the
	// response stage.
	ResponseBody(id proto.FetchRequestID) ([]byte, error)

	// SetExtraHeaders installs headers sent with every request of the tab.
	SetExtraHeaders(headers map[string]string) error

	// MainFrameID identifies the tab's top-level frame.
	MainFrameID() proto.PageFrameID

	// WaitDOMContentLoaded arms a waiter for the next DOMContentLoaded
	// lifecycle event. Arm it before the action that triggers the load;
	// wait blocks until the event fires or ctx is done.
	WaitDOMContentLoaded(ctx context.Context) (wait func() error)

	// Navigate loads url in the main frame. It returns once the response
	// headers arrive or the navigation fails.
	Navigate(ctx context.Context, url string) error

	// HTML serializes the current document.
	HTML(ctx context.Context) (string, error)

	// Cookies reads the tab's cookie store for urls.
	Cookies(urls []string) ([]*proto.NetworkCookie, error)

	Close() error
}

// OpenFunc opens a fresh, unshared tab.
type OpenFunc func(ctx context.Context) (Tab, error)
