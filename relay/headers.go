// Package relay converts headers and cookies between the caller's HTTP
// exchange and the browser tab.
package relay

import (
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// outboundDenied are caller headers the browser must set itself.
// Keys are canonical.
var outboundDenied = canonicalSet(
	"Host",
	"User-Agent",
	"Accept",
	"Accept-Encoding",
	"Content-Length",
	"Forwarded",
	"X-Forwarded-Proto",
	"X-Forwarded-For",
	"X-Forwarded-Host",
	"X-Real-Ip",
	"X-Cloud-Trace-Context",
	"Connection",
	"Keep-Alive",
	"Transfer-Encoding",
	"Upgrade",
)

// inboundDenied are response headers that are wrong once the body has been
// re-framed by this server. Set-Cookie is relayed by Cookies instead.
var inboundDenied = canonicalSet(
	"Accept-Ranges",
	"Content-Length",
	"Keep-Alive",
	"Connection",
	"Content-Encoding",
	"Transfer-Encoding",
	"Set-Cookie",
)

func canonicalSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[http.CanonicalHeaderKey(n)] = struct{}{}
	}
	return set
}

// OutboundDenied reports whether a caller header is withheld from the browser.
func OutboundDenied(name string) bool {
	_, ok := outboundDenied[http.CanonicalHeaderKey(name)]
	return ok
}

// InboundDenied reports whether a response header is withheld from the caller.
func InboundDenied(name string) bool {
	_, ok := inboundDenied[http.CanonicalHeaderKey(name)]
	return ok
}

// SanitizeOutbound returns the caller headers to install on the tab as
// extra HTTP headers. Multi-valued headers are joined with ", ".
func SanitizeOutbound(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if OutboundDenied(name) || len(values) == 0 {
			continue
		}
		if !httpguts.ValidHeaderFieldName(name) {
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// SanitizeInbound drops the inbound deny-list and escapes every remaining
// value so it can be written to the caller without header injection.
func SanitizeInbound(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for name, values := range h {
		if InboundDenied(name) || !httpguts.ValidHeaderFieldName(name) {
			continue
		}
		key := http.CanonicalHeaderKey(name)
		for _, v := range values {
			escaped := Escape(v)
			if !httpguts.ValidHeaderFieldValue(escaped) {
				continue
			}
			out[key] = append(out[key], escaped)
		}
	}
	return out
}
