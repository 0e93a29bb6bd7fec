package relay

import (
	"net/http"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// Cookies converts the tab's cookie store snapshot into Set-Cookie
// instructions, one per record and in the same order.
func Cookies(records []*proto.NetworkCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		out = append(out, Cookie(rec))
	}
	return out
}

// Cookie converts a single browser cookie record.
//
// A value the origin sent in double quotes is stored by the browser with its
// quotes; it is unwrapped and marked Quoted so Set-Cookie carries it back
// unchanged. net/http still quotes unquoted values containing a space or a
// comma, and drops bytes RFC 6265 does not allow in a value (inner '"',
// '\', controls, non-ASCII), so such values reach the caller altered.
func Cookie(rec *proto.NetworkCookie) *http.Cookie {
	value, quoted := unquote(rec.Value)
	c := &http.Cookie{
		Name:     rec.Name,
		Value:    value,
		Quoted:   quoted,
		Domain:   rec.Domain,
		Path:     rec.Path,
		Secure:   rec.Secure,
		HttpOnly: rec.HTTPOnly,
		SameSite: sameSite(rec.SameSite),
	}
	if !rec.Session {
		if exp := expiry(rec.Expires); !exp.IsZero() {
			c.Expires = exp
		}
	}
	return c
}

func unquote(v string) (string, bool) {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1], true
	}
	return v, false
}

func sameSite(s proto.NetworkCookieSameSite) http.SameSite {
	switch s {
	case proto.NetworkCookieSameSiteStrict:
		return http.SameSiteStrictMode
	case proto.NetworkCookieSameSiteLax:
		return http.SameSiteLaxMode
	case proto.NetworkCookieSameSiteNone:
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}

// expiry turns CDP seconds-since-epoch into a time. Session cookies carry -1.
func expiry(t proto.TimeSinceEpoch) time.Time {
	if t <= 0 {
		return time.Time{}
	}
	return t.Time().UTC()
}
