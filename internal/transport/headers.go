package transport

import "net/http"

// Profile selects the header set of a request.
type Profile int

const (
	// Navigation imitates a user opening a page in the browser.
	Navigation Profile = iota

	// Background imitates an XMLHttpRequest issued by page scripts.
	Background
)

// String returns the profile name used in logs.
func (p Profile) String() string {
	if p == Background {
		return "background"
	}
	return "navigation"
}

const acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif," +
	"image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.9"

// RequestContext carries the per-request values that shape headers.
// It is passed by value so no request can observe another's referer.
type RequestContext struct {
	// Referer is sent as the referer header when non-empty.
	Referer string
}

// WithReferer returns a copy of rc with the referer replaced.
func (rc RequestContext) WithReferer(referer string) RequestContext {
	rc.Referer = referer
	return rc
}

// Headers returns the header set for the given profile.
// The returned header is freshly allocated on every call.
func Headers(p Profile, userAgent string, rc RequestContext) http.Header {
	h := make(http.Header, 10)
	h.Set("Accept", acceptHTML)
	h.Set("Accept-Language", "ru")
	h.Set("Sec-Ch-Ua-Mobile", "?1")
	h.Set("User-Agent", userAgent)

	switch p {
	case Background:
		h.Set("Sec-Fetch-Dest", "empty")
		h.Set("Sec-Fetch-Mode", "cors")
		h.Set("Sec-Fetch-Site", "same-origin")
		h.Set("X-Requested-With", "XMLHttpRequest")
	default:
		h.Set("Sec-Fetch-Dest", "document")
		h.Set("Sec-Fetch-Mode", "navigate")
		h.Set("Sec-Fetch-Site", "none")
		h.Set("Sec-Fetch-User", "?1")
	}

	if rc.Referer != "" {
		h.Set("Referer", rc.Referer)
	}
	return h
}
