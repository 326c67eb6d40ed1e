package transport

import (
	"net/http"
	"net/url"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// ExportCookies reads the cookies the jar would send to each origin.
// net/http/cookiejar only exposes name and value, so that is what is kept.
func ExportCookies(jar http.CookieJar, origins []string) []model.Cookie {
	out := make([]model.Cookie, 0)
	if jar == nil {
		return out
	}
	for _, origin := range origins {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			continue
		}
		for _, c := range jar.Cookies(u) {
			out = append(out, model.Cookie{
				URL:   origin,
				Name:  c.Name,
				Value: c.Value,
				Path:  "/",
			})
		}
	}
	return out
}

// ImportCookies stores persisted cookies back into the jar.
// Cookies whose origin cannot be parsed are skipped.
func ImportCookies(jar http.CookieJar, cookies []model.Cookie) {
	if jar == nil {
		return
	}
	byOrigin := make(map[string][]*http.Cookie)
	order := make([]string, 0)
	for _, c := range cookies {
		if _, ok := byOrigin[c.URL]; !ok {
			order = append(order, c.URL)
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		byOrigin[c.URL] = append(byOrigin[c.URL], &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	for _, origin := range order {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			continue
		}
		jar.SetCookies(u, byOrigin[origin])
	}
}

// Origin returns scheme://host of rawURL, or "" when it has no host.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}
