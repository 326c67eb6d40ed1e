// Package session implements the HTTP browsing session a crawl runs on.
//
// A Session owns one proxy, one cookie jar and one user agent. Fetch
// performs a request with the navigation or background header profile and
// guarantees that the caller never sees a challenge page: challenges are
// answered inline through a captcha.Solver, and a session whose challenges
// persist is refreshed with a new jar and, when one is free, a new proxy
// before the request is replayed once.
package session
