// Package transport builds the proxied HTTP plumbing used by crawl sessions.
//
// Every outbound request of a session goes through exactly one
// authenticated SOCKS5 proxy. The package provides:
//   - Client: a SOCKS5 dialer bound to one ProxyEndpoint, plus a health check
//   - header profiles for page navigation and background script requests
//   - cookie export and import so a jar survives a process restart
//   - ProxyPool: the process-wide registry of proxies held by live sessions
//
// Clients are created through a ClientFactory so tests can substitute a
// direct client pointing at httptest servers.
package transport
