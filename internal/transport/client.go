package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// checkProxyTimeout is the timeout of the SOCKS5 handshake health check.
const checkProxyTimeout = 5 * time.Second

// maxRedirects bounds redirect chains of a single request.
const maxRedirects = 10

// Client provides connectivity through one authenticated SOCKS5 proxy.
type Client struct {
	// endpoint is the proxy this client dials through.
	endpoint model.ProxyEndpoint

	// dialer is the SOCKS5 dialer, cached for the client lifetime.
	dialer proxy.Dialer

	// timeout is the per-request timeout of HTTP clients built by this client.
	timeout time.Duration
}

// NewClient creates a client for the given proxy endpoint.
// It validates the address but does not contact the proxy.
// Call CheckConnection to verify it.
func NewClient(endpoint model.ProxyEndpoint, timeout time.Duration) (*Client, error) {
	if !isValidProxyAddress(endpoint.Host, endpoint.SOCKSPort) {
		return nil, fmt.Errorf("proxy %s: %w", endpoint.ID, ErrInvalidProxyAddress)
	}

	var auth *proxy.Auth
	if endpoint.Username != "" {
		auth = &proxy.Auth{User: endpoint.Username, Password: endpoint.Password}
	}

	dialer, err := proxy.SOCKS5("tcp", endpoint.SOCKSAddress(), auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &Client{
		endpoint: endpoint,
		dialer:   dialer,
		timeout:  timeout,
	}, nil
}

// isValidProxyAddress checks that host is non-empty and port is in 1..65535.
func isValidProxyAddress(host, port string) bool {
	if host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// SOCKS5 protocol constants
const (
	socks5Version          = 0x05
	socks5AuthNone         = 0x00
	socks5AuthUserPass     = 0x02
	socks5AuthNoAccept     = 0xFF
	socks5UserPassVersion  = 0x01
	socks5UserPassAccepted = 0x00
)

// CheckConnection verifies that the proxy speaks SOCKS5 and accepts our
// credentials. It performs the method negotiation and, when the proxy asks
// for it, the username/password sub-negotiation. No CONNECT is issued.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.endpoint.SOCKSAddress())
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	greeting := []byte{socks5Version, 0x01, socks5AuthNone}
	if c.endpoint.Username != "" {
		greeting = []byte{socks5Version, 0x02, socks5AuthNone, socks5AuthUserPass}
	}
	if _, err := conn.Write(greeting); err != nil {
		return ProxyStatusCannotConnect
	}

	methodResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, methodResp); err != nil {
		return readFailureStatus(err)
	}
	if methodResp[0] != socks5Version {
		return ProxyStatusWrongType
	}

	switch methodResp[1] {
	case socks5AuthNone:
		return ProxyStatusOK
	case socks5AuthNoAccept:
		return ProxyStatusAuthRejected
	case socks5AuthUserPass:
	default:
		return ProxyStatusWrongType
	}

	user, pass := c.endpoint.Username, c.endpoint.Password
	if len(user) > 255 || len(pass) > 255 {
		return ProxyStatusAuthRejected
	}
	authReq := make([]byte, 0, 3+len(user)+len(pass))
	authReq = append(authReq, socks5UserPassVersion, byte(len(user)))
	authReq = append(authReq, user...)
	authReq = append(authReq, byte(len(pass)))
	authReq = append(authReq, pass...)
	if _, err := conn.Write(authReq); err != nil {
		return ProxyStatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		return readFailureStatus(err)
	}
	if authResp[1] != socks5UserPassAccepted {
		return ProxyStatusAuthRejected
	}
	return ProxyStatusOK
}

func readFailureStatus(err error) ProxyStatus {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}

// NewHTTPClient creates an HTTP client that routes every request through
// the proxy and stores cookies in jar. A nil jar gets a fresh one.
//
// Accept-Encoding is left to net/http so gzip responses are decoded
// transparently.
func (c *Client) NewHTTPClient(jar http.CookieJar) *http.Client {
	transport := &http.Transport{
		DialContext:         c.DialContext,
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: c.timeout,
	}
	return newHTTPClient(transport, jar, c.timeout)
}

// DialContext establishes a TCP connection through the proxy.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Endpoint returns the proxy this client dials through.
func (c *Client) Endpoint() model.ProxyEndpoint {
	return c.endpoint
}

// newHTTPClient assembles an http.Client with a cookie jar and redirect limit.
func newHTTPClient(rt http.RoundTripper, jar http.CookieJar, timeout time.Duration) *http.Client {
	if jar == nil {
		jar = NewJar()
	}
	return &http.Client{
		Transport: rt,
		Timeout:   timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// NewJar returns an empty in-memory cookie jar.
func NewJar() http.CookieJar {
	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options
	return jar
}

// ClientFactory builds the HTTP client a session uses for one proxy.
// Sessions call it again with a fresh jar when they replace a burned proxy.
type ClientFactory func(endpoint model.ProxyEndpoint, jar http.CookieJar) (*http.Client, error)

// SOCKS5ClientFactory returns a factory that dials through each endpoint.
func SOCKS5ClientFactory(timeout time.Duration) ClientFactory {
	return func(endpoint model.ProxyEndpoint, jar http.CookieJar) (*http.Client, error) {
		c, err := NewClient(endpoint, timeout)
		if err != nil {
			return nil, err
		}
		return c.NewHTTPClient(jar), nil
	}
}

// DirectClientFactory returns a factory that ignores the endpoint and
// connects directly. It is used against local test servers.
func DirectClientFactory(timeout time.Duration) ClientFactory {
	return func(_ model.ProxyEndpoint, jar http.CookieJar) (*http.Client, error) {
		return newHTTPClient(http.DefaultTransport.(*http.Transport).Clone(), jar, timeout), nil
	}
}
