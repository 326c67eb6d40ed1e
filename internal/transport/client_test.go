package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// endpointFor builds an endpoint pointing at addr.
func endpointFor(t *testing.T, addr, user, pass string) model.ProxyEndpoint {
	t.Helper()

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("bad address %q: %v", addr, err)
	}
	return model.ProxyEndpoint{ID: "p", Host: host, SOCKSPort: port, Username: user, Password: pass}
}

// startMockProxy accepts one connection and hands it to serve.
func startMockProxy(t *testing.T, serve func(conn net.Conn)) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}()

	return listener.Addr().String()
}

// TestNewClient tests the Client constructor.
func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("valid endpoint creates client", func(t *testing.T) {
		t.Parallel()

		e := model.ProxyEndpoint{ID: "1", Host: "127.0.0.1", SOCKSPort: "1080", Username: "u", Password: "p"}
		client, err := NewClient(e, 30*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.Endpoint().ID != "1" {
			t.Errorf("Endpoint().ID = %q", client.Endpoint().ID)
		}
	})

	tests := []struct {
		name string
		host string
		port string
	}{
		{name: "empty host", host: "", port: "1080"},
		{name: "non-numeric port", host: "127.0.0.1", port: "socks"},
		{name: "port zero", host: "127.0.0.1", port: "0"},
		{name: "port too large", host: "127.0.0.1", port: "70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewClient(model.ProxyEndpoint{Host: tt.host, SOCKSPort: tt.port}, time.Second)
			if !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
			}
		})
	}
}

// TestCheckConnection tests the SOCKS5 handshake health check.
func TestCheckConnection(t *testing.T) {
	t.Parallel()

	t.Run("returns CannotConnect for non-existent proxy", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatal(err)
		}
		addr := listener.Addr().String()
		listener.Close()

		client, err := NewClient(endpointFor(t, addr, "", ""), time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusCannotConnect {
			t.Errorf("expected ProxyStatusCannotConnect, got %v", status)
		}
	})

	t.Run("returns WrongType for non-SOCKS5 server", func(t *testing.T) {
		t.Parallel()

		addr := startMockProxy(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = io.ReadFull(conn, buf)
			_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
		})

		client, err := NewClient(endpointFor(t, addr, "", ""), time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusWrongType {
			t.Errorf("expected ProxyStatusWrongType, got %v", status)
		}
	})

	t.Run("returns OK for accepted credentials", func(t *testing.T) {
		t.Parallel()

		gotCreds := make(chan string, 1)
		addr := startMockProxy(t, func(conn net.Conn) {
			greeting := make([]byte, 4)
			if _, err := io.ReadFull(conn, greeting); err != nil {
				return
			}
			_, _ = conn.Write([]byte{0x05, 0x02})

			head := make([]byte, 2)
			if _, err := io.ReadFull(conn, head); err != nil {
				return
			}
			user := make([]byte, head[1])
			_, _ = io.ReadFull(conn, user)
			plen := make([]byte, 1)
			_, _ = io.ReadFull(conn, plen)
			pass := make([]byte, plen[0])
			_, _ = io.ReadFull(conn, pass)
			gotCreds <- string(user) + ":" + string(pass)
			_, _ = conn.Write([]byte{0x01, 0x00})
		})

		client, err := NewClient(endpointFor(t, addr, "alice", "secret"), time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusOK {
			t.Errorf("expected ProxyStatusOK, got %v", status)
		}
		if creds := <-gotCreds; creds != "alice:secret" {
			t.Errorf("proxy received %q", creds)
		}
	})

	t.Run("returns AuthRejected for refused credentials", func(t *testing.T) {
		t.Parallel()

		addr := startMockProxy(t, func(conn net.Conn) {
			greeting := make([]byte, 4)
			if _, err := io.ReadFull(conn, greeting); err != nil {
				return
			}
			_, _ = conn.Write([]byte{0x05, 0x02})
			buf := make([]byte, 2+1+1+1)
			_, _ = io.ReadFull(conn, buf[:2])
			_, _ = io.ReadFull(conn, buf[2:3])
			_, _ = io.ReadFull(conn, buf[3:4])
			_, _ = io.ReadFull(conn, buf[4:5])
			_, _ = conn.Write([]byte{0x01, 0x01})
		})

		client, err := NewClient(endpointFor(t, addr, "a", "b"), time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusAuthRejected {
			t.Errorf("expected ProxyStatusAuthRejected, got %v", status)
		}
	})

	t.Run("returns AuthRejected when no method is acceptable", func(t *testing.T) {
		t.Parallel()

		addr := startMockProxy(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = io.ReadFull(conn, buf)
			_, _ = conn.Write([]byte{0x05, 0xFF})
		})

		client, err := NewClient(endpointFor(t, addr, "", ""), time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusAuthRejected {
			t.Errorf("expected ProxyStatusAuthRejected, got %v", status)
		}
	})
}

// TestProxyStatus tests status names and errors.
func TestProxyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  ProxyStatus
		name    string
		wantErr error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not SOCKS5)", ErrProxyNotSOCKS5},
		{ProxyStatusAuthRejected, "credentials rejected", ErrProxyAuthRejected},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.status.String() != tt.name {
				t.Errorf("String() = %q, expected %q", tt.status.String(), tt.name)
			}
			if err := tt.status.Error(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Error() = %v, expected %v", err, tt.wantErr)
			}
		})
	}

	if ProxyStatus(99).String() != "unknown" || ProxyStatus(99).Error() == nil {
		t.Error("unknown status should be reported as unknown with an error")
	}
}

// TestNewHTTPClient tests the HTTP client configuration.
func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	e := model.ProxyEndpoint{ID: "1", Host: "127.0.0.1", SOCKSPort: "1080"}
	client, err := NewClient(e, 15*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("fresh jar when nil", func(t *testing.T) {
		t.Parallel()

		hc := client.NewHTTPClient(nil)
		if hc.Jar == nil {
			t.Error("expected a cookie jar")
		}
		if hc.Timeout != 15*time.Second {
			t.Errorf("Timeout = %v", hc.Timeout)
		}
	})

	t.Run("keeps the given jar", func(t *testing.T) {
		t.Parallel()

		jar := NewJar()
		if hc := client.NewHTTPClient(jar); hc.Jar != jar {
			t.Error("expected the provided jar to be used")
		}
	})

	t.Run("stops after too many redirects", func(t *testing.T) {
		t.Parallel()

		hc := client.NewHTTPClient(nil)
		via := make([]*http.Request, maxRedirects)
		if err := hc.CheckRedirect(nil, via); !errors.Is(err, http.ErrUseLastResponse) {
			t.Errorf("expected ErrUseLastResponse, got %v", err)
		}
		if err := hc.CheckRedirect(nil, via[:1]); err != nil {
			t.Errorf("expected redirect to be followed, got %v", err)
		}
	})
}

// TestClientFactories tests the factories used by sessions.
func TestClientFactories(t *testing.T) {
	t.Parallel()

	t.Run("socks5 factory rejects bad endpoints", func(t *testing.T) {
		t.Parallel()

		_, err := SOCKS5ClientFactory(time.Second)(model.ProxyEndpoint{Host: "h", SOCKSPort: "x"}, nil)
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})

	t.Run("direct factory builds a client with a jar", func(t *testing.T) {
		t.Parallel()

		hc, err := DirectClientFactory(time.Second)(model.ProxyEndpoint{}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if hc.Jar == nil {
			t.Error("expected a cookie jar")
		}
	})
}
