package transport

import "errors"

// Proxy errors.
var (
	// ErrProxyAuthRejected is returned when the proxy refuses the credentials.
	ErrProxyAuthRejected = errors.New("proxy rejected credentials")

	// ErrProxyNotSOCKS5 is returned when the endpoint does not speak SOCKS5.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy can be made.
	ErrProxyCannotConnect = errors.New("cannot connect to proxy")

	// ErrProxyTimeout is returned when the proxy does not answer in time.
	ErrProxyTimeout = errors.New("timeout connecting to proxy")

	// ErrInvalidProxyAddress is returned when the host or SOCKS port is malformed.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrUnknownProxy is returned when a proxy id is not in the pool.
	ErrUnknownProxy = errors.New("unknown proxy")

	// ErrProxyInUse is returned when a proxy is already held by a live session.
	ErrProxyInUse = errors.New("proxy already in use")

	// ErrNoSpareProxy is returned when every other proxy is held by a live session.
	ErrNoSpareProxy = errors.New("no spare proxy available")
)

// ProxyStatus represents the result of checking a proxy endpoint.
type ProxyStatus int

const (
	// ProxyStatusOK indicates the proxy accepted our credentials.
	ProxyStatusOK ProxyStatus = iota

	// ProxyStatusWrongType indicates the endpoint answered but not as SOCKS5.
	ProxyStatusWrongType

	// ProxyStatusAuthRejected indicates the username/password pair was refused.
	ProxyStatusAuthRejected

	// ProxyStatusCannotConnect indicates we could not establish a connection.
	ProxyStatusCannotConnect

	// ProxyStatusTimeout indicates the connection attempt timed out.
	ProxyStatusTimeout
)

// String returns a human-readable description of the proxy status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not SOCKS5)"
	case ProxyStatusAuthRejected:
		return "credentials rejected"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the appropriate error for this status, or nil if OK.
func (s ProxyStatus) Error() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotSOCKS5
	case ProxyStatusAuthRejected:
		return ErrProxyAuthRejected
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
