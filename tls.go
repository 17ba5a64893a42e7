package dane

import (
	"crypto/tls"
	"net"
	"time"
)

// TLShandshake takes a network connection and a TLS Config structure,
// negotiates TLS on the connection and returns a TLS connection on
// success. It sets error to non-nil on failure.
func TLShandshake(conn net.Conn, config *tls.Config) (*tls.Conn, error) {

	tlsconn := tls.Client(conn, config)
	err := tlsconn.Handshake()
	return tlsconn, err
}

// DialTLS builds a *tls.Config from handle via NewClientConfig, connects to
// opts.Server, and negotiates TLS directly (no STARTTLS preamble). The
// error return parameter is nil on success, and appropriately populated
// if not.
func DialTLS(handle *Handle, opts *DialOptions, base *tls.Config) (*tls.Conn, error) {

	config := NewClientConfig(handle, base)
	dialer := getDialer(opts.TimeoutTCP)
	conn, err := tls.DialWithDialer(dialer, "tcp", opts.Server.Address(), config)
	return conn, err
}

// getDialer returns a net.Dialer with its connect timeout set to timeout
// seconds.
func getDialer(timeout int) *net.Dialer {
	return &net.Dialer{Timeout: time.Second * time.Duration(timeout)}
}

// DialStartTLS builds a *tls.Config from handle via NewClientConfig,
// connects to opts.Server, speaks the necessary application protocol
// preamble to activate STARTTLS, then negotiates TLS and returns the TLS
// connection. The error return parameter is nil on success, and
// appropriately populated if not.
func DialStartTLS(handle *Handle, opts *DialOptions, base *tls.Config) (*tls.Conn, error) {

	config := NewClientConfig(handle, base)
	conn, err := StartTLS(config, opts, handle.logEntry())
	return conn, err
}
