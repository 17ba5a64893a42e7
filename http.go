package dane

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
)

// GetHTTPClient returns a net/http Client structure configured to perform
// DANE (and, when the handle's Store carries no usage-2/3 records,
// ordinary PKIX) authentication of the HTTPS server reachable through
// handle. The TLSA records and reference identities must already be
// populated on handle via AddTLSA/AddTLSAFromRR before any request is
// made; this package never fetches them.
func GetHTTPClient(handle *Handle) *http.Client {

	config := NewClientConfig(handle, nil)
	t := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &tls.Dialer{Config: config}
			return dialer.DialContext(ctx, network, addr)
		},
	}
	return &http.Client{Transport: t}
}
