package dane

import "github.com/sirupsen/logrus"

// Handle is the per-connection DANE state: a TLSA Store plus the SNI name
// used to dial, analogous to dane_init/SSL_dane_init attaching an SSL_DANE
// structure to a connection.
type Handle struct {
	sniName string
	store   *Store

	// Logger receives structured diagnostics for this handle's verification
	// calls. Nil means the package default (logrus.StandardLogger()) is
	// used; this package never calls logrus.SetOutput or otherwise mutates
	// that default, following the corpus convention of injecting loggers
	// rather than reaching into a caller's global log configuration.
	Logger *logrus.Logger
}

// NewHandle attaches a fresh TLSA Store for one connection. referenceIdentities
// are the reference identities consulted by the Name Checker; by convention
// the first is also the TLSA base domain. sniName is used as the TLS
// ServerName unless the caller's *tls.Config already sets one.
func NewHandle(sniName string, referenceIdentities ...string) *Handle {
	store := newStore()
	for _, id := range referenceIdentities {
		store.hosts = append(store.hosts, parseHostPattern(id))
	}
	if len(referenceIdentities) > 0 {
		store.thost = referenceIdentities[0]
	}
	return &Handle{sniName: sniName, store: store}
}

// AddTLSA inserts one TLSA record into the handle's Store, analogous to
// add_tlsa/SSL_dane_add_tlsa. digestName == "" means "no matching type"
// (full data).
func (h *Handle) AddTLSA(usage, selector uint8, digestName string, data []byte) error {
	if h.store == nil {
		return newError("AddTLSA", DaneInit, nil)
	}
	return h.store.addTLSA(usage, selector, digestName, data)
}

// AddTLSAFromRR parses one DNS zone-file presentation-format TLSA record
// line and inserts it, per §4.1's AddTLSAFromRR supplement.
func (h *Handle) AddTLSAFromRR(rr string) error {
	if h.store == nil {
		return newError("AddTLSAFromRR", DaneInit, nil)
	}
	usage, selector, mtype, data, err := parseTLSARR(rr)
	if err != nil {
		return newError("AddTLSAFromRR", BadCert, err)
	}
	return h.store.addTLSA(usage, selector, mtype, data)
}

// SetMultiLabelWildcard enables the multi-label wildcard matching mode of
// §4.3, allowing a leading "*." to stand in for more than one reference
// label.
func (h *Handle) SetMultiLabelWildcard(value bool) {
	h.store.multiLabelWildcard = value
}

// MatchedHostname returns the certificate name (a dNSName SAN entry or the
// commonName) that the Name Checker last matched against a reference
// identity, or "" if no name check has succeeded. A DANE-EE match skips the
// name check and does not set it.
func (h *Handle) MatchedHostname() string {
	return h.store.mhost
}

// Cleanup idempotently releases the handle's Store. Ordinary Go GC ownership
// means this is optional hygiene rather than a correctness requirement; it
// exists so a *Handle can be reused for a second connection attempt with a
// clean Store, mirroring dane_final/dane_reset in the originating library.
func (h *Handle) Cleanup() {
	if h.store == nil {
		return
	}
	h.store = newStore()
}
