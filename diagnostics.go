package dane

import (
	"crypto/x509"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DiagnoseTLSA matches cert against the stored records of each usage in turn
// and aggregates one "no match" error for every usage whose records all miss,
// for the CLI demo's verbose mode. Usages with no records, and usages with a
// matching record, add nothing; individual records are not reported
// separately. This is deliberately separate from the Verification Driver's
// hot path, which always returns the first decisive error (§7).
func DiagnoseTLSA(store *Store, cert *x509.Certificate) error {
	var result *multierror.Error

	for usage := uint8(0); usage <= DaneEE; usage++ {
		u := store.usageRecordsFor(usage)
		if u.empty() {
			continue
		}
		if match(u, cert, 0) == NoMatch {
			result = multierror.Append(result, fmt.Errorf("usage %d: no match against presented certificate", usage))
		}
	}

	if result == nil {
		return nil
	}
	return result.ErrorOrNil()
}

// Diagnose is the Handle-facing entry point for DiagnoseTLSA, used by the
// CLI demo's verbose mode after a connection attempt.
func (h *Handle) Diagnose(cert *x509.Certificate) error {
	return DiagnoseTLSA(h.store, cert)
}
