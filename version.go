//
// Package dane implements DANE (DNS-Based Authentication of Named Entities,
// RFC 6698/7671) certificate verification as a layer on top of the
// standard library's PKIX chain builder. It does not fetch TLSA records:
// callers obtain them however they see fit (a validating resolver, a zone
// file, operator configuration) and hand them to a Handle via AddTLSA or
// AddTLSAFromRR.
//
// LibraryInit must be called once, before the first Handle is used, to
// generate the process-wide signing key used by the Trust-Anchor
// Synthesizer for usage-2 (DANE-TA) records.
//
// A Handle holds the TLSA records and reference identities for a single
// connection. NewClientConfig installs the verification engine on a
// *tls.Config as a VerifyPeerCertificate callback; the resulting config
// can be used directly with crypto/tls, or via the DialTLS/DialStartTLS
// convenience wrappers, which additionally negotiate an application
// STARTTLS preamble for SMTP, POP3, IMAP, and XMPP when asked.
//
// Four certificate usage modes are supported, per RFC 7671: PKIX-TA (0),
// PKIX-EE (1), DANE-TA (2), and DANE-EE (3). A DANE-EE match bypasses PKIX
// validation entirely; a DANE-TA match causes a synthetic trust anchor to
// be manufactured so the underlying chain builder accepts an otherwise
// unrooted chain; PKIX-TA/PKIX-EE constrain which certificate in an
// already-PKIX-valid chain must match.
//
// GetHTTPClient returns a net/http.Client whose DialTLSContext performs
// DANE verification using a pre-populated Handle.
//

package dane

import "fmt"

// Version - current version number
var Version = VersionStruct{0, 1, 13}

// VersionStruct - version structure
type VersionStruct struct {
	Major, Minor, Patch int
}

// String representation of version
func (v VersionStruct) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
