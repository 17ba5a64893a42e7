package dane

import "crypto/x509"

// MatchKind is the result of matching a candidate certificate against a
// usage's TLSA selectors (§4.2): whether nothing matched, or whether the
// winning association was over the full certificate or over its public key
// alone. The distinction drives the Trust-Anchor Synthesizer's choice
// between wrapCert and wrapKey.
type MatchKind int

const (
	NoMatch MatchKind = iota
	MatchedCert
	MatchedPKey
	MatchError
)

func (k MatchKind) String() string {
	switch k {
	case NoMatch:
		return "no match"
	case MatchedCert:
		return "matched certificate"
	case MatchedPKey:
		return "matched public key"
	default:
		return "match error"
	}
}

// match tests cert against the selector-grouped records of a single usage,
// encoding the certificate (or its SPKI) once per selector and testing every
// matching type registered under that selector, per §4.2. depth is not used:
// it has no bearing on the verdict, and match emits no log records.
func match(u *usageRecords, cert *x509.Certificate, depth int) MatchKind {
	if u == nil {
		return NoMatch
	}
	if !u.cert.empty() && u.cert.matches(cert.Raw) {
		return MatchedCert
	}
	if !u.spki.empty() && u.spki.matches(cert.RawSubjectPublicKeyInfo) {
		return MatchedPKey
	}
	return NoMatch
}
