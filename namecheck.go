package dane

import (
	"crypto/x509"
	"strings"
)

// nameCheck applies the reference identities stored on store against the
// leaf's subjectAltName DNS entries (falling back to the commonName only
// when the certificate has no dNSName SAN entry at all), implementing §4.3.
// On success it records the matched candidate as store.mhost and returns
// true.
func nameCheck(store *Store, cert *x509.Certificate) (bool, error) {
	if len(store.hosts) == 0 {
		return false, nil
	}

	candidates, err := certIDs(cert)
	if err != nil {
		return false, err
	}

	for _, id := range candidates {
		for _, pat := range store.hosts {
			if matchName(id, pat, store.multiLabelWildcard) {
				store.mhost = id
				return true, nil
			}
		}
	}
	return false, nil
}

// certIDs extracts the candidate identifiers from a leaf certificate: every
// DNS-type subjectAltName entry when the certificate carries at least one,
// or else the commonName alone. A SAN extension holding only non-DNS names
// (an rfc822Name or iPAddress entry, say) does not suppress the CN fallback:
// only an actual dNSName entry does.
func certIDs(cert *x509.Certificate) ([]string, error) {
	if hasDNSSAN(cert) {
		ids := make([]string, 0, len(cert.DNSNames))
		for _, name := range cert.DNSNames {
			id, ok := checkName(name)
			if ok {
				ids = append(ids, id)
			}
		}
		return ids, nil
	}
	if cert.Subject.CommonName == "" {
		return nil, nil
	}
	id, ok := checkName(cert.Subject.CommonName)
	if !ok {
		return nil, nil
	}
	return []string{id}, nil
}

func hasDNSSAN(cert *x509.Certificate) bool {
	return len(cert.DNSNames) > 0
}

// checkName validates a candidate identifier string: every byte must be LDH
// ('-', digits, letters), '.', or '*'; trailing NULs are trimmed; an embedded
// NUL rejects the name outright. Returns the trimmed name and whether it is
// usable.
func checkName(name string) (string, bool) {
	name = strings.TrimRight(name, "\x00")
	if strings.IndexByte(name, 0) >= 0 {
		return "", false
	}
	if name == "" {
		return "", false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '.', c == '*':
		default:
			return "", false
		}
	}
	return name, true
}

// matchName tests one already-validated certid against one reference host
// pattern, implementing the literal/wildcard/subdomain rules of §4.3.
func matchName(certid string, pat hostPattern, multiLabelWildcard bool) bool {
	if pat.subdomain {
		return matchSubdomain(certid, pat.value)
	}

	if strings.EqualFold(certid, pat.value) {
		return true
	}

	if !strings.HasPrefix(certid, "*.") {
		return false
	}
	certSuffix := certid[2:]

	if multiLabelWildcard {
		return matchWildcardSuffix(certSuffix, pat.value)
	}

	refDot := strings.IndexByte(pat.value, '.')
	if refDot < 0 {
		return false
	}
	refSuffix := pat.value[refDot+1:]
	return strings.EqualFold(certSuffix, refSuffix)
}

// matchWildcardSuffix aligns a wildcard's suffix against the reference by
// trailing-label comparison, allowing the wildcard to stand in for more than
// one leftmost label of the reference.
func matchWildcardSuffix(certSuffix, ref string) bool {
	if len(certSuffix) > len(ref) {
		return false
	}
	if !strings.EqualFold(certSuffix, ref[len(ref)-len(certSuffix):]) {
		return false
	}
	if len(certSuffix) == len(ref) {
		return false // wildcard must stand in for at least one label
	}
	return ref[len(ref)-len(certSuffix)-1] == '.'
}

// matchSubdomain requires certid to be one or more labels under ref, i.e.
// strictly longer than ref and dot-joined to it, per ".example.com" meaning
// "any proper subdomain of example.com".
func matchSubdomain(certid, ref string) bool {
	if len(certid) <= len(ref)+1 {
		return false
	}
	if !strings.EqualFold(certid[len(certid)-len(ref):], ref) {
		return false
	}
	return certid[len(certid)-len(ref)-1] == '.'
}
