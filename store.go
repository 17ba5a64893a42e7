package dane

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"strings"
)

// Certificate usage modes (RFC 6698 Section 2.1.1 / RFC 7671).
const (
	PkixTA = 0 // Usage 0: PKIX-TA, CA constraint
	PkixEE = 1 // Usage 1: PKIX-EE, service certificate constraint
	DaneTA = 2 // Usage 2: DANE-TA, trust anchor assertion
	DaneEE = 3 // Usage 3: DANE-EE, domain issued certificate
)

// Selector values (RFC 6698 Section 2.1.2).
const (
	SelectorCert = 0 // full certificate
	SelectorSPKI = 1 // SubjectPublicKeyInfo
)

type digestAlgo struct {
	name string
	size int
	sum  func([]byte) []byte
}

var digestAlgos = map[string]*digestAlgo{
	"sha256": {
		name: "sha256",
		size: sha256.Size,
		sum: func(b []byte) []byte {
			s := sha256.Sum256(b)
			return s[:]
		},
	},
	"sha512": {
		name: "sha512",
		size: sha512.Size,
		sum: func(b []byte) []byte {
			s := sha512.Sum512(b)
			return s[:]
		},
	},
}

func digestByName(name string) (*digestAlgo, error) {
	if name == "" {
		return nil, nil
	}
	alg, ok := digestAlgos[strings.ToLower(name)]
	if !ok {
		return nil, &unknownDigestError{name: name}
	}
	return alg, nil
}

type unknownDigestError struct{ name string }

func (e *unknownDigestError) Error() string {
	return "unrecognised TLSA matching type digest: " + e.name
}

// selectorRecords holds every TLSA association-data entry stored for one
// selector (cert or spki) under one usage: a set of full-data entries plus,
// per digest name, a set of digest-sized entries. Storing data in maps
// keyed by the raw bytes gives the store's required deduplication for free.
type selectorRecords struct {
	full    map[string][]byte
	digests map[string]map[string][]byte // digest name -> data key -> data
}

func newSelectorRecords() *selectorRecords {
	return &selectorRecords{
		full:    make(map[string][]byte),
		digests: make(map[string]map[string][]byte),
	}
}

func (sr *selectorRecords) add(alg *digestAlgo, data []byte) (added bool) {
	key := string(data)
	if alg == nil {
		if _, ok := sr.full[key]; ok {
			return false
		}
		sr.full[key] = data
		return true
	}
	bucket, ok := sr.digests[alg.name]
	if !ok {
		bucket = make(map[string][]byte)
		sr.digests[alg.name] = bucket
	}
	if _, ok := bucket[key]; ok {
		return false
	}
	bucket[key] = data
	return true
}

func (sr *selectorRecords) matches(der []byte) bool {
	if _, ok := sr.full[string(der)]; ok {
		return true
	}
	for name, bucket := range sr.digests {
		alg := digestAlgos[name]
		sum := alg.sum(der)
		if _, ok := bucket[string(sum)]; ok {
			return true
		}
	}
	return false
}

func (sr *selectorRecords) empty() bool {
	return sr == nil || (len(sr.full) == 0 && len(sr.digests) == 0)
}

// usageRecords groups the selector-level stores for one usage value.
type usageRecords struct {
	cert *selectorRecords
	spki *selectorRecords
}

func (u *usageRecords) empty() bool {
	return u == nil || (u.cert.empty() && u.spki.empty())
}

func (u *usageRecords) selector(sel uint8) *selectorRecords {
	if sel == SelectorSPKI {
		if u.spki == nil {
			u.spki = newSelectorRecords()
		}
		return u.spki
	}
	if u.cert == nil {
		u.cert = newSelectorRecords()
	}
	return u.cert
}

// Store is the per-connection TLSA record collection: four usage-indexed
// record groups, the bare certificates/keys retained for usage-2
// trust-anchor synthesis, the reference identity list, and the verification
// output slots populated by the trust-anchor synthesizer and name checker.
type Store struct {
	byUsage [4]usageRecords

	// taCerts/taKeys hold the parsed certificate or public key for every
	// usage-2, no-matching-type record, used by the Synthesizer's
	// ta-signed fallback (§4.4) when no issuer chain link is present in
	// the peer's untrusted chain.
	taCerts []*x509.Certificate
	taKeys  []any // crypto.PublicKey values parsed from bare-SPKI usage-2 records

	hosts              []hostPattern
	multiLabelWildcard bool

	thost string // TLSA base domain (first reference identity, conventionally)
	mhost string // matched host name, populated on successful name check

	synthesizedRoots []*x509.Certificate
	workingChain     []*x509.Certificate
	taDepth          int
}

func newStore() *Store {
	return &Store{taDepth: -1}
}

// hostPattern is a single parsed reference identity (§3, §4.3).
type hostPattern struct {
	subdomain bool   // true if the pattern began with '.'
	value     string // domain without the leading '.' when subdomain
}

func parseHostPattern(s string) hostPattern {
	if len(s) > 1 && s[0] == '.' {
		return hostPattern{subdomain: true, value: s[1:]}
	}
	return hostPattern{value: s}
}

// addTLSA validates and inserts one TLSA record, implementing §4.1. A
// duplicate (usage, selector, matching-type, data) tuple is a no-op success.
func (s *Store) addTLSA(usage, selector uint8, digestName string, data []byte) error {
	const op = "AddTLSA"

	if usage > DaneEE {
		return newError(op, BadUsage, nil)
	}
	if selector > SelectorSPKI {
		return newError(op, BadSelector, nil)
	}
	alg, err := digestByName(digestName)
	if err != nil {
		return newError(op, BadDigest, err)
	}
	if len(data) == 0 {
		return newError(op, BadNullData, nil)
	}
	if alg != nil && len(data) != alg.size {
		return newError(op, BadDataLength, nil)
	}

	var (
		parsedCert *x509.Certificate
		parsedKey  any
	)
	if usage == DaneTA && alg == nil {
		if librarySignKey() == nil {
			return newError(op, NoSignKey, nil)
		}
		switch selector {
		case SelectorCert:
			cert, err := x509.ParseCertificate(data)
			if err != nil {
				return newError(op, BadCert, err)
			}
			if _, err := x509.ParsePKIXPublicKey(cert.RawSubjectPublicKeyInfo); err != nil {
				return newError(op, BadCertPKey, err)
			}
			parsedCert = cert
		case SelectorSPKI:
			pk, err := x509.ParsePKIXPublicKey(data)
			if err != nil {
				return newError(op, BadPKey, err)
			}
			parsedKey = pk
		}
	}

	sr := s.byUsage[usage].selector(selector)
	added := sr.add(alg, data)
	if !added {
		return nil // duplicate: silently idempotent, per §4.1
	}

	if parsedCert != nil {
		s.taCerts = append(s.taCerts, parsedCert)
	}
	if parsedKey != nil {
		s.taKeys = append(s.taKeys, parsedKey)
	}
	return nil
}

// usageRecordsFor returns the record group for a usage, for read-only
// consultation by the Verification Driver and Chain Post-Hook.
func (s *Store) usageRecordsFor(usage uint8) *usageRecords {
	return &s.byUsage[usage]
}
