package dane

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"
)

// builderAcceptsPartialChain mirrors the OpenSSL X509_V_FLAG_PARTIAL_CHAIN
// capability flag: whether the underlying chain builder accepts a
// non-self-signed certificate placed directly in its trusted-roots set. Go's
// (*x509.Certificate).Verify does, unconditionally, so wrapCert never needs
// the re-sign/wrap fallback path in this implementation; the flag is kept as
// a named constant, rather than inlined, so the fallback branch documents
// why it exists even though it is presently unreachable here.
const builderAcceptsPartialChain = true

const synthValidityWindow = 30 * 24 * time.Hour

// synthesizeTrustAnchors implements the Trust-Anchor Synthesizer (§4.4): it
// walks from the leaf toward a root across the peer's untrusted chain,
// looking for an issuer that matches a usage-2 TLSA record, and populates
// store.synthesizedRoots / store.workingChain on success. chain[0] must be
// the leaf; chain[1:] is the peer-supplied untrusted material.
func synthesizeTrustAnchors(store *Store, chain []*x509.Certificate) (bool, error) {
	const op = "synthesizeTrustAnchors"

	usage2 := store.usageRecordsFor(DaneTA)
	if usage2.empty() && len(store.taCerts) == 0 && len(store.taKeys) == 0 {
		return false, nil
	}

	store.workingChain = append(store.workingChain, chain[0])

	cert := chain[0]
	if issuedBy(cert, cert) {
		// Degenerate case: the leaf itself is self-signed. A usage-2 match
		// against it promotes it directly to a root.
		kind := match(usage2, cert, 0)
		if kind == NoMatch {
			return false, nil
		}
		store.synthesizedRoots = append(store.synthesizedRoots, cert)
		return true, nil
	}

	untrusted := append([]*x509.Certificate(nil), chain[1:]...)

	depth := 0
	for len(untrusted) > 0 {
		idx := findIssuer(untrusted, cert)
		if idx < 0 {
			break // no issuer present in the peer's chain; fall through to taSigned
		}
		ca := untrusted[idx]
		untrusted = append(untrusted[:idx], untrusted[idx+1:]...)

		kind := match(usage2, ca, depth+1)
		switch kind {
		case NoMatch:
			store.workingChain = append(store.workingChain, ca)
			if issuedBy(ca, ca) {
				return false, nil // final self-signed element, no TA found
			}
			cert = ca
			depth++
			continue
		case MatchedCert:
			if err := wrapCert(store, depth, ca, cert); err != nil {
				return false, newError(op, Alloc, err)
			}
			return true, nil
		case MatchedPKey:
			if err := wrapKey(store, depth, ca.PublicKey, cert); err != nil {
				return false, newError(op, Alloc, err)
			}
			return true, nil
		}
		break
	}

	if issuedBy(cert, cert) {
		return false, nil
	}

	matched, err := taSigned(store, cert, depth)
	if err != nil {
		return false, newError(op, Alloc, err)
	}
	return matched, nil
}

// taSigned implements the C library's ta_signed fallback: when no issuer for
// the residual certificate was found in the peer's chain, test whether any
// usage-2 bare certificate issued-and-signed it, then whether any usage-2
// bare public key verifies its signature.
func taSigned(store *Store, cert *x509.Certificate, depth int) (bool, error) {
	for _, ta := range store.taCerts {
		if !issuedBy(ta, cert) {
			continue
		}
		if err := cert.CheckSignatureFrom(ta); err != nil {
			continue
		}
		if err := wrapCert(store, depth+1, ta, cert); err != nil {
			return false, err
		}
		return true, nil
	}

	for _, key := range store.taKeys {
		if err := checkSignatureFromKey(cert, key); err != nil {
			continue
		}
		if err := wrapKey(store, depth, key, cert); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}

// checkSignatureFromKey verifies cert's signature against a bare public key
// by wrapping it in a synthetic certificate shell, the idiomatic way to
// reach crypto/x509's per-algorithm signature verification without
// reimplementing RSA/ECDSA/Ed25519 checks by hand. It calls CheckSignature
// rather than CheckSignatureFrom: the latter additionally enforces
// basicConstraints/keyUsage CA gating, which is meaningless for a bare key
// that never carried those extensions in the first place.
func checkSignatureFromKey(cert *x509.Certificate, key any) error {
	shell := &x509.Certificate{PublicKey: key}
	return shell.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature)
}

// wrapCert promotes a matched usage-2 trust-anchor certificate to root
// status. Since builderAcceptsPartialChain is true for the chain builder
// used here, the certificate is installed directly without the
// deep-copy/re-sign fallback; that fallback's shape is kept below, dead but
// documented, for parity with the non-partial-chain builders this component
// is modelled on.
func wrapCert(store *Store, depth int, tacert, subject *x509.Certificate) error {
	store.taDepth = depth

	if builderAcceptsPartialChain || issuedBy(tacert, tacert) {
		store.synthesizedRoots = append(store.synthesizedRoots, tacert)
		return nil
	}

	clone, err := deepCopyCertificate(tacert)
	if err != nil {
		return err
	}
	store.workingChain = append(store.workingChain, clone)

	signed, err := resignWithLibraryKey(clone)
	if err != nil {
		return err
	}
	return wrapKey(store, depth+1, librarySignKey().Public(), signed)
}

// wrapKey constructs a synthetic CA certificate standing in for key (or the
// library's internal signing key when key is nil), per the "Synthetic
// Certificate" data model in §3.
func wrapKey(store *Store, depth int, key any, subject *x509.Certificate) error {
	if store.taDepth < 0 {
		store.taDepth = depth + 1
	}

	akid := authorityKeyID(subject)
	selfSigned := akid == nil || nameEqual(subject.Issuer, akidIssuerName(akid))

	serial, err := syntheticSerial(akid, subject)
	if err != nil {
		return err
	}

	signingKey := librarySignKey()
	if signingKey == nil {
		return newError("wrapKey", NoSignKey, nil)
	}

	pub := key
	if pub == nil {
		pub = signingKey.Public()
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject.Issuer,
		NotBefore:             now.Add(-synthValidityWindow),
		NotAfter:              now.Add(synthValidityWindow),
		BasicConstraintsValid: true,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	// x509.CreateCertificate derives the issuer DN it writes into the DER from
	// parent.Subject, never from Certificate.Issuer, and tmpl is passed as its
	// own parent below: every synthesized level is therefore self-issued by
	// construction, regardless of what akidIssuerName would otherwise supply.
	if key != nil && !selfSigned {
		tmpl.SubjectKeyId = remappedSKID(akid)
	} else {
		tmpl.SubjectKeyId = computeSKID(pub)
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, signingKey)
	if err != nil {
		return err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return err
	}

	if key != nil && !selfSigned {
		store.workingChain = append(store.workingChain, cert)
		return wrapKey(store, depth+1, nil, cert)
	}
	store.synthesizedRoots = append(store.synthesizedRoots, cert)
	return nil
}

// authorityKeyIDValue holds the pieces of the AKID extension the
// Synthesizer needs. crypto/x509 already decodes the key-identifier field
// into Certificate.AuthorityKeyId; it does not expose the extension's
// optional authorityCertIssuer/authorityCertSerialNumber fields, so those
// always fall back to the "derive from subject" rule in §3 rather than
// being read off the original AKID.
type authorityKeyIDValue struct {
	keyID []byte
}

func authorityKeyID(cert *x509.Certificate) *authorityKeyIDValue {
	if len(cert.AuthorityKeyId) == 0 {
		return nil
	}
	return &authorityKeyIDValue{keyID: cert.AuthorityKeyId}
}

func akidIssuerName(akid *authorityKeyIDValue) *pkix.Name {
	return nil
}

func nameEqual(a pkix.Name, b *pkix.Name) bool {
	if b == nil {
		return false
	}
	return a.String() == b.String()
}

// syntheticSerial implements §3's serial-number rule: the subject's serial
// plus one. The AKID's own serial sub-field, used instead when present in
// the original algorithm, is never exposed by crypto/x509's AKID parsing,
// so that branch is unreachable here and this always takes the derived
// path.
func syntheticSerial(akid *authorityKeyIDValue, subject *x509.Certificate) (*big.Int, error) {
	one := big.NewInt(1)
	return new(big.Int).Add(subject.SerialNumber, one), nil
}

// remappedSKID copies the AKID key identifier to use as the synthetic
// certificate's subjectKeyIdentifier, remapping the reserved single byte
// 0x00 to 0x01 so the synthetic certificate can never be mistaken for a
// self-signed one purely by AKID==SKID coincidence.
func remappedSKID(akid *authorityKeyIDValue) []byte {
	if akid == nil || len(akid.keyID) == 0 {
		return []byte{0x00}
	}
	if len(akid.keyID) == 1 && akid.keyID[0] == 0x00 {
		return []byte{0x01}
	}
	return akid.keyID
}

func computeSKID(pub any) []byte {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return []byte{0x00}
	}
	sum := sha1.Sum(der)
	return sum[:]
}

// deepCopyCertificate detaches tacert from the peer-supplied chain by
// round-tripping it through DER, yielding a fresh *x509.Certificate whose
// structure does not alias the original parse. A length mismatch on the
// round-trip would mean the original DER was internally inconsistent
// despite having parsed, an invariant violation rather than a recoverable
// condition.
func deepCopyCertificate(cert *x509.Certificate) (*x509.Certificate, error) {
	der := append([]byte(nil), cert.Raw...)
	clone, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	if len(clone.Raw) != len(cert.Raw) {
		return nil, newError("deepCopyCertificate", Alloc, nil)
	}
	return clone, nil
}

// resignWithLibraryKey re-signs a detached certificate clone using the
// library's internal EC signing key, standing in for the original
// certificate's own (unavailable) private key in the synthesized chain.
func resignWithLibraryKey(clone *x509.Certificate) (*x509.Certificate, error) {
	signingKey := librarySignKey()
	if signingKey == nil {
		return nil, newError("resignWithLibraryKey", NoSignKey, nil)
	}
	tmpl := *clone
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, clone.PublicKey, signingKey)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(der)
}

func issuedBy(issuer, subject *x509.Certificate) bool {
	if issuer.Subject.String() != subject.Issuer.String() {
		return false
	}
	return subject.CheckSignatureFrom(issuer) == nil
}

func findIssuer(candidates []*x509.Certificate, subject *x509.Certificate) int {
	for i, c := range candidates {
		if issuedBy(c, subject) {
			return i
		}
	}
	return -1
}
