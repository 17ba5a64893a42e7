package dane

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func rawCertsOf(certs ...*x509.Certificate) [][]byte {
	raw := make([][]byte, len(certs))
	for i, c := range certs {
		raw[i] = c.Raw
	}
	return raw
}

func TestVerifyPeerDaneEEFullCertMatch(t *testing.T) {
	_, err := LibraryInit()
	require.NoError(t, err)

	ca := newTestCA(t, "Untrusted CA")
	leaf, _ := ca.issueLeaf(t, "leaf.example.com", "leaf.example.com")

	handle := NewHandle("leaf.example.com", "leaf.example.com")
	require.NoError(t, handle.AddTLSA(DaneEE, SelectorCert, "", leaf.Raw))

	state := &verificationState{store: handle.store, config: &tls.Config{}}
	err = state.verifyPeer(rawCertsOf(leaf))
	require.NoError(t, err)
}

func TestVerifyPeerDaneEESPKIMatchBypassesPKIX(t *testing.T) {
	_, err := LibraryInit()
	require.NoError(t, err)

	ca := newTestCA(t, "Untrusted CA")
	leaf, _ := ca.issueLeaf(t, "leaf.example.com", "leaf.example.com")

	hexHash, err := ComputeTLSA(SelectorSPKI, 1, leaf)
	require.NoError(t, err)

	handle := NewHandle("leaf.example.com", "leaf.example.com")
	data := decodeHexTLSA(t, hexHash)
	require.NoError(t, handle.AddTLSA(DaneEE, SelectorSPKI, "sha256", data))

	state := &verificationState{store: handle.store, config: &tls.Config{}}
	err = state.verifyPeer(rawCertsOf(leaf))
	require.NoError(t, err)
}

func TestVerifyPeerDaneEEMatchIgnoresHostnameMismatch(t *testing.T) {
	_, err := LibraryInit()
	require.NoError(t, err)

	ca := newTestCA(t, "Untrusted CA")
	leaf, _ := ca.issueLeaf(t, "leaf.example.com", "leaf.example.com")

	handle := NewHandle("other.example", "other.example")
	require.NoError(t, handle.AddTLSA(DaneEE, SelectorCert, "", leaf.Raw))

	state := &verificationState{store: handle.store, config: &tls.Config{}}
	err = state.verifyPeer(rawCertsOf(leaf))
	require.NoError(t, err)
}

func TestVerifyPeerDaneTASynthesizesTrustAnchor(t *testing.T) {
	_, err := LibraryInit()
	require.NoError(t, err)

	ca := newTestCA(t, "Untrusted CA")
	leaf, _ := ca.issueLeaf(t, "leaf.example.com", "leaf.example.com")

	handle := NewHandle("leaf.example.com", "leaf.example.com")
	require.NoError(t, handle.AddTLSA(DaneTA, SelectorCert, "", ca.cert.Raw))

	state := &verificationState{store: handle.store, config: &tls.Config{}}
	err = state.verifyPeer(rawCertsOf(leaf, ca.cert))
	require.NoError(t, err)
}

func TestVerifyPeerPKIXEEHostnameMismatch(t *testing.T) {
	_, err := LibraryInit()
	require.NoError(t, err)

	ca := newTestCA(t, "Untrusted CA")
	leaf, _ := ca.issueLeaf(t, "leaf.example.com", "leaf.example.com")

	hexHash, err := ComputeTLSA(SelectorCert, 1, leaf)
	require.NoError(t, err)

	handle := NewHandle("other.example", "other.example")
	data := decodeHexTLSA(t, hexHash)
	require.NoError(t, handle.AddTLSA(PkixEE, SelectorCert, "sha256", data))

	roots := x509.NewCertPool()
	roots.AddCert(ca.cert)
	state := &verificationState{store: handle.store, config: &tls.Config{RootCAs: roots}}
	err = state.verifyPeer(rawCertsOf(leaf))
	require.Error(t, err)
}

func decodeHexTLSA(t *testing.T, s string) []byte {
	t.Helper()
	data, err := hex.DecodeString(s)
	require.NoError(t, err)
	return data
}
