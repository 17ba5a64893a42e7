package dane

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckNameRejectsBadCharset(t *testing.T) {
	_, ok := checkName("exämple.com")
	require.False(t, ok)
}

func TestCheckNameTrimsTrailingNUL(t *testing.T) {
	name, ok := checkName("example.com\x00")
	require.True(t, ok)
	require.Equal(t, "example.com", name)
}

func TestCheckNameRejectsEmbeddedNUL(t *testing.T) {
	_, ok := checkName("exa\x00mple.com")
	require.False(t, ok)
}

func TestMatchNameLiteral(t *testing.T) {
	require.True(t, matchName("example.com", hostPattern{value: "example.com"}, false))
	require.False(t, matchName("example.com", hostPattern{value: "other.com"}, false))
}

func TestMatchNameWildcardScopeRules(t *testing.T) {
	// *.a.b matches x.a.b but not a.b nor y.x.a.b (single-label wildcard mode).
	require.True(t, matchName("*.a.b", hostPattern{value: "x.a.b"}, false))
	require.False(t, matchName("*.a.b", hostPattern{value: "a.b"}, false))
	require.False(t, matchName("*.a.b", hostPattern{value: "y.x.a.b"}, false))
}

func TestMatchNameMultiLabelWildcard(t *testing.T) {
	require.True(t, matchName("*.a.b", hostPattern{value: "y.x.a.b"}, true))
	require.False(t, matchName("*.a.b", hostPattern{value: "a.b"}, true))
}

func TestMatchNameSubdomain(t *testing.T) {
	pat := hostPattern{subdomain: true, value: "example.com"}
	require.True(t, matchName("www.example.com", pat, false))
	require.False(t, matchName("example.com", pat, false))
	require.False(t, matchName("evilexample.com", pat, false))
}

func TestNameCheckPrefersSANOverCN(t *testing.T) {
	ca := newTestCA(t, "Test CA")
	leaf, _ := ca.issueLeaf(t, "ignored-cn.example.com", "leaf.example.com")

	store := newStore()
	store.hosts = append(store.hosts, parseHostPattern("leaf.example.com"))

	matched, err := nameCheck(store, leaf)
	require.NoError(t, err)
	require.True(t, matched)
	require.Equal(t, "leaf.example.com", store.mhost)
}

func TestNameCheckFallsBackToCNWhenSANHasNoDNSEntries(t *testing.T) {
	ca := newTestCA(t, "Test CA")

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:   big.NewInt(4),
		Subject:        pkix.Name{CommonName: "leaf.example.com"},
		EmailAddresses: []string{"admin@example.com"},
		NotBefore:      time.Now().Add(-time.Hour),
		NotAfter:       time.Now().Add(time.Hour * 24 * 90),
		KeyUsage:       x509.KeyUsageDigitalSignature,
		ExtKeyUsage:    []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.cert, &key.PublicKey, ca.key)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	require.Empty(t, leaf.DNSNames)
	require.NotEmpty(t, leaf.Extensions)

	store := newStore()
	store.hosts = append(store.hosts, parseHostPattern("leaf.example.com"))

	matched, err := nameCheck(store, leaf)
	require.NoError(t, err)
	require.True(t, matched)
	require.Equal(t, "leaf.example.com", store.mhost)
}

func TestNameCheckNoReferenceIdentitiesFails(t *testing.T) {
	ca := newTestCA(t, "Test CA")
	leaf, _ := ca.issueLeaf(t, "leaf.example.com", "leaf.example.com")

	store := newStore()
	matched, err := nameCheck(store, leaf)
	require.NoError(t, err)
	require.False(t, matched)
}
