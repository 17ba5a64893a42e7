package dane

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddTLSADuplicateIsIdempotent(t *testing.T) {
	_, err := LibraryInit()
	require.NoError(t, err)

	store := newStore()
	data := []byte("0123456789abcdef0123456789abcdef")
	require.NoError(t, store.addTLSA(DaneEE, SelectorSPKI, "sha256", data))
	require.NoError(t, store.addTLSA(DaneEE, SelectorSPKI, "sha256", data))

	sr := store.byUsage[DaneEE].spki
	require.Len(t, sr.digests["sha256"], 1)
}

func TestAddTLSABadUsage(t *testing.T) {
	store := newStore()
	err := store.addTLSA(4, SelectorCert, "", []byte{1, 2, 3})
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, BadUsage, derr.Kind)
}

func TestAddTLSABadSelector(t *testing.T) {
	store := newStore()
	err := store.addTLSA(DaneEE, 2, "", []byte{1, 2, 3})
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, BadSelector, derr.Kind)
}

func TestAddTLSABadDataLength(t *testing.T) {
	store := newStore()
	err := store.addTLSA(DaneEE, SelectorCert, "sha256", []byte{1, 2, 3})
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, BadDataLength, derr.Kind)
}

func TestAddTLSANullData(t *testing.T) {
	store := newStore()
	err := store.addTLSA(DaneEE, SelectorCert, "", nil)
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, BadNullData, derr.Kind)
}

func TestAddTLSAUsage2CertParsesAndRetainsTA(t *testing.T) {
	_, err := LibraryInit()
	require.NoError(t, err)

	ca := newTestCA(t, "Test CA")
	store := newStore()
	require.NoError(t, store.addTLSA(DaneTA, SelectorCert, "", ca.cert.Raw))
	require.Len(t, store.taCerts, 1)
}

func TestAddTLSAUsage2BadCert(t *testing.T) {
	_, err := LibraryInit()
	require.NoError(t, err)

	store := newStore()
	err = store.addTLSA(DaneTA, SelectorCert, "", []byte("not a certificate"))
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, BadCert, derr.Kind)
}

func TestAddTLSAUsage2BadPKey(t *testing.T) {
	_, err := LibraryInit()
	require.NoError(t, err)

	store := newStore()
	err = store.addTLSA(DaneTA, SelectorSPKI, "", []byte("not a public key"))
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, BadPKey, derr.Kind)
}

func TestParseHostPatternSubdomain(t *testing.T) {
	pat := parseHostPattern(".example.com")
	require.True(t, pat.subdomain)
	require.Equal(t, "example.com", pat.value)

	pat = parseHostPattern("example.com")
	require.False(t, pat.subdomain)
	require.Equal(t, "example.com", pat.value)
}
