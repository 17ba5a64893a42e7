package dane

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetHTTPClientDaneEEFullCertMatch(t *testing.T) {
	_, err := LibraryInit()
	require.NoError(t, err)

	ca := newTestCA(t, "Test CA")
	leaf, leafKey := ca.issueLeaf(t, "example.com", "example.com")

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	srv.TLS = &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{leaf.Raw}, PrivateKey: leafKey}},
	}
	srv.StartTLS()
	defer srv.Close()

	handle := NewHandle("example.com", "example.com")
	require.NoError(t, handle.AddTLSA(DaneEE, SelectorCert, "", leaf.Raw))

	client := GetHTTPClient(handle)
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
}

func TestGetHTTPClientRejectsUnmatchedCert(t *testing.T) {
	_, err := LibraryInit()
	require.NoError(t, err)

	ca := newTestCA(t, "Test CA")
	leaf, leafKey := ca.issueLeaf(t, "example.com", "example.com")
	other, _ := ca.issueLeaf(t, "other.example.com", "other.example.com")

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	srv.TLS = &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{leaf.Raw}, PrivateKey: leafKey}},
	}
	srv.StartTLS()
	defer srv.Close()

	handle := NewHandle("example.com", "example.com")
	require.NoError(t, handle.AddTLSA(DaneEE, SelectorCert, "", other.Raw))

	client := GetHTTPClient(handle)
	_, err = client.Get(srv.URL)
	require.Error(t, err)
}
