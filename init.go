package dane

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"sync"
	"sync/atomic"
)

// Support describes the result of LibraryInit: how much of the DANE feature
// set the running platform can provide.
type Support int

const (
	// NoSupport means the process-wide signing key could not be generated;
	// DANE verification must not be attempted.
	NoSupport Support = iota
	// PartialSupport means usage-3 (DANE-EE) and usage-0/1 (PKIX-TA/PKIX-EE)
	// work, but usage-2 (DANE-TA) records must be rejected because the
	// library has no internal signing key to manufacture synthetic trust
	// anchors with.
	PartialSupport
	// FullSupport means all four usage modes are available.
	FullSupport
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
	signKey     *ecdsa.PrivateKey
)

// LibraryInit generates the process-wide EC P-256 signing key used by the
// Trust-Anchor Synthesizer to manufacture synthetic certificates (§4.4).
// It is idempotent: every call after the first observes the same published
// key and returns the same Support value. Callers must invoke it once,
// before the first NewHandle/NewClientConfig call, exactly as
// SSL_dane_library_init() was required by the originating C library.
//
// The double-checked atomic flag below exists purely to skip the sync.Once
// machinery on the (overwhelmingly common) re-check path; it is not a
// substitute for the Once itself.
func LibraryInit() (Support, error) {
	if initialized.Load() {
		return currentSupport(), nil
	}

	var genErr error
	initOnce.Do(func() {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			genErr = err
			return
		}
		signKey = key
		initialized.Store(true)
	})

	if genErr != nil {
		return NoSupport, newError("LibraryInit", LibraryInitErr, genErr)
	}
	return currentSupport(), nil
}

func currentSupport() Support {
	if signKey != nil {
		return FullSupport
	}
	return PartialSupport
}

// librarySignKey returns the process-wide signing key, or nil if LibraryInit
// has not yet run (or failed). Callers that need usage-2 support must check
// for nil and surface NoSignKey.
func librarySignKey() *ecdsa.PrivateKey {
	return signKey
}
