package dane

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/sirupsen/logrus"
)

// verificationState is the per-handshake closure state consulted by the
// Verification Driver and Chain Post-Hook. It is created fresh for every
// VerifyPeerCertificate call and never escapes, implementing the "callback
// indirection via closures, never global function pointers" design note:
// crypto/tls's VerifyPeerCertificate hook is itself the strategy-swap point,
// so there is no separate function-pointer table to mutate.
type verificationState struct {
	store  *Store
	config *tls.Config
	log    *logrus.Entry
}

// NewClientConfig installs the Verification Driver on a clone of base,
// analogous to ctx_init/SSL_CTX_dane_init wiring a cert_verify_callback onto
// a context. base.ServerName is set from the Handle's SNI if base doesn't
// already carry one.
func NewClientConfig(handle *Handle, base *tls.Config) *tls.Config {
	var config *tls.Config
	if base != nil {
		config = base.Clone()
	} else {
		config = new(tls.Config)
	}
	if config.ServerName == "" {
		config.ServerName = handle.sniName
	}
	config.InsecureSkipVerify = true

	config.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		state := &verificationState{store: handle.store, config: config, log: handle.logEntry()}
		return state.verifyPeer(rawCerts)
	}
	return config
}

// verifyPeer is the Verification Driver (§4.5): it implements the DANE-EE
// fast path, Trust-Anchor synthesis for DANE-TA, delegation to the
// underlying PKIX chain builder, and the Chain Post-Hook.
func (vs *verificationState) verifyPeer(rawCerts [][]byte) error {
	const op = "verifyPeer"

	store, config := vs.store, vs.config
	if store == nil {
		return newError(op, DaneInit, nil)
	}
	log := vs.log
	if log == nil {
		log = logrus.NewEntry(defaultLogger)
	}

	chain := make([]*x509.Certificate, len(rawCerts))
	for i, der := range rawCerts {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return newError(op, BadCert, err)
		}
		chain[i] = cert
	}
	if len(chain) == 0 {
		return newError(op, BadCert, fmt.Errorf("no certificates presented"))
	}
	leaf := chain[0]

	usage3 := store.usageRecordsFor(DaneEE)
	if !usage3.empty() {
		if match(usage3, leaf, 0) != NoMatch {
			log.WithField("usage", DaneEE).Info("DANE-EE match, bypassing PKIX")
			// DANE-EE short-circuit: no PKIX validation, and no name check
			// either. Verification succeeds on the TLSA match alone.
			return nil
		}
		log.WithField("usage", DaneEE).Debug("no DANE-EE match on leaf")
	}

	opts := x509.VerifyOptions{
		DNSName:       "",
		Intermediates: x509.NewCertPool(),
	}
	for _, cert := range chain[1:] {
		opts.Intermediates.AddCert(cert)
	}
	opts.Roots = config.RootCAs

	usage2 := store.usageRecordsFor(DaneTA)
	if !usage2.empty() || len(store.taCerts) > 0 || len(store.taKeys) > 0 {
		matched, err := synthesizeTrustAnchors(store, chain)
		if err != nil {
			return newError(op, VerifyFailed, err)
		}
		if matched {
			log.WithField("usage", DaneTA).Info("trust anchor synthesized from DANE-TA record")
			roots := x509.NewCertPool()
			for _, root := range store.synthesizedRoots {
				roots.AddCert(root)
			}
			opts.Roots = roots

			opts.Intermediates = x509.NewCertPool()
			for _, cert := range store.workingChain[1:] {
				opts.Intermediates.AddCert(cert)
			}
		}
	}

	verifiedChains, err := leaf.Verify(opts)
	if err != nil {
		log.WithError(err).Warn("PKIX chain build failed")
		return newError(op, VerifyFailed, err)
	}
	log.Debug("PKIX chain build succeeded, running chain post-hook")

	return chainPostHook(store, leaf, verifiedChains, log)
}

// chainPostHook implements §4.6: once the underlying builder has produced a
// candidate chain, enforce usage-0/1 constraints (unless a usage-2 trust
// anchor was already installed, matching the C driver's "unless we've
// already matched a trust anchor" rule) and the Name Checker.
func chainPostHook(store *Store, leaf *x509.Certificate, verifiedChains [][]*x509.Certificate, log *logrus.Entry) error {
	const op = "chainPostHook"

	usage0 := store.usageRecordsFor(PkixTA)
	usage1 := store.usageRecordsFor(PkixEE)

	if len(store.synthesizedRoots) == 0 && (!usage0.empty() || !usage1.empty()) {
		satisfied := false
		if !usage1.empty() && match(usage1, leaf, 0) != NoMatch {
			satisfied = true
		}
		if !satisfied && !usage0.empty() {
			for _, chain := range verifiedChains {
				for depth := len(chain) - 1; depth >= 1; depth-- {
					if match(usage0, chain[depth], depth) != NoMatch {
						satisfied = true
						break
					}
				}
				if satisfied {
					break
				}
			}
		}
		if !satisfied {
			log.Warn("no usage-0/1 record matched the built chain")
			return newError(op, VerifyFailed, fmt.Errorf("certificate untrusted"))
		}
	}

	matched, err := nameCheck(store, leaf)
	if err != nil {
		return newError(op, BadCert, err)
	}
	if !matched {
		log.Warn("name check failed on verified chain")
		return newError(op, VerifyFailed, fmt.Errorf("hostname mismatch"))
	}
	return nil
}
