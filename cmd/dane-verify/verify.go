package main

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	dane "github.com/ErwanLegrand/ssl-dane"
)

var (
	flagUsage       uint8
	flagSelector    uint8
	flagMtype       uint8
	flagCert        string
	flagCAFile      string
	flagService     string
	flagHostname    string
	flagPort        int
	flagPKIXCompare bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify [extra-names...]",
	Short: "Verify a server's certificate against one TLSA record built from --cert",
	RunE:  runVerify,
}

func init() {
	verifyCmd.Flags().Uint8Var(&flagUsage, "usage", dane.DaneEE, "TLSA usage (0=PKIX-TA 1=PKIX-EE 2=DANE-TA 3=DANE-EE)")
	verifyCmd.Flags().Uint8Var(&flagSelector, "selector", dane.SelectorCert, "TLSA selector (0=full cert 1=SPKI)")
	verifyCmd.Flags().Uint8Var(&flagMtype, "mtype", 0, "TLSA matching type (0=full 1=SHA-256 2=SHA-512)")
	verifyCmd.Flags().StringVar(&flagCert, "cert", "", "PEM certificate file the TLSA record is built from (required)")
	verifyCmd.Flags().StringVar(&flagCAFile, "cafile", "", "PEM CA bundle consulted for traditional PKIX chain building")
	verifyCmd.Flags().StringVar(&flagService, "service", "", "STARTTLS application (\"\", smtp, imap, pop3, xmpp-client, xmpp-server)")
	verifyCmd.Flags().StringVar(&flagHostname, "hostname", "", "server hostname to dial and the primary reference identity (required)")
	verifyCmd.Flags().IntVar(&flagPort, "port", 443, "TCP port to dial")
	verifyCmd.Flags().BoolVar(&flagPKIXCompare, "pkix-compare", false, "also report whether a plain PKIX trust path (via --cafile) would have succeeded")
}

func runVerify(cmd *cobra.Command, args []string) error {
	if flagHostname == "" {
		return fmt.Errorf("--hostname is required")
	}
	if flagCert == "" {
		return fmt.Errorf("--cert is required")
	}

	cert, err := loadPEMCertificate(flagCert)
	if err != nil {
		return err
	}

	digestName, data, err := tlsaDataFor(flagSelector, flagMtype, cert)
	if err != nil {
		return err
	}

	if _, err := dane.LibraryInit(); err != nil {
		return fmt.Errorf("library init: %w", err)
	}

	referenceNames := append([]string{flagHostname}, args...)
	handle := dane.NewHandle(flagHostname, referenceNames...)
	if err := handle.AddTLSA(flagUsage, flagSelector, digestName, data); err != nil {
		return fmt.Errorf("adding TLSA record: %w", err)
	}

	var base *tls.Config
	if flagCAFile != "" {
		roots := x509.NewCertPool()
		pemBytes, err := os.ReadFile(flagCAFile)
		if err != nil {
			return fmt.Errorf("reading --cafile: %w", err)
		}
		if !roots.AppendCertsFromPEM(pemBytes) {
			return fmt.Errorf("no certificates parsed from --cafile")
		}
		base = &tls.Config{RootCAs: roots}
	}

	ips, err := net.LookupHost(flagHostname)
	if err != nil || len(ips) == 0 {
		return fmt.Errorf("resolving %s: %w", flagHostname, err)
	}

	server := dane.NewServer(flagHostname, ips[0], flagPort)
	opts := dane.NewDialOptions(server)
	opts.Appname = flagService
	opts.Servicename = flagService

	var conn *tls.Conn
	switch flagService {
	case "smtp", "imap", "pop3", "xmpp-client", "xmpp-server":
		conn, err = dane.DialStartTLS(handle, opts, base)
	default:
		conn, err = dane.DialTLS(handle, opts, base)
	}

	if err != nil {
		fmt.Printf("PKIX/DANE outcome: FAILED: %s\n", err)
		if verbose {
			if diagErr := handle.Diagnose(cert); diagErr != nil {
				fmt.Printf("Diagnostics:\n%s\n", diagErr)
			}
		}
		exitCode = 2
		return err
	}
	defer conn.Close()

	fmt.Printf("PKIX/DANE outcome: SUCCESS, matched hostname %q\n", handle.MatchedHostname())

	if flagPKIXCompare && base != nil {
		pkixOpts := x509.VerifyOptions{Roots: base.RootCAs}
		state := conn.ConnectionState()
		if len(state.PeerCertificates) > 0 {
			if _, pkixErr := state.PeerCertificates[0].Verify(pkixOpts); pkixErr == nil {
				fmt.Println("PKIX comparison: a plain trust path via --cafile also succeeds")
			} else {
				fmt.Printf("PKIX comparison: plain trust path via --cafile would have failed: %s\n", pkixErr)
			}
		}
	}

	return nil
}

func loadPEMCertificate(path string) (*x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate in %s: %w", path, err)
	}
	return cert, nil
}

func tlsaDataFor(selector, mtype uint8, cert *x509.Certificate) (digestName string, data []byte, err error) {
	switch mtype {
	case 0:
		if selector == dane.SelectorSPKI {
			return "", cert.RawSubjectPublicKeyInfo, nil
		}
		return "", cert.Raw, nil
	case 1, 2:
		hexHash, err := dane.ComputeTLSA(selector, mtype, cert)
		if err != nil {
			return "", nil, err
		}
		decoded, err := hex.DecodeString(hexHash)
		if err != nil {
			return "", nil, err
		}
		if mtype == 1 {
			return "sha256", decoded, nil
		}
		return "sha512", decoded, nil
	default:
		return "", nil, fmt.Errorf("unknown --mtype: %d", mtype)
	}
}
