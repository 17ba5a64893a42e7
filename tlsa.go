package dane

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// TLSARecord is an immutable, already-decoded TLSA resource record, the
// external representation returned by GenerateTLSARecord and rendered by
// GenerateZoneLine, per the "TLSA Record" data model in §3.
type TLSARecord struct {
	Usage     uint8
	Selector  uint8
	MatchType uint8 // 0: full content, 1: SHA-256, 2: SHA-512
	Data      []byte
	OwnerName string // e.g. "_443._tcp.example.com."
}

func (r *TLSARecord) digestName() string {
	switch r.MatchType {
	case 1:
		return "sha256"
	case 2:
		return "sha512"
	default:
		return ""
	}
}

// ComputeTLSA calculates the TLSA association data for the given
// certificate under the given selector/matching-type, returning the hex
// encoded value, as used by the CLI demo's generate subcommand and by tests that
// need to construct fixtures.
func ComputeTLSA(selector, mtype uint8, cert *x509.Certificate) (string, error) {
	var preimage []byte

	switch selector {
	case SelectorCert:
		preimage = cert.Raw
	case SelectorSPKI:
		preimage = cert.RawSubjectPublicKeyInfo
	default:
		return "", fmt.Errorf("unknown TLSA selector: %d", selector)
	}

	var output []byte
	switch mtype {
	case 0:
		output = preimage
	case 1:
		sum := sha256.Sum256(preimage)
		output = sum[:]
	case 2:
		sum := sha512.Sum512(preimage)
		output = sum[:]
	default:
		return "", fmt.Errorf("unknown TLSA matching type: %d", mtype)
	}
	return hex.EncodeToString(output), nil
}

// parseTLSARR parses one DNS zone-file presentation-format TLSA record line
// using github.com/miekg/dns, performing no network I/O: the caller already
// has the record text in hand (a zone file, `dig` output, a test fixture).
func parseTLSARR(rr string) (usage, selector uint8, digestName string, data []byte, err error) {
	line := strings.TrimSpace(rr)
	if line == "" {
		return 0, 0, "", nil, fmt.Errorf("empty TLSA record line")
	}

	zp := dns.NewZoneParser(strings.NewReader(line), "", "")
	parsed, ok := zp.Next()
	if err := zp.Err(); err != nil {
		return 0, 0, "", nil, err
	}
	if !ok || parsed == nil {
		return 0, 0, "", nil, fmt.Errorf("could not parse TLSA record: %q", rr)
	}
	tlsa, ok := parsed.(*dns.TLSA)
	if !ok {
		return 0, 0, "", nil, fmt.Errorf("record is not a TLSA RR: %q", rr)
	}

	data, err = hex.DecodeString(tlsa.Certificate)
	if err != nil {
		return 0, 0, "", nil, fmt.Errorf("bad TLSA certificate association data: %w", err)
	}

	rec := &TLSARecord{
		Usage:     tlsa.Usage,
		Selector:  tlsa.Selector,
		MatchType: tlsa.MatchingType,
		Data:      data,
		OwnerName: tlsa.Hdr.Name,
	}
	return rec.Usage, rec.Selector, rec.digestName(), rec.Data, nil
}

// GenerateZoneLine renders rec back to DNS zone-file presentation format,
// the inverse of AddTLSAFromRR, for diagnostics and the CLI demo's
// generate subcommand.
func GenerateZoneLine(rec *TLSARecord) string {
	owner := rec.OwnerName
	if owner == "" {
		owner = "_443._tcp.example.com."
	}
	return fmt.Sprintf("%s IN TLSA %d %d %d %s",
		owner, rec.Usage, rec.Selector, rec.MatchType, hex.EncodeToString(rec.Data))
}

// GenerateTLSARecord computes a TLSARecord for cert under the given
// usage/selector/matching-type, the inverse helper used by the generate subcommand
// to go from a certificate file straight to a zone line.
func GenerateTLSARecord(cert *x509.Certificate, usage, selector, mtype uint8, ownerName string) (*TLSARecord, error) {
	hexData, err := ComputeTLSA(selector, mtype, cert)
	if err != nil {
		return nil, err
	}
	data, err := hex.DecodeString(hexData)
	if err != nil {
		return nil, err
	}
	return &TLSARecord{
		Usage:     usage,
		Selector:  selector,
		MatchType: mtype,
		Data:      data,
		OwnerName: ownerName,
	}, nil
}
