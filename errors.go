package dane

import "fmt"

// Kind identifies the category of a DANE error, mirroring the reason codes
// of the originating C library (DANE_R_*) so callers can branch on cause
// rather than parse error strings.
type Kind int

// Error kinds raised by the Store, Matcher, Synthesizer, and Verification
// Driver.
const (
	_ Kind = iota
	BadUsage
	BadSelector
	BadDigest
	BadDataLength
	BadNullData
	BadCert
	BadCertPKey
	BadPKey
	NoSignKey
	DaneSupport
	DaneInit
	SctxInit
	LibraryInitErr
	Alloc
	VerifyFailed
)

var kindStrings = map[Kind]string{
	BadUsage:       "bad TLSA usage",
	BadSelector:    "bad TLSA selector",
	BadDigest:      "bad TLSA matching type digest",
	BadDataLength:  "bad TLSA record digest length",
	BadNullData:    "bad TLSA record null data",
	BadCert:        "bad TLSA record certificate",
	BadCertPKey:    "bad TLSA record certificate public key",
	BadPKey:        "bad TLSA record public key",
	NoSignKey:      "certificate usage 2 requires an internal signing key",
	DaneSupport:    "DANE library features not supported on this platform",
	DaneInit:       "handle requires NewHandle() before use",
	SctxInit:       "tls.Config requires NewClientConfig() before use",
	LibraryInitErr: "LibraryInit() required",
	Alloc:          "internal invariant violation",
	VerifyFailed:   "peer certificate failed DANE/PKIX verification",
}

func (k Kind) String() string {
	if s, ok := kindStrings[k]; ok {
		return s
	}
	return "unknown DANE error"
}

// Error is the error type returned by every fallible operation in this
// package. Op names the function that detected the condition; Err, when
// non-nil, wraps an underlying cause (a parse error, an allocation failure).
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dane: %s: %s: %s", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("dane: %s: %s", e.Op, e.Kind)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
