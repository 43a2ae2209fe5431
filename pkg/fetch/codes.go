package fetch

import (
	"errors"
	"fmt"
)

// Code classifies the transport-level outcome of a transfer. The zero value
// means the engine reported no transport error; the response may still carry
// an HTTP-level failure in its status code.
type Code int64

const (
	// CodeOK is the zero value. It never indicates HTTP-level success on
	// its own, only the absence of a transport error.
	CodeOK Code = iota

	// CodeOutOfMemory reports a failed handle or header-list allocation.
	CodeOutOfMemory

	// CodeBadURL reports an URL the engine could not parse or use.
	CodeBadURL

	// CodeResolveFailed reports a DNS resolution failure.
	CodeResolveFailed

	// CodeConnectFailed reports a TCP connection failure.
	CodeConnectFailed

	// CodeTLSHandshakeFailed reports a failed TLS handshake.
	CodeTLSHandshakeFailed

	// CodePeerVerifyFailed reports a certificate that did not verify
	// against the configured CA bundle.
	CodePeerVerifyFailed

	// CodeCABundleFailed reports a CA bundle that could not be loaded.
	CodeCABundleFailed

	// CodeProxyFailed reports a proxy that could not be used.
	CodeProxyFailed

	// CodeTimedOut reports that the configured timeout expired.
	CodeTimedOut

	// CodeAbortedByCallback reports a transfer aborted because the body
	// sink consumed fewer bytes than it was given.
	CodeAbortedByCallback

	// CodeUnsupported reports an option the engine cannot honor.
	CodeUnsupported

	// CodeTransferFailed is the catch-all for engine failures that do not
	// map to a more specific code.
	CodeTransferFailed
)

var _codeNames = map[Code]string{
	CodeOK:                 "ok",
	CodeOutOfMemory:        "out_of_memory",
	CodeBadURL:             "bad_url",
	CodeResolveFailed:      "resolve_failed",
	CodeConnectFailed:      "connect_failed",
	CodeTLSHandshakeFailed: "tls_handshake_failed",
	CodePeerVerifyFailed:   "peer_verify_failed",
	CodeCABundleFailed:     "ca_bundle_failed",
	CodeProxyFailed:        "proxy_failed",
	CodeTimedOut:           "timed_out",
	CodeAbortedByCallback:  "aborted_by_callback",
	CodeUnsupported:        "unsupported",
	CodeTransferFailed:     "transfer_failed",
}

func (c Code) String() string {
	if s, ok := _codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int64(c))
}

// Error is the error type returned by engine implementations. It carries the
// transfer code that Perform stores into the response record.
type Error struct {
	// Code is the transfer code this error maps to.
	Code Code

	// Op names the engine operation that failed.
	Op string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the transfer code carried by err. A nil error maps to
// CodeOK and an error with no embedded *Error maps to CodeTransferFailed.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	return CodeTransferFailed
}
