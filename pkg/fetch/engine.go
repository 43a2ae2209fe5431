package fetch

import (
	"context"
)

// TraceKind identifies the kind of wire-trace event an engine reports.
type TraceKind int

const (
	// TraceText is an informational, human-readable engine message.
	TraceText TraceKind = iota

	// TraceHeaderOut carries raw outgoing header bytes, request line included.
	TraceHeaderOut

	// TraceHeaderIn carries raw incoming header bytes, status line included.
	TraceHeaderIn

	// TraceDataOut marks outgoing body data. Only the size is recorded.
	TraceDataOut

	// TraceDataIn marks incoming body data. Only the size is recorded.
	TraceDataIn

	// TraceTLSDataOut marks an outgoing TLS protocol record.
	TraceTLSDataOut

	// TraceTLSDataIn marks an incoming TLS protocol record.
	TraceTLSDataIn

	// TraceEnd marks the end of the transfer.
	TraceEnd
)

// TraceEvent is a single wire-trace notification. Data is only valid for the
// duration of the callback; implementations that retain it must copy.
type TraceEvent struct {
	Kind TraceKind
	Data []byte
}

// BodySinkFunc receives one chunk of response body bytes. It reports how many
// bytes it consumed; engines treat a short count as a hard abort signal for
// the whole transfer.
type BodySinkFunc func(chunk []byte) int

// TraceFunc receives wire-trace events while a transfer runs. Its return is
// intentionally absent: tracing never influences the transfer outcome.
type TraceFunc func(ev TraceEvent)

// Engine creates transfer handles. It is the seam between the Perform
// pipeline and the underlying transfer machinery: production code binds the
// net/http engine from the httpengine package, tests bind a fake.
//
// Implementations must be safe for concurrent use; every transfer gets its
// own Handle.
type Engine interface {
	// NewHandle acquires a fresh, unconfigured transfer handle.
	NewHandle() (Handle, error)
}

// Handle is one transfer session. A handle is configured through a sequence
// of option applications, performed exactly once, then queried for result
// metadata. Handles are not safe for concurrent use and must be closed by
// the caller on every path.
//
// Every option application and every info query returns an error carrying a
// Code; the Perform pipeline treats the first failure as fatal to the
// transfer attempt.
type Handle interface {
	// AppendHeader adds one raw header line to the handle's header list.
	// The list is not attached to the transfer until ApplyHeaders.
	AppendHeader(line string) error

	// SetConnectTo installs a single "HOST:PORT:CONNECT-HOST:CONNECT-PORT"
	// override entry: connections for HOST:PORT are made to the override
	// address while TLS keeps verifying the original hostname.
	SetConnectTo(entry string) error

	// EnableTCPFastOpen asks the engine to attempt TCP fast open.
	EnableTCPFastOpen() error

	// SetCABundlePath points TLS verification at the given PEM bundle
	// instead of the system roots.
	SetCABundlePath(path string) error

	// EnableHTTP2 states a preference for HTTP/2 over TLS.
	EnableHTTP2() error

	// ApplyHeaders attaches the accumulated header list to the transfer.
	ApplyHeaders() error

	// SetBody attaches the request body together with its exact byte
	// length, so arbitrary binary bodies transfer correctly.
	SetBody(body []byte) error

	// EnablePost marks the transfer as a POST.
	EnablePost() error

	// SetCustomMethod overrides the HTTP method verb.
	SetCustomMethod(verb string) error

	// SetURL sets the transfer URL. The URL is not validated here; a
	// malformed URL fails the transfer, not this call.
	SetURL(rawurl string) error

	// SetBodySink installs the response body callback.
	SetBodySink(fn BodySinkFunc) error

	// DisableSignals asks the engine not to deliver operating-system
	// signals while the transfer runs.
	DisableSignals() error

	// SetTimeout bounds the whole transfer, in seconds.
	SetTimeout(seconds int64) error

	// SetTraceFunc installs the wire-trace callback. Events are delivered
	// only while verbose tracing is enabled.
	SetTraceFunc(fn TraceFunc) error

	// EnableVerbose enables delivery of wire-trace events.
	EnableVerbose() error

	// SetProxyURL routes the transfer through the given proxy.
	SetProxyURL(rawurl string) error

	// EnableFollowRedirects makes the engine follow redirects instead of
	// reporting them.
	EnableFollowRedirects() error

	// EnableCertChainCapture asks the engine to retain certificate
	// information from the TLS handshake for CertChain.
	EnableCertChainCapture() error

	// Perform runs the transfer synchronously on the calling goroutine.
	// Callback invocations are serialized, never concurrent with each
	// other, and stop before Perform returns.
	Perform(ctx context.Context) error

	// StatusCode reports the HTTP status of the completed transfer.
	StatusCode() (int, error)

	// RedirectURL reports the redirect target the server indicated, or ""
	// if there was none (or redirects were followed to completion).
	RedirectURL() (string, error)

	// CertChain reports, per certificate seen during the handshake, an
	// ordered list of opaque "Key:Value" info strings. The "Cert" key
	// holds the PEM-encoded certificate.
	CertChain() ([][]string, error)

	// ContentType reports the response Content-Type, or "" if unavailable.
	ContentType() (string, error)

	// HTTPVersion reports the negotiated protocol version label, or "" if
	// unknown.
	HTTPVersion() (string, error)

	// Close releases the handle. It is safe to call on every exit path.
	Close()
}
