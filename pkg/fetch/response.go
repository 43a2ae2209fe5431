package fetch

// Response accumulates the results and telemetry of one transfer. It is
// written incrementally while Perform runs and must be treated as read-only
// once returned; ownership transfers fully to the caller.
//
// Transport failure and HTTP failure are independent channels: Code reports
// the transport outcome, StatusCode the HTTP one. A 500 with Code zero is a
// successful transfer carrying an HTTP-level failure; check both.
type Response struct {
	// Code is the transport-level outcome. Zero means the engine reported
	// no transport error.
	Code Code

	// StatusCode is the HTTP status, or 0 if it was never obtained.
	StatusCode int

	// RedirectURL is the redirect target the server indicated, or "".
	RedirectURL string

	// Body is the accumulated response body.
	Body []byte

	// BytesSent and BytesRecv are running totals of wire bytes, header
	// and TLS-record bytes included where observable. They accumulate as
	// trace events arrive, not as one post-hoc measurement.
	BytesSent int64
	BytesRecv int64

	// Logs is the chronological transfer trace: timestamped,
	// newline-terminated lines. Header lines may carry arbitrary bytes;
	// never assume Logs is valid text.
	Logs []byte

	// RequestHeaders and ResponseHeaders are the raw wire-format header
	// blocks, request line and status line included.
	RequestHeaders  []byte
	ResponseHeaders []byte

	// CertificateChain concatenates the PEM certificates seen during the
	// TLS handshake. Non-certificate info entries reported by the engine
	// are retained as "# "-prefixed comment lines, which PEM parsers
	// skip.
	CertificateChain string

	// ContentType is the response Content-Type, or "" if unavailable.
	ContentType string

	// HTTPVersion is one of "HTTP/1.0", "HTTP/1.1", "HTTP/2", or "" when
	// the version is unknown.
	HTTPVersion string
}

// BodyString returns the body as a string.
func (r *Response) BodyString() string {
	return string(r.Body)
}

// LogsString returns the transfer trace as a string. The result is not
// guaranteed to be valid UTF-8.
func (r *Response) LogsString() string {
	return string(r.Logs)
}

// RequestHeadersString returns the outgoing header block as a string.
func (r *Response) RequestHeadersString() string {
	return string(r.RequestHeaders)
}

// ResponseHeadersString returns the incoming header block as a string.
func (r *Response) ResponseHeadersString() string {
	return string(r.ResponseHeaders)
}

// Succeeded reports whether the transfer completed without a transport
// error and with a 2xx status.
func (r *Response) Succeeded() bool {
	return r.Code == CodeOK && r.StatusCode >= 200 && r.StatusCode < 300
}
