package fetch

import (
	"math"
)

// Method is the closed set of HTTP methods a Request can carry.
type Method int

const (
	// MethodGet is the default method of a fresh Request.
	MethodGet Method = iota
	MethodPost
	MethodPut
)

func (m Method) String() string {
	switch m {
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	default:
		return "GET"
	}
}

const (
	// DefaultTimeoutSeconds bounds a fresh Request's transfer.
	DefaultTimeoutSeconds int64 = 30

	// MaxTimeoutSeconds is the engine's maximum representable timeout.
	// SetTimeout clamps larger values to it.
	MaxTimeoutSeconds int64 = math.MaxInt16
)

// Request describes one transfer declaratively. It accumulates configuration
// through its setters and is read, never written, by Client.Perform; the
// same Request can be performed any number of times.
//
// A Request is owned by a single goroutine until handed to Perform.
type Request struct {
	// URL is the transfer URL. It is not validated locally: a missing or
	// malformed URL fails the transfer and is reported in the Response.
	URL string

	// Method selects the HTTP method. Body is only relevant for
	// MethodPost and MethodPut.
	Method Method

	// Headers holds raw header lines in caller insertion order. Order is
	// preserved because it affects wire order.
	Headers []string

	// Body is the request body. It may contain arbitrary bytes, NUL
	// included; the engine is handed the exact length.
	Body []byte

	// TimeoutSeconds bounds the whole transfer. Zero or negative means no
	// timeout. Values above MaxTimeoutSeconds are clamped by SetTimeout.
	TimeoutSeconds int64

	// CABundlePath optionally points TLS verification at a PEM bundle.
	CABundlePath string

	// HTTP2 states a preference for HTTP/2 over TLS.
	HTTP2 bool

	// ProxyURL optionally routes the transfer through a proxy.
	ProxyURL string

	// FollowRedirects makes the transfer follow redirects instead of
	// reporting them in Response.RedirectURL.
	FollowRedirects bool

	// TCPFastOpen asks the engine to attempt TCP fast open.
	TCPFastOpen bool

	// ConnectTo optionally overrides connection establishment with a
	// single "HOST:PORT:CONNECT-HOST:CONNECT-PORT" entry, preserving the
	// original hostname for TLS server name indication.
	ConnectTo string
}

// NewRequest returns a GET request for rawurl with the default timeout.
func NewRequest(rawurl string) *Request {
	return &Request{
		URL:            rawurl,
		TimeoutSeconds: DefaultTimeoutSeconds,
	}
}

// SetMethod selects the HTTP method.
func (r *Request) SetMethod(m Method) *Request {
	r.Method = m
	return r
}

// AddHeader appends one raw header line, e.g. "Content-Type: text/plain".
func (r *Request) AddHeader(line string) *Request {
	r.Headers = append(r.Headers, line)
	return r
}

// SetBody sets the request body bytes.
func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}

// SetTimeout sets the transfer timeout in seconds. Negative values collapse
// to zero (no timeout) and values above MaxTimeoutSeconds are clamped.
func (r *Request) SetTimeout(seconds int64) *Request {
	switch {
	case seconds < 0:
		r.TimeoutSeconds = 0
	case seconds > MaxTimeoutSeconds:
		r.TimeoutSeconds = MaxTimeoutSeconds
	default:
		r.TimeoutSeconds = seconds
	}
	return r
}

// SetCABundlePath points TLS verification at the given PEM bundle.
func (r *Request) SetCABundlePath(path string) *Request {
	r.CABundlePath = path
	return r
}

// EnableHTTP2 states a preference for HTTP/2 over TLS.
func (r *Request) EnableHTTP2() *Request {
	r.HTTP2 = true
	return r
}

// SetProxyURL routes the transfer through the given proxy.
func (r *Request) SetProxyURL(rawurl string) *Request {
	r.ProxyURL = rawurl
	return r
}

// EnableFollowRedirects makes the transfer follow redirects.
func (r *Request) EnableFollowRedirects() *Request {
	r.FollowRedirects = true
	return r
}

// EnableTCPFastOpen asks the engine to attempt TCP fast open.
func (r *Request) EnableTCPFastOpen() *Request {
	r.TCPFastOpen = true
	return r
}

// SetConnectTo installs a "HOST:PORT:CONNECT-HOST:CONNECT-PORT" override.
func (r *Request) SetConnectTo(entry string) *Request {
	r.ConnectTo = entry
	return r
}
