// Package httpengine binds the fetch delegate contract to net/http. Each
// handle owns a private transport and connection, configured from the
// applied options and discarded with the handle; there is no pooling or
// reuse across transfers.
//
// The HTTP/2 preference applies to TLS connections only (ALPN); plaintext
// h2c is not attempted.
package httpengine

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/luizaranda/go-fetch/pkg/fetch"
)

// Engine creates net/http-backed transfer handles. The zero value is ready
// to use and safe for concurrent use.
type Engine struct{}

// New returns an Engine.
func New() *Engine {
	return &Engine{}
}

// NewHandle acquires a fresh transfer handle.
func (e *Engine) NewHandle() (fetch.Handle, error) {
	return &handle{}, nil
}

// connectOverride is one parsed "HOST:PORT:CONNECT-HOST:CONNECT-PORT"
// entry. Empty fields are wildcards, matching any host or port and leaving
// the corresponding half of the address untouched.
type connectOverride struct {
	host   string
	port   string
	toHost string
	toPort string
}

type handle struct {
	headers      []string
	useHeaders   bool
	override     *connectOverride
	fastOpen     bool
	caPath       string
	http2        bool
	body         []byte
	post         bool
	methodVerb   string
	rawurl       string
	sink         fetch.BodySinkFunc
	noSignal     bool
	timeout      time.Duration
	traceFn      fetch.TraceFunc
	verbose      bool
	proxy        *url.URL
	follow       bool
	captureCerts bool

	// Result metadata, populated by Perform and read by the info queries.
	status      int
	redirectURL string
	certs       [][]string
	contentType string
	version     string

	closers []func()

	// traceMu serializes trace delivery: the transport writes the request
	// body (and its lifecycle callbacks) on its own goroutine, while
	// response-side events originate on the goroutine running Perform.
	// traceOff stops delivery once Perform returns, so the caller never
	// sees a callback after Perform.
	traceMu  sync.Mutex
	traceOff bool
}

var _ fetch.Handle = (*handle)(nil)

func (h *handle) AppendHeader(line string) error {
	h.headers = append(h.headers, line)
	return nil
}

func (h *handle) SetConnectTo(entry string) error {
	parts := strings.Split(entry, ":")
	if len(parts) != 4 {
		return &fetch.Error{
			Code: fetch.CodeBadURL,
			Op:   "httpengine: set connect-to override",
		}
	}
	h.override = &connectOverride{
		host:   parts[0],
		port:   parts[1],
		toHost: parts[2],
		toPort: parts[3],
	}
	return nil
}

func (h *handle) EnableTCPFastOpen() error {
	h.fastOpen = true
	return nil
}

func (h *handle) SetCABundlePath(path string) error {
	h.caPath = path
	return nil
}

func (h *handle) EnableHTTP2() error {
	h.http2 = true
	return nil
}

func (h *handle) ApplyHeaders() error {
	h.useHeaders = true
	return nil
}

func (h *handle) SetBody(body []byte) error {
	h.body = body
	return nil
}

func (h *handle) EnablePost() error {
	h.post = true
	return nil
}

func (h *handle) SetCustomMethod(verb string) error {
	h.methodVerb = verb
	return nil
}

func (h *handle) SetURL(rawurl string) error {
	// Deliberately unvalidated: a malformed URL fails the transfer.
	h.rawurl = rawurl
	return nil
}

func (h *handle) SetBodySink(fn fetch.BodySinkFunc) error {
	h.sink = fn
	return nil
}

// DisableSignals is recorded but needs no engine work: the Go runtime owns
// signal handling and never installs per-transfer handlers, and the
// resolver is context-interruptible.
func (h *handle) DisableSignals() error {
	h.noSignal = true
	return nil
}

// SetTimeout clamps to the representable range so a descriptor that bypassed
// the setter's clamp cannot overflow the duration conversion.
func (h *handle) SetTimeout(seconds int64) error {
	switch {
	case seconds < 0:
		seconds = 0
	case seconds > fetch.MaxTimeoutSeconds:
		seconds = fetch.MaxTimeoutSeconds
	}
	h.timeout = time.Duration(seconds) * time.Second
	return nil
}

func (h *handle) SetTraceFunc(fn fetch.TraceFunc) error {
	h.traceFn = fn
	return nil
}

func (h *handle) EnableVerbose() error {
	h.verbose = true
	return nil
}

func (h *handle) SetProxyURL(rawurl string) error {
	u, err := url.Parse(rawurl)
	if err != nil {
		return &fetch.Error{
			Code: fetch.CodeProxyFailed,
			Op:   "httpengine: set proxy url",
			Err:  err,
		}
	}
	h.proxy = u
	return nil
}

func (h *handle) EnableFollowRedirects() error {
	h.follow = true
	return nil
}

func (h *handle) EnableCertChainCapture() error {
	h.captureCerts = true
	return nil
}

func (h *handle) StatusCode() (int, error) {
	return h.status, nil
}

func (h *handle) RedirectURL() (string, error) {
	return h.redirectURL, nil
}

func (h *handle) CertChain() ([][]string, error) {
	return h.certs, nil
}

func (h *handle) ContentType() (string, error) {
	return h.contentType, nil
}

func (h *handle) HTTPVersion() (string, error) {
	return h.version, nil
}

// Close releases everything the handle acquired during Perform. It is safe
// to call on every exit path, including before Perform ran.
func (h *handle) Close() {
	for _, fn := range h.closers {
		fn()
	}
	h.closers = nil
}

// emit delivers one trace event. Events only flow once verbose tracing was
// enabled, and delivery is serialized: the trace callback never runs
// concurrently with itself, no matter which transport goroutine produced
// the event.
func (h *handle) emit(kind fetch.TraceKind, data []byte) {
	if h.traceFn == nil || !h.verbose {
		return
	}
	h.traceMu.Lock()
	defer h.traceMu.Unlock()
	if h.traceOff {
		return
	}
	h.traceFn(fetch.TraceEvent{Kind: kind, Data: data})
}

// text emits an informational trace line.
func (h *handle) text(msg string) {
	h.emit(fetch.TraceText, []byte(msg))
}
