package fetch

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/luizaranda/go-fetch/pkg/log"
	"github.com/luizaranda/go-fetch/pkg/telemetry"
)

const (
	_transferTimingMetric = "fetch.client.transfer.time"
	_bytesSentMetric      = "fetch.client.transfer.bytes_sent"
	_bytesRecvMetric      = "fetch.client.transfer.bytes_recv"
)

// Client drives transfers against an Engine. It is safe to use concurrently
// by multiple goroutines: every Perform call acquires its own handle and
// shares nothing with other calls.
type Client struct {
	engine Engine
	logger log.Logger
	tracer telemetry.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger installs an operational logger. It receives per-transfer debug
// entries and is independent of the trace accumulated in each Response.
//
// Default is a no-op logger.
func WithLogger(l log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTelemetry installs the metrics client that receives the per-transfer
// timing and byte counters. Without it, metrics go to whatever client the
// perform context carries, or are discarded.
func WithTelemetry(t telemetry.Client) ClientOption {
	return func(c *Client) {
		c.tracer = t
	}
}

// NewClient creates a Client over the given engine. Production code binds
// the httpengine implementation; tests usually bind a fake.
//
// A nil engine is a caller contract violation and panics.
func NewClient(engine Engine, opts ...ClientOption) *Client {
	if engine == nil {
		panic("fetch: NewClient requires a non-nil engine")
	}

	c := &Client{
		engine: engine,
		logger: log.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Perform runs one synchronous transfer described by req and returns its
// record. It never returns nil and never returns an error: every failure is
// encoded in the record's Code, with whatever fields were populated before
// the failure left untouched. HTTP-level failures (4xx/5xx) are not
// transport errors; check Code and StatusCode independently.
//
// The option sequence is strictly linear and first-failure-wins: once a
// step fails, no later step runs and no transfer occurs.
//
// req must be non-nil (panic otherwise) and is never mutated. ctx bounds
// the blocking call in addition to the request timeout.
func (c *Client) Perform(ctx context.Context, req *Request) *Response {
	if req == nil {
		panic("fetch: Perform requires a non-nil request")
	}

	start := time.Now()
	res := &Response{}
	rec := newRecorder(res)

	if c.tracer != nil {
		ctx = telemetry.Context(ctx, c.tracer)
	}

	ctx, span, transferID := newSpan(ctx, req)
	defer span.End()
	defer func() {
		recordResultAttributes(span, res)
		recordTransferMetrics(ctx, start, req, res)
	}()

	logger := c.logger.With(
		log.String("transfer_id", transferID),
		log.Stringer("method", req.Method),
		log.String("url", req.URL),
	)
	logger.Debug("transfer starting")

	// Allocation failures short-circuit exactly like option failures, but
	// always under the out-of-memory code.
	failAlloc := func(step string, err error) *Response {
		res.Code = CodeOutOfMemory
		rec.logLine("engine: " + step + " failed")
		logger.Debug("transfer failed", log.String("step", step), log.Err(err))
		return res
	}

	h, err := c.engine.NewHandle()
	if err != nil {
		return failAlloc("create handle", err)
	}
	defer h.Close()

	fail := func(step string, err error) *Response {
		res.Code = CodeOf(err)
		rec.logLine("engine: " + step + " failed")
		logger.Debug("transfer failed", log.String("step", step), log.Err(err))
		return res
	}

	for _, line := range req.Headers {
		if err := h.AppendHeader(line); err != nil {
			return failAlloc("append header", err)
		}
	}
	headerCount := len(req.Headers)

	if req.ConnectTo != "" {
		if err := h.SetConnectTo(req.ConnectTo); err != nil {
			return fail("set connect-to override", err)
		}
	}
	if req.TCPFastOpen {
		if err := h.EnableTCPFastOpen(); err != nil {
			return fail("enable tcp fast open", err)
		}
	}
	if req.CABundlePath != "" {
		if err := h.SetCABundlePath(req.CABundlePath); err != nil {
			return fail("set ca bundle path", err)
		}
	}
	if req.HTTP2 {
		if err := h.EnableHTTP2(); err != nil {
			return fail("enable http2", err)
		}
	}

	if req.Method == MethodPost || req.Method == MethodPut {
		// Suppress the 100-continue handshake; the body is already in
		// memory and going out in one piece.
		if err := h.AppendHeader("Expect:"); err != nil {
			return failAlloc("append header", err)
		}
		headerCount++

		if err := h.SetBody(req.Body); err != nil {
			return fail("set body", err)
		}
		if err := h.EnablePost(); err != nil {
			return fail("enable post", err)
		}
		if req.Method == MethodPut {
			if err := h.SetCustomMethod("PUT"); err != nil {
				return fail("set custom method", err)
			}
		}
	}

	if headerCount > 0 {
		if err := h.ApplyHeaders(); err != nil {
			return fail("apply headers", err)
		}
	}

	if err := h.SetURL(req.URL); err != nil {
		return fail("set url", err)
	}
	if err := h.SetBodySink(rec.body); err != nil {
		return fail("set body sink", err)
	}
	// This library runs embedded in processes that own their signal
	// handling; the engine must not install handlers of its own.
	if err := h.DisableSignals(); err != nil {
		return fail("disable signals", err)
	}
	if req.TimeoutSeconds > 0 {
		if err := h.SetTimeout(req.TimeoutSeconds); err != nil {
			return fail("set timeout", err)
		}
	}
	if err := h.SetTraceFunc(rec.trace); err != nil {
		return fail("set trace func", err)
	}
	if err := h.EnableVerbose(); err != nil {
		return fail("enable verbose", err)
	}
	if req.ProxyURL != "" {
		if err := h.SetProxyURL(req.ProxyURL); err != nil {
			return fail("set proxy url", err)
		}
	}
	if req.FollowRedirects {
		if err := h.EnableFollowRedirects(); err != nil {
			return fail("enable follow redirects", err)
		}
	}
	if err := h.EnableCertChainCapture(); err != nil {
		return fail("enable cert chain capture", err)
	}

	if err := h.Perform(ctx); err != nil {
		return fail("perform", err)
	}

	status, err := h.StatusCode()
	if err != nil {
		return fail("query status code", err)
	}
	res.StatusCode = status

	redirect, err := h.RedirectURL()
	if err != nil {
		return fail("query redirect url", err)
	}
	res.RedirectURL = redirect

	certs, err := h.CertChain()
	if err != nil {
		return fail("query cert chain", err)
	}
	res.CertificateChain = assembleCertChain(certs)

	contentType, err := h.ContentType()
	if err != nil {
		return fail("query content type", err)
	}
	res.ContentType = contentType

	version, err := h.HTTPVersion()
	if err != nil {
		return fail("query http version", err)
	}
	res.HTTPVersion = version

	rec.logLine("engine: perform success")
	logger.Debug("transfer complete",
		log.Int("status", status),
		log.Int64("bytes_sent", res.BytesSent),
		log.Int64("bytes_recv", res.BytesRecv),
	)

	return res
}

// assembleCertChain flattens the engine's per-certificate info entries into
// the record's chain. Only "Cert" entries hold PEM material; the rest are
// retained as comment lines so the chain stays parseable while keeping the
// information around.
func assembleCertChain(certs [][]string) string {
	var sb strings.Builder
	for _, entries := range certs {
		for _, entry := range entries {
			if pem, ok := strings.CutPrefix(entry, "Cert:"); ok {
				sb.WriteString(pem)
			} else {
				sb.WriteString("# ")
				sb.WriteString(entry)
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func recordTransferMetrics(ctx context.Context, start time.Time, req *Request, res *Response) {
	status, statusClass := "error", "error"
	switch {
	case res.Code == CodeOK:
		status = strconv.Itoa(res.StatusCode)
		statusClass = strconv.Itoa(res.StatusCode/100) + "xx" // 2xx, 3xx, 4xx, 5xx, etc
	case res.Code == CodeTimedOut:
		status = "timeout"
	}

	tags := []string{
		"technology:go",
		"method:" + strings.ToLower(req.Method.String()),
		"status:" + status,
		"status_class:" + statusClass,
	}

	telemetry.Timing(ctx, _transferTimingMetric, time.Since(start), tags)
	telemetry.Count(ctx, _bytesSentMetric, res.BytesSent, tags)
	telemetry.Count(ctx, _bytesRecvMetric, res.BytesRecv, tags)
}
