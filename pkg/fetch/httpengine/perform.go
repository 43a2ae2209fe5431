package httpengine

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/http2"

	"github.com/luizaranda/go-fetch/pkg/fetch"
	"github.com/luizaranda/go-fetch/pkg/internal"
)

const _readChunkSize = 32 * 1024

// Perform runs the configured transfer. Any error it returns carries a
// failure code retrievable through fetch.CodeOf.
func (h *handle) Perform(ctx context.Context) error {
	// The transport's write goroutine can outlive Do when a server
	// responds before draining the upload; cut trace delivery off so no
	// callback fires after this call returns.
	defer func() {
		h.traceMu.Lock()
		h.traceOff = true
		h.traceMu.Unlock()
	}()

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	tlsCfg, err := h.tlsConfig()
	if err != nil {
		return err
	}

	transport, err := h.transport(tlsCfg)
	if err != nil {
		return err
	}
	h.closers = append(h.closers, transport.CloseIdleConnections)

	req, err := h.buildRequest(ctx)
	if err != nil {
		return err
	}

	client := &http.Client{
		Transport:     transport,
		CheckRedirect: h.redirectPolicy(),
	}

	h.text("issuing request " + req.Method + " " + h.rawurl)
	resp, err := client.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	h.emit(fetch.TraceHeaderIn, responseHeaderBlock(resp))

	if err := h.drainBody(resp.Body); err != nil {
		return err
	}
	h.emit(fetch.TraceEnd, nil)

	h.status = resp.StatusCode
	h.contentType = resp.Header.Get("Content-Type")
	h.version = versionLabel(resp.Proto)
	if !h.follow && resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if loc, err := resp.Location(); err == nil {
			h.redirectURL = loc.String()
		}
	}
	return nil
}

// buildRequest assembles the outgoing request from the applied options and
// attaches the wire trace instrumentation to its context.
func (h *handle) buildRequest(ctx context.Context) (*http.Request, error) {
	method := "GET"
	if h.post {
		method = "POST"
	}
	if h.methodVerb != "" {
		method = h.methodVerb
	}

	var body io.Reader
	if h.post && h.body != nil {
		body = &tracedReader{h: h, r: bytes.NewReader(h.body)}
	}

	req, err := http.NewRequestWithContext(ctx, method, h.rawurl, body)
	if err != nil {
		return nil, &fetch.Error{
			Code: fetch.CodeBadURL,
			Op:   "httpengine: build request",
			Err:  err,
		}
	}
	if body != nil {
		req.ContentLength = int64(len(h.body))
	}

	req.Header.Set("User-Agent", "go-fetch/"+internal.Version)
	if h.useHeaders {
		for _, line := range h.headers {
			applyHeaderLine(req, line)
		}
	}

	return req.WithContext(httptrace.WithClientTrace(ctx, h.clientTrace(req))), nil
}

// clientTrace synthesizes the outgoing header block and connection progress
// lines from the transport's own lifecycle callbacks.
func (h *handle) clientTrace(req *http.Request) *httptrace.ClientTrace {
	var fields bytes.Buffer
	return &httptrace.ClientTrace{
		DNSStart: func(info httptrace.DNSStartInfo) {
			h.text("resolving " + info.Host)
		},
		ConnectDone: func(network, addr string, err error) {
			if err == nil {
				h.text("connected to " + addr)
			}
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err == nil {
				h.text("TLS handshake complete " + tls.VersionName(state.Version) +
					" " + state.NegotiatedProtocol)
			}
		},
		WroteHeaderField: func(key string, values []string) {
			for _, v := range values {
				fields.WriteString(key)
				fields.WriteString(": ")
				fields.WriteString(v)
				fields.WriteString("\r\n")
			}
		},
		WroteHeaders: func() {
			var block bytes.Buffer
			// HTTP/2 reports pseudo-header fields; there is no request
			// line to synthesize for those.
			if !bytes.HasPrefix(fields.Bytes(), []byte(":")) {
				fmt.Fprintf(&block, "%s %s HTTP/1.1\r\n", req.Method, req.URL.RequestURI())
			}
			block.Write(fields.Bytes())
			block.WriteString("\r\n")
			fields.Reset()
			h.emit(fetch.TraceHeaderOut, block.Bytes())
		},
	}
}

func (h *handle) redirectPolicy() func(*http.Request, []*http.Request) error {
	if !h.follow {
		return func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	// Intermediate responses never reach the Perform goroutine, so their
	// header blocks are traced from here; the final response is traced
	// after Do returns.
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		if req.Response != nil {
			h.emit(fetch.TraceHeaderIn, responseHeaderBlock(req.Response))
		}
		return nil
	}
}

// drainBody streams the payload through the trace and the sink in chunks.
// A sink consuming less than it was offered aborts the transfer.
func (h *handle) drainBody(r io.Reader) error {
	buf := make([]byte, _readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			h.emit(fetch.TraceDataIn, chunk)
			if h.sink != nil && h.sink(chunk) != n {
				return &fetch.Error{
					Code: fetch.CodeAbortedByCallback,
					Op:   "httpengine: deliver body chunk",
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return classify(err)
		}
	}
}

// tlsConfig builds the handshake configuration shared by the dialer and the
// transport. The capture callback runs after standard verification on every
// handshake, including through proxy tunnels.
func (h *handle) tlsConfig() (*tls.Config, error) {
	cfg := &tls.Config{}
	if h.caPath != "" {
		blob, err := os.ReadFile(h.caPath)
		if err != nil {
			return nil, &fetch.Error{
				Code: fetch.CodeCABundleFailed,
				Op:   "httpengine: read ca bundle",
				Err:  err,
			}
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(blob) {
			return nil, &fetch.Error{
				Code: fetch.CodeCABundleFailed,
				Op:   "httpengine: parse ca bundle",
			}
		}
		cfg.RootCAs = pool
	}
	if h.http2 {
		cfg.NextProtos = []string{"h2", "http/1.1"}
	} else {
		cfg.NextProtos = []string{"http/1.1"}
	}
	cfg.VerifyConnection = func(cs tls.ConnectionState) error {
		h.captureConnState(cs)
		return nil
	}
	return cfg, nil
}

// captureConnState records the peer chain when capture was requested. A
// redirect chain can handshake more than once; the last connection wins.
func (h *handle) captureConnState(cs tls.ConnectionState) {
	if !h.captureCerts {
		return
	}
	certs := make([][]string, 0, len(cs.PeerCertificates))
	for _, cert := range cs.PeerCertificates {
		blob := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
		certs = append(certs, []string{
			"Subject:" + cert.Subject.String(),
			"Issuer:" + cert.Issuer.String(),
			"Cert:" + string(blob),
		})
	}
	h.certs = certs
}

func (h *handle) transport(tlsCfg *tls.Config) (*http.Transport, error) {
	t := &http.Transport{
		Proxy:              h.proxyFunc(),
		DialContext:        h.dialContext,
		DialTLSContext:     h.dialTLSContext(tlsCfg),
		TLSClientConfig:    tlsCfg,
		DisableKeepAlives:  true,
		DisableCompression: true,
	}
	if h.http2 {
		if err := http2.ConfigureTransport(t); err != nil {
			return nil, &fetch.Error{
				Code: fetch.CodeUnsupported,
				Op:   "httpengine: configure http2",
				Err:  err,
			}
		}
	}
	return t, nil
}

func (h *handle) proxyFunc() func(*http.Request) (*url.URL, error) {
	if h.proxy == nil {
		return nil
	}
	return http.ProxyURL(h.proxy)
}

// applyHeaderLine applies one raw header line. A bare "Name:" removes the
// header, "Name;" forces an empty value, and "Host" overrides the request
// target host.
func applyHeaderLine(req *http.Request, line string) {
	if name, ok := strings.CutSuffix(line, ";"); ok && !strings.Contains(name, ":") {
		req.Header.Set(strings.TrimSpace(name), "")
		return
	}
	name, value, ok := strings.Cut(line, ":")
	if !ok {
		return
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if value == "" {
		req.Header.Del(name)
		return
	}
	if strings.EqualFold(name, "Host") {
		req.Host = value
		return
	}
	req.Header.Add(name, value)
}

func responseHeaderBlock(resp *http.Response) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s\r\n", resp.Proto, resp.Status)
	_ = resp.Header.Write(&buf)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

func versionLabel(proto string) string {
	switch proto {
	case "HTTP/1.0", "HTTP/1.1":
		return proto
	case "HTTP/2.0":
		return "HTTP/2"
	default:
		return ""
	}
}

// classify maps a transport error to a failure code. Errors already carrying
// a code pass through untouched.
func classify(err error) error {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return fe
	}

	cause := err
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if uerr.Op == "parse" {
			return &fetch.Error{Code: fetch.CodeBadURL, Op: "httpengine: parse url", Err: err}
		}
		cause = uerr.Err
	}

	code := fetch.CodeTransferFailed
	var (
		dnsErr  *net.DNSError
		certErr *tls.CertificateVerificationError
		opErr   *net.OpError
	)
	switch {
	case errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, os.ErrDeadlineExceeded):
		code = fetch.CodeTimedOut
	case errors.As(cause, &dnsErr):
		code = fetch.CodeResolveFailed
	case errors.As(cause, &certErr):
		code = fetch.CodePeerVerifyFailed
	case errors.As(cause, &opErr) && opErr.Op == "dial":
		code = fetch.CodeConnectFailed
	case isHandshakeFailure(cause):
		code = fetch.CodeTLSHandshakeFailed
	}
	return &fetch.Error{Code: code, Op: "httpengine: transfer", Err: err}
}

func isHandshakeFailure(err error) bool {
	var (
		recordErr tls.RecordHeaderError
		alertErr  tls.AlertError
	)
	return errors.As(err, &recordErr) || errors.As(err, &alertErr)
}
