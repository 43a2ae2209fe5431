package httpengine

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/pem"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luizaranda/go-fetch/pkg/fetch"
)

// capture collects the trace events and body chunks a transfer delivers.
// Event payloads are copied because the engine reuses its read buffer.
type capture struct {
	events []fetch.TraceEvent
	body   bytes.Buffer
}

func (c *capture) trace(ev fetch.TraceEvent) {
	c.events = append(c.events, fetch.TraceEvent{
		Kind: ev.Kind,
		Data: append([]byte(nil), ev.Data...),
	})
}

func (c *capture) sink(chunk []byte) int {
	c.body.Write(chunk)
	return len(chunk)
}

func (c *capture) joined(kind fetch.TraceKind) string {
	var buf bytes.Buffer
	for _, ev := range c.events {
		if ev.Kind == kind {
			buf.Write(ev.Data)
		}
	}
	return buf.String()
}

func newHandle(t *testing.T, rawurl string) (fetch.Handle, *capture) {
	t.Helper()

	h, err := New().NewHandle()
	require.NoError(t, err)
	t.Cleanup(h.Close)

	rec := &capture{}
	require.NoError(t, h.SetURL(rawurl))
	require.NoError(t, h.SetBodySink(rec.sink))
	require.NoError(t, h.SetTraceFunc(rec.trace))
	require.NoError(t, h.EnableVerbose())
	return h, rec
}

func TestPerform_GET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("hello"))
	}))
	defer server.Close()

	h, rec := newHandle(t, server.URL)
	require.NoError(t, h.Perform(context.Background()))

	status, err := h.StatusCode()
	require.NoError(t, err)
	assert.Equal(t, 200, status)

	contentType, err := h.ContentType()
	require.NoError(t, err)
	assert.Equal(t, "text/plain", contentType)

	version, err := h.HTTPVersion()
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1", version)

	assert.Equal(t, "hello", rec.body.String())
	assert.Contains(t, rec.joined(fetch.TraceHeaderOut), "GET / HTTP/1.1")
	assert.Contains(t, rec.joined(fetch.TraceHeaderIn), "HTTP/1.1 200 OK")
	assert.Contains(t, rec.joined(fetch.TraceDataIn), "hello")
}

func TestPerform_POSTBinaryBody(t *testing.T) {
	payload := []byte{'b', 'i', 'n', 0x00, 0x01, 0x00, 'a', 'r', 'y'}

	var got []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		var err error
		got, err = io.ReadAll(r.Body)
		assert.NoError(t, err)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	h, _ := newHandle(t, server.URL)
	require.NoError(t, h.AppendHeader("Content-Type: application/octet-stream"))
	require.NoError(t, h.AppendHeader("Expect:"))
	require.NoError(t, h.SetBody(payload))
	require.NoError(t, h.EnablePost())
	require.NoError(t, h.ApplyHeaders())

	require.NoError(t, h.Perform(context.Background()))

	assert.Equal(t, payload, got)
	status, err := h.StatusCode()
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
}

func TestPerform_PUTCustomVerb(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "state", string(body))
	}))
	defer server.Close()

	h, _ := newHandle(t, server.URL)
	require.NoError(t, h.SetBody([]byte("state")))
	require.NoError(t, h.EnablePost())
	require.NoError(t, h.SetCustomMethod("PUT"))

	require.NoError(t, h.Perform(context.Background()))
}

func TestPerform_RedirectReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/moved", http.StatusFound)
	}))
	defer server.Close()

	h, _ := newHandle(t, server.URL)
	require.NoError(t, h.Perform(context.Background()))

	status, err := h.StatusCode()
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, status)

	redirect, err := h.RedirectURL()
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/moved", redirect)
}

func TestPerform_TraceCallbacksSerialized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Respond without reading the body so the upload can still be in
		// flight on the transport's write goroutine when the response
		// arrives.
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}))
	defer server.Close()

	h, err := New().NewHandle()
	require.NoError(t, err)
	t.Cleanup(h.Close)

	var (
		level   atomic.Int32
		overlap atomic.Bool
		done    atomic.Bool
		late    atomic.Bool
	)
	require.NoError(t, h.SetURL(server.URL))
	require.NoError(t, h.SetTraceFunc(func(fetch.TraceEvent) {
		if done.Load() {
			late.Store(true)
		}
		if level.Add(1) > 1 {
			overlap.Store(true)
		}
		time.Sleep(50 * time.Microsecond)
		level.Add(-1)
	}))
	require.NoError(t, h.EnableVerbose())
	require.NoError(t, h.SetBody(bytes.Repeat([]byte("u"), 4<<20)))
	require.NoError(t, h.EnablePost())

	_ = h.Perform(context.Background())
	done.Store(true)
	time.Sleep(50 * time.Millisecond)

	assert.False(t, overlap.Load(), "trace callback ran concurrently with itself")
	assert.False(t, late.Load(), "trace callback ran after Perform returned")
}

func TestPerform_RedirectFollowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/moved" {
			http.Redirect(w, r, "/moved", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("landed"))
	}))
	defer server.Close()

	h, rec := newHandle(t, server.URL)
	require.NoError(t, h.EnableFollowRedirects())
	require.NoError(t, h.Perform(context.Background()))

	status, err := h.StatusCode()
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, "landed", rec.body.String())

	redirect, err := h.RedirectURL()
	require.NoError(t, err)
	assert.Empty(t, redirect)
}

func TestPerform_FollowedRedirectTracesEachHop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/moved" {
			http.Redirect(w, r, "/moved", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("landed"))
	}))
	defer server.Close()

	h, rec := newHandle(t, server.URL)
	require.NoError(t, h.EnableFollowRedirects())
	require.NoError(t, h.Perform(context.Background()))

	var headerInEvents int
	for _, ev := range rec.events {
		if ev.Kind == fetch.TraceHeaderIn {
			headerInEvents++
		}
	}
	assert.Equal(t, 2, headerInEvents)

	headerIn := rec.joined(fetch.TraceHeaderIn)
	assert.Contains(t, headerIn, "302 Found")
	assert.Contains(t, headerIn, "Location")
	assert.Contains(t, headerIn, "200 OK")
}

func TestPerform_EmptyURL(t *testing.T) {
	h, _ := newHandle(t, "")
	err := h.Perform(context.Background())
	require.Error(t, err)
	assert.NotEqual(t, fetch.CodeOK, fetch.CodeOf(err))

	status, qerr := h.StatusCode()
	require.NoError(t, qerr)
	assert.Zero(t, status)
}

func TestPerform_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
	}))
	defer server.Close()

	h, _ := newHandle(t, server.URL)
	require.NoError(t, h.SetTimeout(1))

	err := h.Perform(context.Background())
	require.Error(t, err)
	assert.Equal(t, fetch.CodeTimedOut, fetch.CodeOf(err))
}

func TestPerform_ConnectRefused(t *testing.T) {
	// Bind a port and close it so nothing is listening there.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	h, _ := newHandle(t, "http://"+addr)
	err = h.Perform(context.Background())
	require.Error(t, err)
	assert.Equal(t, fetch.CodeConnectFailed, fetch.CodeOf(err))
}

func TestPerform_ResolveFailure(t *testing.T) {
	h, _ := newHandle(t, "http://nonexistent.invalid/")
	err := h.Perform(context.Background())
	require.Error(t, err)
	assert.Equal(t, fetch.CodeResolveFailed, fetch.CodeOf(err))
}

func TestPerform_BadURL(t *testing.T) {
	h, _ := newHandle(t, "http://exa mple.com/")
	err := h.Perform(context.Background())
	require.Error(t, err)
	assert.Equal(t, fetch.CodeBadURL, fetch.CodeOf(err))
}

func TestPerform_SinkAbort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 1024))
	}))
	defer server.Close()

	h, err := New().NewHandle()
	require.NoError(t, err)
	t.Cleanup(h.Close)
	require.NoError(t, h.SetURL(server.URL))
	require.NoError(t, h.SetBodySink(func(chunk []byte) int { return len(chunk) - 1 }))

	err = h.Perform(context.Background())
	require.Error(t, err)
	assert.Equal(t, fetch.CodeAbortedByCallback, fetch.CodeOf(err))
}

func TestPerform_MissingCABundle(t *testing.T) {
	h, _ := newHandle(t, "https://x.org/")
	require.NoError(t, h.SetCABundlePath("/nonexistent/ca.pem"))

	err := h.Perform(context.Background())
	require.Error(t, err)
	assert.Equal(t, fetch.CodeCABundleFailed, fetch.CodeOf(err))
}

func TestPerform_TLSCertCapture(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("secure"))
	}))
	defer server.Close()

	h, rec := newHandle(t, server.URL)
	require.NoError(t, h.SetCABundlePath(writeCABundle(t, server.Certificate())))
	require.NoError(t, h.EnableCertChainCapture())

	require.NoError(t, h.Perform(context.Background()))

	certs, err := h.CertChain()
	require.NoError(t, err)
	require.NotEmpty(t, certs)

	var sawCert, sawSubject bool
	for _, entry := range certs[0] {
		if len(entry) > 5 && entry[:5] == "Cert:" {
			sawCert = true
			assert.Contains(t, entry, "BEGIN CERTIFICATE")
		}
		if len(entry) > 8 && entry[:8] == "Subject:" {
			sawSubject = true
		}
	}
	assert.True(t, sawCert)
	assert.True(t, sawSubject)

	// Handshake records were traced, in both directions.
	assert.NotEmpty(t, rec.joined(fetch.TraceTLSDataOut))
	assert.NotEmpty(t, rec.joined(fetch.TraceTLSDataIn))
	assert.Equal(t, "secure", rec.body.String())
}

func TestPerform_PeerVerifyFailure(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	// No CA bundle that trusts the server's self-signed certificate.
	h, _ := newHandle(t, server.URL)
	err := h.Perform(context.Background())
	require.Error(t, err)
	assert.Equal(t, fetch.CodePeerVerifyFailed, fetch.CodeOf(err))
}

func TestPerform_HTTP2(t *testing.T) {
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "HTTP/2.0", r.Proto)
		_, _ = w.Write([]byte("h2"))
	}))
	server.EnableHTTP2 = true
	server.StartTLS()
	defer server.Close()

	h, rec := newHandle(t, server.URL)
	require.NoError(t, h.SetCABundlePath(writeCABundle(t, server.Certificate())))
	require.NoError(t, h.EnableHTTP2())

	require.NoError(t, h.Perform(context.Background()))

	version, err := h.HTTPVersion()
	require.NoError(t, err)
	assert.Equal(t, "HTTP/2", version)
	assert.Equal(t, "h2", rec.body.String())
}

func TestPerform_ConnectToOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "fetch.test:8080", r.Host)
		_, _ = w.Write([]byte("routed"))
	}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	h, rec := newHandle(t, "http://fetch.test:8080/")
	require.NoError(t, h.SetConnectTo("fetch.test:8080:127.0.0.1:"+u.Port()))

	require.NoError(t, h.Perform(context.Background()))
	assert.Equal(t, "routed", rec.body.String())
}

func TestSetConnectTo_Malformed(t *testing.T) {
	h, err := New().NewHandle()
	require.NoError(t, err)
	t.Cleanup(h.Close)

	err = h.SetConnectTo("host:80")
	require.Error(t, err)
	assert.Equal(t, fetch.CodeBadURL, fetch.CodeOf(err))
}

func TestRewriteAddr(t *testing.T) {
	cases := []struct {
		name     string
		override connectOverride
		addr     string
		want     string
	}{
		{"exact match", connectOverride{"a.org", "80", "b.org", "8080"}, "a.org:80", "b.org:8080"},
		{"host mismatch", connectOverride{"a.org", "80", "b.org", "8080"}, "c.org:80", "c.org:80"},
		{"port mismatch", connectOverride{"a.org", "80", "b.org", "8080"}, "a.org:443", "a.org:443"},
		{"wildcard host", connectOverride{"", "80", "b.org", ""}, "a.org:80", "b.org:80"},
		{"wildcard port", connectOverride{"a.org", "", "", "9090"}, "a.org:443", "a.org:9090"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &handle{override: &tc.override}
			assert.Equal(t, tc.want, h.rewriteAddr(tc.addr))
		})
	}
}

func TestApplyHeaderLine(t *testing.T) {
	newReq := func() *http.Request {
		req, _ := http.NewRequest("GET", "http://x.org/", nil)
		req.Header.Set("X-Preset", "1")
		return req
	}

	t.Run("add", func(t *testing.T) {
		req := newReq()
		applyHeaderLine(req, "X-Token: abc")
		assert.Equal(t, "abc", req.Header.Get("X-Token"))
	})

	t.Run("remove", func(t *testing.T) {
		req := newReq()
		applyHeaderLine(req, "X-Preset:")
		assert.Empty(t, req.Header.Values("X-Preset"))
	})

	t.Run("force empty", func(t *testing.T) {
		req := newReq()
		applyHeaderLine(req, "X-Empty;")
		values := req.Header.Values("X-Empty")
		require.Len(t, values, 1)
		assert.Empty(t, values[0])
	})

	t.Run("host override", func(t *testing.T) {
		req := newReq()
		applyHeaderLine(req, "Host: other.org")
		assert.Equal(t, "other.org", req.Host)
	})
}

func TestSetTimeout_Clamps(t *testing.T) {
	h := &handle{}

	require.NoError(t, h.SetTimeout(math.MaxInt64))
	assert.Equal(t, time.Duration(fetch.MaxTimeoutSeconds)*time.Second, h.timeout)

	require.NoError(t, h.SetTimeout(-7))
	assert.Zero(t, h.timeout)

	require.NoError(t, h.SetTimeout(5))
	assert.Equal(t, 5*time.Second, h.timeout)
}

func TestVersionLabel(t *testing.T) {
	assert.Equal(t, "HTTP/1.0", versionLabel("HTTP/1.0"))
	assert.Equal(t, "HTTP/1.1", versionLabel("HTTP/1.1"))
	assert.Equal(t, "HTTP/2", versionLabel("HTTP/2.0"))
	assert.Equal(t, "", versionLabel("HTTP/0.9"))
}

func TestClientIntegration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := fetch.NewClient(New())
	res := client.Perform(context.Background(), fetch.NewRequest(server.URL))

	assert.True(t, res.Succeeded())
	assert.Equal(t, fetch.CodeOK, res.Code)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, `{"ok":true}`, res.BodyString())
	assert.Equal(t, "application/json", res.ContentType)
	assert.Equal(t, "HTTP/1.1", res.HTTPVersion)
	assert.Positive(t, res.BytesSent)
	assert.Positive(t, res.BytesRecv)
	assert.Contains(t, res.LogsString(), "engine: perform success")
	assert.Contains(t, res.RequestHeadersString(), "GET / HTTP/1.1")
	assert.Contains(t, res.ResponseHeadersString(), "HTTP/1.1 200 OK")
}

func TestClientIntegration_MissingURL(t *testing.T) {
	client := fetch.NewClient(New())
	res := client.Perform(context.Background(), fetch.NewRequest(""))

	assert.NotEqual(t, fetch.CodeOK, res.Code)
	assert.Zero(t, res.StatusCode)
	assert.False(t, res.Succeeded())
}

// writeCABundle writes the certificate as a PEM bundle under the test's
// temporary directory.
func writeCABundle(t *testing.T, cert *x509.Certificate) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ca.pem")
	blob := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	require.NoError(t, os.WriteFile(path, blob, 0o600))
	return path
}
