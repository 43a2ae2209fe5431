package httpengine

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"time"

	"github.com/luizaranda/go-fetch/pkg/fetch"
)

// dialContext opens the plaintext connection, honoring the connect-to
// override and the fast open preference.
func (h *handle) dialContext(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 15 * time.Second,
	}
	if h.fastOpen {
		dialer.Control = fastOpenControl
	}
	conn, err := dialer.DialContext(ctx, network, h.rewriteAddr(address))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// dialTLSContext dials and completes the handshake itself so the raw
// protocol records can be counted. The server name comes from the logical
// address, keeping SNI and verification on the original host when a
// connect-to override redirects the connection elsewhere.
func (h *handle) dialTLSContext(tlsCfg *tls.Config) func(ctx context.Context, network, address string) (net.Conn, error) {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		raw, err := h.dialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}

		cfg := tlsCfg.Clone()
		if host, _, err := net.SplitHostPort(address); err == nil {
			cfg.ServerName = host
		}

		rec := &recordingConn{Conn: raw, h: h, handshaking: true}
		conn := tls.Client(rec, cfg)
		if err := conn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, err
		}
		rec.handshaking = false
		return conn, nil
	}
}

// rewriteAddr applies the connect-to override to a dial address. Empty
// override fields act as wildcards.
func (h *handle) rewriteAddr(address string) string {
	o := h.override
	if o == nil {
		return address
	}
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return address
	}
	if o.host != "" && o.host != host {
		return address
	}
	if o.port != "" && o.port != port {
		return address
	}
	if o.toHost != "" {
		host = o.toHost
	}
	if o.toPort != "" {
		port = o.toPort
	}
	return net.JoinHostPort(host, port)
}

// recordingConn emits handshake protocol records as trace events. Once the
// handshake is done the flag drops and application data flows untraced at
// this layer; the header and body events cover it instead.
type recordingConn struct {
	net.Conn
	h           *handle
	handshaking bool
}

func (c *recordingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 && c.handshaking {
		c.h.emit(fetch.TraceTLSDataIn, p[:n])
	}
	return n, err
}

func (c *recordingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 && c.handshaking {
		c.h.emit(fetch.TraceTLSDataOut, p[:n])
	}
	return n, err
}

// tracedReader emits an upload trace event for every chunk the transport
// pulls from the request body.
type tracedReader struct {
	h *handle
	r io.Reader
}

func (t *tracedReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		t.h.emit(fetch.TraceDataOut, p[:n])
	}
	return n, err
}
