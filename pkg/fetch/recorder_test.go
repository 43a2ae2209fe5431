package fetch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_BodyAppendsChunks(t *testing.T) {
	res := &Response{}
	rec := newRecorder(res)

	assert.Equal(t, 3, rec.body([]byte("abc")))
	assert.Equal(t, 3, rec.body([]byte{0x00, 0x01, 0x02}))

	assert.Equal(t, []byte{'a', 'b', 'c', 0x00, 0x01, 0x02}, res.Body)
}

func TestRecorder_BodyIgnoresEmptyChunk(t *testing.T) {
	res := &Response{}
	rec := newRecorder(res)

	assert.Equal(t, 0, rec.body(nil))
	assert.Equal(t, 0, rec.body([]byte{}))
	assert.Empty(t, res.Body)
}

func TestRecorder_CountersAreAdditive(t *testing.T) {
	res := &Response{}
	rec := newRecorder(res)

	rec.trace(TraceEvent{Kind: TraceHeaderOut, Data: []byte("abcd")})
	rec.trace(TraceEvent{Kind: TraceDataOut, Data: []byte("ef")})
	rec.trace(TraceEvent{Kind: TraceTLSDataOut, Data: []byte("g")})
	rec.trace(TraceEvent{Kind: TraceHeaderIn, Data: []byte("hij")})
	rec.trace(TraceEvent{Kind: TraceDataIn, Data: []byte("klmno")})
	rec.trace(TraceEvent{Kind: TraceTLSDataIn, Data: []byte("pq")})
	rec.trace(TraceEvent{Kind: TraceText, Data: []byte("ignored for counters")})
	rec.trace(TraceEvent{Kind: TraceEnd})

	assert.Equal(t, int64(4+2+1), res.BytesSent)
	assert.Equal(t, int64(3+5+2), res.BytesRecv)
}

func TestRecorder_HeaderEventsAccumulate(t *testing.T) {
	res := &Response{}
	rec := newRecorder(res)

	rec.trace(TraceEvent{Kind: TraceHeaderOut, Data: []byte("GET / HTTP/1.1\r\n")})
	rec.trace(TraceEvent{Kind: TraceHeaderOut, Data: []byte("Host: x\r\n")})
	rec.trace(TraceEvent{Kind: TraceHeaderIn, Data: []byte("HTTP/1.1 200 OK\r\n")})

	assert.Equal(t, "GET / HTTP/1.1\r\nHost: x\r\n", res.RequestHeadersString())
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", res.ResponseHeadersString())
}

func TestRecorder_LogLineShape(t *testing.T) {
	res := &Response{}
	rec := newRecorder(res)

	rec.trace(TraceEvent{Kind: TraceHeaderOut, Data: []byte("GET / HTTP/1.1\nHost: x\n")})
	rec.trace(TraceEvent{Kind: TraceDataIn, Data: []byte("secret payload")})
	rec.trace(TraceEvent{Kind: TraceText, Data: []byte("connected")})

	lines := strings.Split(strings.TrimRight(res.LogsString(), "\n"), "\n")
	require.Len(t, lines, 4)

	// Every line opens with a millisecond timestamp.
	for _, line := range lines {
		fieldsOf := strings.SplitN(line, " ", 2)
		require.Len(t, fieldsOf, 2)
		assert.Regexp(t, `^\d+(\.\d+)?$`, fieldsOf[0])
	}

	assert.True(t, strings.HasSuffix(lines[0], "> GET / HTTP/1.1"))
	assert.True(t, strings.HasSuffix(lines[1], "> Host: x"))
	assert.True(t, strings.HasSuffix(lines[2], "<data: 14"))
	assert.True(t, strings.HasSuffix(lines[3], "connected"))

	// Payload bytes never reach the record.
	assert.NotContains(t, res.LogsString(), "secret payload")
}

func TestRecorder_TrailingNewlineProducesNoEmptyLine(t *testing.T) {
	res := &Response{}
	rec := newRecorder(res)

	rec.trace(TraceEvent{Kind: TraceText, Data: []byte("one\ntwo\n")})

	assert.Equal(t, 2, strings.Count(res.LogsString(), "\n"))
}
