package fetch

import (
	"bytes"
	"strconv"

	"github.com/luizaranda/go-fetch/pkg/log"
)

// recorder is the instrumentation sink of one transfer. It receives the
// engine's body and wire-trace callbacks with the Response as its only
// state, and owns the record's log format.
//
// The engine serializes callback invocations and stops them before Perform
// returns, so recorder needs no locking.
type recorder struct {
	res *Response
	log log.Logger
}

func newRecorder(res *Response) *recorder {
	return &recorder{
		res: res,
		log: log.NewLineLogger((*logsBuffer)(res)),
	}
}

// logsBuffer adapts Response.Logs to io.Writer for the line logger.
type logsBuffer Response

func (b *logsBuffer) Write(p []byte) (int, error) {
	b.Logs = append(b.Logs, p...)
	return len(p), nil
}

// body is the engine's body callback. It appends the chunk verbatim and
// always reports the full chunk consumed: a short count would make the
// engine abort the whole transfer, and this sink has no failure of its own
// to report. A zero-size chunk means "no data" and is ignored.
func (r *recorder) body(chunk []byte) int {
	if len(chunk) == 0 {
		return 0
	}
	r.res.Body = append(r.res.Body, chunk...)
	return len(chunk)
}

// trace is the engine's wire-trace callback. It never influences the
// transfer outcome.
func (r *recorder) trace(ev TraceEvent) {
	size := len(ev.Data)

	switch ev.Kind {
	case TraceText:
		r.logLines("", ev.Data)
	case TraceHeaderOut:
		r.logLines(">", ev.Data)
		r.res.RequestHeaders = append(r.res.RequestHeaders, ev.Data...)
	case TraceHeaderIn:
		r.logLines("<", ev.Data)
		r.res.ResponseHeaders = append(r.res.ResponseHeaders, ev.Data...)
	case TraceDataOut:
		r.logSize(">data:", size)
	case TraceDataIn:
		r.logSize("<data:", size)
	case TraceTLSDataOut:
		r.logSize(">tls_data:", size)
	case TraceTLSDataIn:
		r.logSize("<tls_data:", size)
	case TraceEnd:
		// Nothing to log.
	}

	// Data and TLS-record payloads are never logged, but every byte that
	// hits the wire counts. Text and end-of-transfer events carry no wire
	// bytes.
	switch ev.Kind {
	case TraceHeaderIn, TraceDataIn, TraceTLSDataIn:
		r.res.BytesRecv += int64(size)
	case TraceHeaderOut, TraceDataOut, TraceTLSDataOut:
		r.res.BytesSent += int64(size)
	}
}

// logLine appends one timestamped line to the record. The Perform pipeline
// uses it for its own step and outcome messages.
func (r *recorder) logLine(msg string) {
	r.log.Debug(msg)
}

func (r *recorder) logSize(marker string, size int) {
	r.logLine(marker + " " + strconv.Itoa(size))
}

// logLines splits data on newlines and appends each line under the given
// direction marker, one timestamped record entry per line. A trailing
// newline does not produce an empty final line; carriage returns are kept
// as-is.
func (r *recorder) logLines(marker string, data []byte) {
	for len(data) > 0 {
		line := data
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			data = nil
		}

		if marker != "" {
			r.logLine(marker + " " + string(line))
			continue
		}
		r.logLine(string(line))
	}
}
