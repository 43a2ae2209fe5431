package fetch

import (
	"context"

	"github.com/gofrs/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/luizaranda/go-fetch/pkg/internal"
)

const (
	_instrumentationName = "github.com/luizaranda/go-fetch/pkg/fetch"
	_fetchSpanName       = "Fetch"
)

var (
	_methodAttr    = attribute.Key("http.method")
	_urlAttr       = attribute.Key("http.url")
	_statusAttr    = attribute.Key("http.status_code")
	_transferAttr  = attribute.Key("fetch.transfer_id")
	_codeAttr      = attribute.Key("fetch.code")
	_bytesSentAttr = attribute.Key("fetch.bytes_sent")
	_bytesRecvAttr = attribute.Key("fetch.bytes_recv")
)

// newSpan starts the client span for one transfer and assigns it a transfer
// id. The id ties the span to operational log lines for the same transfer.
func newSpan(ctx context.Context, req *Request) (context.Context, trace.Span, string) {
	tracer := otel.Tracer(_instrumentationName, trace.WithInstrumentationVersion(internal.Version))

	var transferID string
	if id, err := uuid.NewV4(); err == nil {
		transferID = id.String()
	}

	ctx, span := tracer.Start(ctx, _fetchSpanName+" "+req.Method.String(),
		trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		_methodAttr.String(req.Method.String()),
		_urlAttr.String(req.URL),
		_transferAttr.String(transferID),
	)

	return ctx, span, transferID
}

// recordResultAttributes closes the loop on the transfer span with the
// record's two independent outcome channels.
func recordResultAttributes(span trace.Span, res *Response) {
	span.SetAttributes(
		_bytesSentAttr.Int64(res.BytesSent),
		_bytesRecvAttr.Int64(res.BytesRecv),
	)

	if res.Code != CodeOK {
		span.SetAttributes(_codeAttr.String(res.Code.String()))
		span.SetStatus(codes.Error, res.Code.String())
		return
	}

	span.SetAttributes(_statusAttr.Int(res.StatusCode))
	if res.StatusCode >= 400 {
		span.SetStatus(codes.Error, "")
	}
}
