package telemetry

import (
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

// response bodies are html pages, only the start is useful in a span
const maxBodyAttribute = 4096

// InstrumentResty makes every request made by client a span.
func InstrumentResty(client *resty.Client, tracerName string) {
	tracer := otel.Tracer(tracerName)

	client.OnBeforeRequest(onBeforeRequest(tracer))
	client.OnAfterResponse(onAfterResponse)
	client.OnError(onError)
}

func onBeforeRequest(tracer trace.Tracer) resty.RequestMiddleware {
	return func(cli *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), fmt.Sprintf("http %s", req.Method))
		req.SetContext(ctx)
		return nil
	}
}

func headerAttributes(prefix string, headers http.Header) []attribute.KeyValue {
	var out []attribute.KeyValue
	for header, values := range headers {
		// never export credentials
		if header == "Cookie" || header == "Set-Cookie" {
			continue
		}
		out = append(out, attribute.StringSlice(fmt.Sprintf("%s/header: %s", prefix, header), values))
	}
	return out
}

func truncate(s string) string {
	if len(s) <= maxBodyAttribute {
		return s
	}
	return s[:maxBodyAttribute] + "..."
}

func onAfterResponse(_ *resty.Client, res *resty.Response) error {
	span := trace.SpanFromContext(res.Request.Context())
	defer span.End()

	span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)

	// setting request attributes here since res.Request.RawRequest is nil in onBeforeRequest
	span.SetAttributes(httpconv.ClientRequest(res.Request.RawRequest)...)
	span.SetAttributes(headerAttributes("request", res.Request.Header)...)
	span.SetAttributes(headerAttributes("response", res.Header())...)
	span.SetAttributes(
		attribute.String("response/url", res.RawResponse.Request.URL.String()),
		attribute.String("response/body", truncate(res.String())),
	)

	return nil
}

func onError(req *resty.Request, err error) {
	span := trace.SpanFromContext(req.Context())
	defer span.End()

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(headerAttributes("request", req.Header)...)

	if req.RawRequest == nil {
		return
	}
	span.SetAttributes(httpconv.ClientRequest(req.RawRequest)...)
}
