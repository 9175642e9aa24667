package core

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/nimbuscloud/nimbus-go-sdk/core"

type tracingPolicy struct {
	propagator propagation.TextMapPropagator
}

// newTracingPolicy opens a client span per attempt and injects W3C
// trace context headers. It sits after the retry policy so each retry
// is its own span.
func newTracingPolicy() Policy {
	return &tracingPolicy{
		propagator: propagation.TraceContext{},
	}
}

func (p *tracingPolicy) Do(req *Request) (*http.Response, error) {
	tracer := otel.GetTracerProvider().Tracer(tracerName)
	ctx, span := tracer.Start(req.Raw().Context(),
		fmt.Sprintf("HTTP %s", req.Raw().Method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Raw().Method),
			attribute.String("url.full", req.Raw().URL.Redacted()),
			attribute.String("server.address", req.Raw().URL.Host),
		),
	)
	defer span.End()

	req.WithContext(ctx)
	p.propagator.Inject(ctx, propagation.HeaderCarrier(req.Raw().Header))

	resp, err := req.Next()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, resp.Status)
	}
	if id := RequestID(resp); id != "" {
		span.SetAttributes(attribute.String("nimbus.request_id", id))
	}
	return resp, nil
}
