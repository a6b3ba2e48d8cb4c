package intercept

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/roach88/easyfix/internal/intercept"
	spanName   = "easyfix.call"
)

// Span attribute keys.
const (
	AttrCallID  = attribute.Key("easyfix.call_id")
	AttrName    = attribute.Key("easyfix.name")
	AttrMode    = attribute.Key("easyfix.mode")
	AttrPrefix  = attribute.Key("easyfix.prefix")
	AttrPath    = attribute.Key("easyfix.path")
	AttrOutcome = attribute.Key("easyfix.outcome")
)

// startSpan opens the span covering the synchronous part of one call.
func (h *Handle) startSpan(ctx context.Context, c *callState) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		AttrCallID.String(c.id),
		AttrName.String(h.res.Name),
		AttrMode.String(string(h.res.Mode)),
		AttrPrefix.String(h.res.Prefix),
	}
	if c.path != "" {
		attrs = append(attrs, AttrPath.String(c.path))
	}
	return h.tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

func (c *callState) setOutcome(outcome string) {
	if c.span != nil {
		c.span.SetAttributes(AttrOutcome.String(outcome))
	}
}

func (c *callState) recordError(err error) {
	if c.span != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	}
}
