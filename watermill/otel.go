package watermill

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	MetaTraceID = "otel_trace_id"
	MetaSpanID  = "otel_span_id"
)

// InjectTrace writes OTEL span context into Watermill metadata.
func InjectTrace(ctx context.Context, msg *message.Message) {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return
	}

	msg.Metadata.Set(MetaTraceID, spanCtx.TraceID().String())
	msg.Metadata.Set(MetaSpanID, spanCtx.SpanID().String())
	msg.SetContext(ctx)
}

// ExtractTrace builds ctx from message metadata.
func ExtractTrace(parent context.Context, msg *message.Message) context.Context {
	tid := msg.Metadata.Get(MetaTraceID)
	sid := msg.Metadata.Get(MetaSpanID)

	if tid == "" || sid == "" {
		return parent
	}

	traceID, err := trace.TraceIDFromHex(tid)
	if err != nil {
		return parent
	}

	spanID, err := trace.SpanIDFromHex(sid)
	if err != nil {
		return parent
	}

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})

	return trace.ContextWithRemoteSpanContext(parent, spanCtx)
}

// OTelMiddleware is the tracing middleware.
type OTelMiddleware struct {
	tracer trace.Tracer
}

// NewOTELMiddleware creates OTEL middleware with explicit tracer provider.
func NewOTELMiddleware(provider trace.TracerProvider) *OTelMiddleware {
	return &OTelMiddleware{
		tracer: provider.Tracer("bank/bus"),
	}
}

// HandlerMiddleware opens a consumer span linked to the producer's trace.
func (o *OTelMiddleware) HandlerMiddleware() message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			parent := ensureContext(msg.Context())
			ctx := ExtractTrace(parent, msg)

			ctx, span := o.tracer.Start(ctx, "bus.consume", trace.WithAttributes(
				attribute.String("topic", message.SubscribeTopicFromCtx(parent)),
				attribute.String("handler", message.HandlerNameFromCtx(parent)),
				attribute.String("correlation_id", msg.Metadata.Get("correlation_id")),
			))
			defer span.End()

			msg.SetContext(ctx)

			produced, err := h(msg)
			if err != nil {
				span.RecordError(err)
			}

			return produced, err
		}
	}
}
