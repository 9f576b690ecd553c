package message

import (
	"context"
	"time"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const metadataNamespace = "bank"

var (
	// MetadataCorrelationID is watermill's own key, so the CorrelationID
	// router middleware carries it onto produced messages.
	MetadataCorrelationID = middleware.CorrelationIDMetadataKey

	MetadataMessageType   = metadataKey("message_type")
	MetadataSchemaVersion = metadataKey("schema_version")
	MetadataMessageKind   = metadataKey("message_kind")
	MetadataOccurredAt    = metadataKey("occurred_at")
	MetadataServiceName   = metadataKey("service_name")
	MetadataContentType   = metadataKey("content_type")
	MetadataTraceID       = metadataKey("trace_id")
	MetadataSpanID        = metadataKey("span_id")
	// MetadataSaga names the workflow that issued a command.
	MetadataSaga = metadataKey("saga")
)

func metadataKey(suffix string) string {
	return metadataNamespace + "." + suffix
}

type ctxKey string

const serviceNameKey ctxKey = "bank.service_name_ctx"

func ensureMetadata(msg *wmmessage.Message) {
	if msg.Metadata == nil {
		msg.Metadata = make(wmmessage.Metadata)
	}
}

// WithServiceName stores service name inside context for downstream metadata injection.
func WithServiceName(ctx context.Context, serviceName string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	if serviceName == "" {
		return ctx
	}

	return context.WithValue(ctx, serviceNameKey, serviceName)
}

// ServiceNameFromContext extracts service name used to enrich message metadata.
func ServiceNameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	if val, ok := ctx.Value(serviceNameKey).(string); ok {
		return val
	}

	return ""
}

// SetTrace injects tracing metadata and propagates OTEL headers through Watermill message.
func SetTrace(ctx context.Context, msg *wmmessage.Message) {
	if msg == nil {
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}

	ensureMetadata(msg)

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		msg.Metadata.Set(MetadataTraceID, spanCtx.TraceID().String())
		msg.Metadata.Set(MetadataSpanID, spanCtx.SpanID().String())
	}

	if service := ServiceNameFromContext(ctx); service != "" && msg.Metadata.Get(MetadataServiceName) == "" {
		msg.Metadata.Set(MetadataServiceName, service)
	}

	if msg.Metadata.Get(MetadataOccurredAt) == "" {
		msg.Metadata.Set(MetadataOccurredAt, time.Now().UTC().Format(time.RFC3339Nano))
	}

	msg.SetContext(ctx)

	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Metadata))
}

// CorrelationID reads the correlation id of msg.
func CorrelationID(msg *wmmessage.Message) string {
	if msg == nil {
		return ""
	}

	return middleware.MessageCorrelationID(msg)
}

// CopyMetadata duplicates metadata map into destination map.
func CopyMetadata(dst, src wmmessage.Metadata) wmmessage.Metadata {
	if src == nil {
		return dst
	}

	if dst == nil {
		dst = make(wmmessage.Metadata, len(src))
	}

	for k, v := range src {
		dst.Set(k, v)
	}

	return dst
}
