package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// fieldsDivisor is used to calculate initial capacity for OpenTelemetry fields.
const fieldsDivisor = 2

// AppendTraceID adds traceID and spanID of the span carried by ctx.
// Without a valid span the fields are returned as is.
func AppendTraceID(ctx context.Context, fields ...any) []any {
	if ctx == nil {
		return fields
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return fields
	}

	result := make([]any, 0, len(fields)+4) //nolint:mnd // two pairs
	result = append(result, fields...)
	result = append(result, "traceID", spanCtx.TraceID().String(), "spanID", spanCtx.SpanID().String())

	return result
}

// FieldsToOpenTelemetry converts key/value fields to OpenTelemetry attributes.
func FieldsToOpenTelemetry(fields ...any) []attribute.KeyValue {
	if len(fields) == 0 {
		return nil
	}

	attrs := make([]attribute.KeyValue, 0, len(fields)/fieldsDivisor)

	for idx := 0; idx+1 < len(fields); idx += 2 {
		key, ok := fields[idx].(string)
		if !ok {
			continue
		}

		switch val := fields[idx+1].(type) {
		case string:
			attrs = append(attrs, attribute.String(key, val))
		case bool:
			attrs = append(attrs, attribute.Bool(key, val))
		case int:
			attrs = append(attrs, attribute.Int(key, val))
		case int64:
			attrs = append(attrs, attribute.Int64(key, val))
		case float64:
			attrs = append(attrs, attribute.Float64(key, val))
		case error:
			attrs = append(attrs, attribute.String(key, val.Error()))
		case nil:
			attrs = append(attrs, attribute.String(key, ""))
		default:
			attrs = append(attrs, attribute.String(key, fmt.Sprintf("%v", val)))
		}
	}

	return attrs
}
