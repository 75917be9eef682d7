package agata

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/xraph/agata"

// startSpan opens a span named "agata.<kind>.<operation>".
func (b *Broker) startSpan(ctx context.Context, operation, kind, name string) (context.Context, trace.Span) {
	return b.tracer.Start(ctx, "agata."+kind+"."+operation,
		trace.WithAttributes(
			attribute.String("agata.broker", b.id),
			attribute.String("agata.kind", kind),
			attribute.String("agata.unit", name),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}
