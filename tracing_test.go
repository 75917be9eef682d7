package agata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracing(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	b := newTestBroker(t, Definitions{
		Singletons: map[string]SingletonDefinition{
			"db": recordedSingleton(&recorder{}, "db"),
		},
		Actions: map[string]ActionDefinition{"get": constAction(1, "db")},
		Services: map[string]ServiceDefinition{
			"api": noopService([]string{"db"}, []string{"get"}),
		},
	}, WithTracerProvider(tp))

	ctx := context.Background()
	require.NoError(t, b.StartService(ctx, "api"))
	require.NoError(t, b.StopService(ctx, "api"))

	spans := rec.Ended()

	var names []string
	byName := map[string]sdktrace.ReadOnlySpan{}

	for _, s := range spans {
		names = append(names, s.Name())
		byName[s.Name()] = s
	}

	assert.Equal(t, []string{
		"agata.singleton.start",
		"agata.action.init",
		"agata.service.start",
		"agata.singleton.stop",
		"agata.service.stop",
	}, names)

	service := byName["agata.service.start"]
	assert.Equal(t, codes.Ok, service.Status().Code)
	assert.Contains(t, service.Attributes(), attribute.String("agata.unit", "api"))
	assert.Contains(t, service.Attributes(), attribute.String("agata.broker", b.ID()))

	singleton := byName["agata.singleton.start"]
	assert.Equal(t, service.SpanContext().SpanID(), singleton.Parent().SpanID())
	assert.Contains(t, singleton.Attributes(), attribute.String("agata.kind", KindSingleton))
}

func TestTracing_RecordsErrors(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	b := newTestBroker(t, Definitions{
		Singletons: map[string]SingletonDefinition{
			"db": SingletonConfig{
				Start: func(context.Context, Deps) (any, error) { return nil, errors.New("refused") },
			},
		},
		Services: map[string]ServiceDefinition{"api": noopService([]string{"db"}, nil)},
	}, WithTracerProvider(tp))

	require.Error(t, b.StartService(context.Background(), "api"))

	spans := rec.Ended()
	require.Len(t, spans, 2)

	for _, s := range spans {
		assert.Equal(t, codes.Error, s.Status().Code, s.Name())
	}

	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}
