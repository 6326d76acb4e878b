package util

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

func TestStartSpanRecordsAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prev := tracer
	tracer = tp.Tracer(ServiceName)
	t.Cleanup(func() { tracer = prev })

	_, span := StartSpan(context.Background(), "OrderService.CreateOrder", attribute.Int64("user.id", 7))
	RecordError(span, errors.New("gateway down"))
	RecordError(span, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "OrderService.CreateOrder", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int64("user.id", 7))
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "gateway down", spans[0].Status().Description)
}
