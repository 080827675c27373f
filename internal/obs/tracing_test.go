// Copyright 2025 James Ross
package obs

import (
	"context"
	"testing"
	"time"

	"github.com/flyingrobots/pigtrack/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestMaybeInitTracing(t *testing.T) {
	tests := []struct {
		name      string
		config    *config.Config
		expectNil bool
	}{
		{
			name: "tracing disabled",
			config: &config.Config{
				Observability: config.ObservabilityConfig{
					Tracing: config.TracingConfig{Enabled: false},
				},
			},
			expectNil: true,
		},
		{
			name: "tracing enabled but no endpoint",
			config: &config.Config{
				Observability: config.ObservabilityConfig{
					Tracing: config.TracingConfig{Enabled: true},
				},
			},
			expectNil: true,
		},
		{
			name: "tracing enabled with endpoint",
			config: &config.Config{
				Observability: config.ObservabilityConfig{
					Tracing: config.TracingConfig{
						Enabled:          true,
						Endpoint:         "http://localhost:4318/v1/traces",
						Environment:      "test",
						SamplingStrategy: "always",
						SamplingRate:     1.0,
					},
				},
			},
			expectNil: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, err := MaybeInitTracing(tt.config)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.expectNil && tp != nil {
				t.Fatal("expected nil tracer provider")
			}
			if !tt.expectNil && tp == nil {
				t.Fatal("expected non-nil tracer provider")
			}
			if tp != nil {
				_ = TracerShutdown(context.Background(), tp)
			}
		})
	}
}

func TestContextWithTickSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	otel.SetTracerProvider(tp)

	now := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	ctx, span := ContextWithTickSpan(context.Background(), "PIG-42", now)
	defer span.End()

	if !span.SpanContext().IsValid() {
		t.Fatal("expected a valid span context")
	}
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
}

func TestStartEnqueueAndClaimSpans(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	otel.SetTracerProvider(tp)

	_, enqueueSpan := StartEnqueueSpan(context.Background(), "PIG-1", "POI Passage")
	defer enqueueSpan.End()
	if !enqueueSpan.SpanContext().IsValid() {
		t.Fatal("expected a valid enqueue span context")
	}

	_, claimSpan := StartClaimSpan(context.Background(), "sender-1", 25)
	defer claimSpan.End()
	if !claimSpan.SpanContext().IsValid() {
		t.Fatal("expected a valid claim span context")
	}
}

func TestRecordErrorAndSetSpanSuccess(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	otel.SetTracerProvider(tp)

	ctx, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	RecordError(ctx, nil)
	SetSpanSuccess(ctx)
}

func TestAddEventAndAttributes(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	otel.SetTracerProvider(tp)

	ctx, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	AddEvent(ctx, "dedup-skipped", attribute.String("pig.id", "PIG-1"))
	AddSpanAttributes(ctx, attribute.Int("attempt_count", 2))
}

func TestKeyValue(t *testing.T) {
	cases := []struct {
		key   string
		value interface{}
	}{
		{"pig.id", "PIG-1"},
		{"attempt_count", 3},
		{"id", int64(42)},
		{"speed_mps", 0.67},
		{"approved", true},
	}
	for _, c := range cases {
		kv := KeyValue(c.key, c.value)
		if string(kv.Key) != c.key {
			t.Fatalf("expected key %q, got %q", c.key, kv.Key)
		}
	}
}

func TestTracerShutdownNilIsNoop(t *testing.T) {
	if err := TracerShutdown(context.Background(), nil); err != nil {
		t.Fatalf("expected nil error for nil provider, got %v", err)
	}
}

func TestTracingSamplingStrategies(t *testing.T) {
	for _, strategy := range []string{"always", "never", "probabilistic", ""} {
		cfg := &config.Config{
			Observability: config.ObservabilityConfig{
				Tracing: config.TracingConfig{
					Enabled:          true,
					Endpoint:         "http://localhost:4318/v1/traces",
					SamplingStrategy: strategy,
					SamplingRate:     0.5,
				},
			},
		}
		tp, err := MaybeInitTracing(cfg)
		if err != nil {
			t.Fatalf("strategy %q: unexpected error: %v", strategy, err)
		}
		if tp == nil {
			t.Fatalf("strategy %q: expected non-nil tracer provider", strategy)
		}
		_ = TracerShutdown(context.Background(), tp)
	}
}
