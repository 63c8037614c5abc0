package apm

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fd1az/autosave-engine/internal/apperror"
	"github.com/fd1az/autosave-engine/internal/logger"
)

func TestParseProvider(t *testing.T) {
	tests := map[string]Provider{
		"otlp":    OTLPProvider,
		" Zipkin": ZipkinProvider,
		"console": ConsoleProvider,
		"none":    EmptyProvider,
		"jaeger":  EmptyProvider,
		"":        EmptyProvider,
	}
	for in, want := range tests {
		if got := ParseProvider(in); got != want {
			t.Errorf("ParseProvider(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewTraceProvider_Empty(t *testing.T) {
	tp, err := NewTraceProvider(context.Background(), logger.NewNop(), TracerOptions{Provider: EmptyProvider})
	if err != nil {
		t.Fatalf("NewTraceProvider() error = %v", err)
	}
	if err := tp.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestNewTraceProvider_Unknown(t *testing.T) {
	if _, err := NewTraceProvider(context.Background(), logger.NewNop(), TracerOptions{Provider: "jaeger"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestTracer_RecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tracer := NewTracerFromProvider(trace.NewTracerProvider(trace.WithSpanProcessor(rec)), "apm-test")
	ctx, span := tracer.StartSpanFromContext(context.Background(), "policy.split")
	span.NoticeError(errors.New("invalid percentage"))
	span.End()

	if got := tracer.SpanFromContext(ctx).SpanContext(); !got.IsValid() {
		t.Error("span context should be carried in ctx")
	}

	ended := rec.Ended()
	if len(ended) != 1 || ended[0].Name() != "policy.split" {
		t.Fatalf("ended spans = %v", ended)
	}
	if len(ended[0].Events()) == 0 {
		t.Error("NoticeError should record an error event")
	}
}

func TestSpan_NoticeErrorTagsCode(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tracer := NewTracerFromProvider(trace.NewTracerProvider(trace.WithSpanProcessor(rec)), "apm-test")

	_, span := tracer.StartSpanFromContext(context.Background(), "policy.withdraw")
	span.NoticeError(apperror.Validation(apperror.CodeInsufficientBalance, "withdraw 10 from 5"))
	span.NoticeError(nil)
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d", len(ended))
	}
	var code string
	for _, kv := range ended[0].Attributes() {
		if kv.Key == ErrorCodeKey {
			code = kv.Value.AsString()
		}
	}
	if code != string(apperror.CodeInsufficientBalance) {
		t.Errorf("error.code = %q", code)
	}
	if len(ended[0].Events()) != 1 {
		t.Errorf("events = %d, want one recorded error", len(ended[0].Events()))
	}
}
