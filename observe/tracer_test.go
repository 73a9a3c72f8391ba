package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOpMeta_Names(t *testing.T) {
	tests := []struct {
		meta     OpMeta
		wantID   string
		wantSpan string
	}{
		{OpMeta{Component: "pokedex", Name: "list_creatures"}, "pokedex.list_creatures", "kantodex.pokedex.list_creatures"},
		{OpMeta{Name: "ping"}, "ping", "kantodex.ping"},
	}
	for _, tt := range tests {
		if got := tt.meta.ID(); got != tt.wantID {
			t.Errorf("ID() = %q, want %q", got, tt.wantID)
		}
		if got := tt.meta.SpanName(); got != tt.wantSpan {
			t.Errorf("SpanName() = %q, want %q", got, tt.wantSpan)
		}
	}
}

func TestTracer_SpanAttributesAndStatus(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tr := NewTracer(tp.Tracer("test"))

	meta := OpMeta{Component: "pokedex", Name: "get_detail", Attrs: []attribute.KeyValue{attribute.Int("pokemon.id", 25)}}

	_, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, nil)
	_, span = tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, errors.New("boom"))

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("span 0 status = %v, want Ok", spans[0].Status().Code)
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("span 1 status = %v, want Error", spans[1].Status().Code)
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs["op.id"].AsString() != "pokedex.get_detail" {
		t.Errorf("op.id = %v", attrs["op.id"])
	}
	if attrs["pokemon.id"].AsInt64() != 25 {
		t.Errorf("pokemon.id = %v", attrs["pokemon.id"])
	}
}

func TestNewTracer_NilUsesNoop(t *testing.T) {
	tr := NewTracer(nil)
	_, span := tr.StartSpan(context.Background(), OpMeta{Name: "x"})
	tr.EndSpan(span, nil)
}
