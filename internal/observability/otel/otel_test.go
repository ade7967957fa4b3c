package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/govgate/govgate/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled is always valid", Config{Enabled: false, Protocol: "invalid", SampleRatio: -1}, false},
		{"valid otlphttp", Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: 0.5}, false},
		{"valid otlpgrpc", Config{Enabled: true, Protocol: ProtocolGRPC, SampleRatio: 1.0}, false},
		{"invalid protocol", Config{Enabled: true, Protocol: "zipkin", SampleRatio: 1.0}, true},
		{"sample ratio below 0", Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: -0.1}, true},
		{"sample ratio above 1", Config{Enabled: true, Protocol: ProtocolHTTP, SampleRatio: 1.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Endpoint(t *testing.T) {
	noEnv := func(string) string { return "" }
	withEnv := func(string) string { return "http://collector:4318" }

	tests := []struct {
		name string
		cfg  Config
		env  func(string) string
		want string
	}{
		{"explicit", Config{Endpoint: "http://otel:4318"}, withEnv, "http://otel:4318"},
		{"env", Config{Protocol: ProtocolHTTP}, withEnv, "http://collector:4318"},
		{"http default", Config{Protocol: ProtocolHTTP}, noEnv, "http://localhost:4318"},
		{"grpc default", Config{Protocol: ProtocolGRPC}, noEnv, "localhost:4317"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.endpoint(tt.env); got != tt.want {
				t.Errorf("endpoint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStart_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	ctx := observability.WithGivenOpID(context.Background(), "abc-123")
	ctx = WithHandle(ctx, InitWithProvider(tp))

	ctx, end := Start(ctx, "govgate.evaluate", attribute.String(AttrPrefix+"policy_version", "1.0.0"))
	Annotate(ctx, attribute.String(AttrPrefix+"status", "passed"))
	end(nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "govgate.evaluate" {
		t.Errorf("span name = %q", s.Name())
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.Status().Code)
	}

	got := map[string]string{}
	for _, attr := range s.Attributes() {
		got[string(attr.Key)] = attr.Value.AsString()
	}
	for key, want := range map[string]string{
		"govgate.op_id":          "abc-123",
		"govgate.policy_version": "1.0.0",
		"govgate.status":         "passed",
	} {
		if got[key] != want {
			t.Errorf("%s = %q, want %q", key, got[key], want)
		}
	}
}

func TestStart_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ctx := WithHandle(context.Background(), InitWithProvider(tp))

	_, end := Start(ctx, "govgate.policy.merge")
	end(errors.New("coverage_min may not be relaxed"))

	s := recorder.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("span status = %v, want Error", s.Status().Code)
	}
	found := false
	for _, e := range s.Events() {
		if e.Name == "exception" {
			found = true
		}
	}
	if !found {
		t.Error("expected exception event")
	}
}

func TestStart_DisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	got, end := Start(ctx, "govgate.evaluate")
	end(errors.New("ignored"))
	if got != ctx {
		t.Error("disabled Start must return the same context")
	}
}

func TestContextRoundtrip(t *testing.T) {
	ctx := context.Background()
	if h := From(ctx); h != nil {
		t.Error("expected nil handle from empty context")
	}
	handle := &Handle{}
	ctx = WithHandle(ctx, handle)
	if got := From(ctx); got != handle {
		t.Error("expected to retrieve the same handle from context")
	}
}

func TestHandle_Close(t *testing.T) {
	var off *Handle
	if err := off.Close(time.Second); err != nil {
		t.Errorf("nil handle Close: %v", err)
	}
	if ctx := WithHandle(context.Background(), nil); From(ctx) != nil {
		t.Error("nil handle must not be attached")
	}

	flushed := false
	h := &Handle{Shutdown: func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("shutdown context has no deadline")
		}
		flushed = true
		return nil
	}}
	if err := h.Close(time.Second); err != nil || !flushed {
		t.Errorf("Close = %v, flushed = %v", err, flushed)
	}
}
