package telemetry

import (
	"context"
	"testing"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}

	_, span := Tracer().Start(context.Background(), "probe")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Error("no-op provider should produce invalid span contexts")
	}
}

func TestExporterOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		endpoint string
		wantErr  bool
	}{
		{"url", "http://localhost:4318", false},
		{"https", "https://otel.example.com/v1/traces", false},
		{"host port", "localhost:4318", false},
		{"bad scheme", "grpc://localhost:4317", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts, err := exporterOptions(Config{OTLPEndpoint: tt.endpoint, Insecure: true})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(opts) == 0 {
				t.Error("expected exporter options")
			}
		})
	}
}
