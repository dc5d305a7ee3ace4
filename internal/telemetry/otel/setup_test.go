package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		endpoint     string
		override     bool
		wantTarget   string
		wantInsecure bool
		wantErr      bool
	}{
		{"localhost:4317", false, "localhost:4317", true, false},
		{"http://collector:4317/v1/traces", false, "collector:4317", true, false},
		{"https://collector:4317", false, "collector:4317", false, false},
		{"https://collector:4317", true, "collector:4317", true, false},
		{"http://collector:4317?x=1", false, "collector:4317", true, false},
		{"http://", false, "", false, true},
		{"http://[invalid", false, "", false, true},
		{"://invalid", false, "", false, true},
	}
	for _, tt := range tests {
		col, err := parseEndpoint(tt.endpoint, tt.override)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseEndpoint(%q) should fail", tt.endpoint)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseEndpoint(%q): %v", tt.endpoint, err)
			continue
		}
		if col.target != tt.wantTarget || col.insecure != tt.wantInsecure {
			t.Errorf("parseEndpoint(%q) = %+v, want target %q insecure %v", tt.endpoint, col, tt.wantTarget, tt.wantInsecure)
		}
	}
}

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		p, err := NewProviders(ctx, Options{Endpoint: endpoint, ServiceName: "kogase-engine-test"})
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil {
			t.Fatalf("providers should all be set: %+v", p)
		}
		if err := p.Shutdown(ctx); err != nil {
			t.Errorf("no-op shutdown: %v", err)
		}
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	if _, err := NewProviders(context.Background(), Options{Endpoint: "http://"}); err == nil {
		t.Fatal("missing host should fail")
	}
}

func TestSetGlobal(t *testing.T) {
	oldTP, oldMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(oldTP)
		otel.SetMeterProvider(oldMP)
	}()

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	(&Providers{TracerProvider: tp}).SetGlobal()
	if otel.GetTracerProvider() != tp {
		t.Error("TracerProvider should be installed")
	}
	if otel.GetMeterProvider() != oldMP {
		t.Error("MeterProvider should be untouched when nil")
	}
}
