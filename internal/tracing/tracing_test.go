package tracing

import (
	"context"
	"strings"
	"testing"

	"github.com/mealmind/e2eharness/internal/config"
)

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	p, err := Init(ctx, config.TracingConfig{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if p.Tracer() == nil {
		t.Fatal("disabled provider returned nil tracer")
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown of disabled provider: %v", err)
	}
}

func TestInitBadProtocol(t *testing.T) {
	_, err := Init(context.Background(), config.TracingConfig{
		Endpoint:   "localhost:4317",
		Protocol:   "carrier-pigeon",
		SampleRate: 1.0,
	})
	if err == nil {
		t.Fatal("expected error for unsupported protocol")
	}
	if !strings.Contains(err.Error(), "carrier-pigeon") {
		t.Errorf("error = %q, want protocol name", err)
	}
}

func TestInitBadSampleRate(t *testing.T) {
	_, err := Init(context.Background(), config.TracingConfig{
		Endpoint:   "localhost:4317",
		Protocol:   "grpc",
		Insecure:   true,
		SampleRate: 3.5,
	})
	if err == nil {
		t.Fatal("expected error for out-of-range sample rate")
	}
}

func TestNilProvider(t *testing.T) {
	var p *Provider

	if p.Tracer() == nil {
		t.Error("nil provider returned nil tracer")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown on nil provider: %v", err)
	}
}
