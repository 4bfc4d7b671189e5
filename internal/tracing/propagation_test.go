package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestPropagateToLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "trace-123")
	ctx = WithWorkspace(ctx, "default")

	l := LoggerFromContext(ctx, logger)
	l.Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"trace_id":"trace-123"`) {
		t.Errorf("Expected trace_id in log output, got %s", out)
	}
	if !strings.Contains(out, `"workspace":"default"`) {
		t.Errorf("Expected workspace in log output, got %s", out)
	}
	if strings.Contains(out, "command_id") {
		t.Errorf("Did not expect command_id in log output, got %s", out)
	}
}

func TestMergeContext(t *testing.T) {
	source := WithTraceID(context.Background(), "source-trace")
	source = WithProfile(source, "source-profile")

	target := WithProfile(context.Background(), "target-profile")

	merged := MergeContext(target, source)

	if GetTraceID(merged) != "source-trace" {
		t.Errorf("Expected trace ID from source, got %s", GetTraceID(merged))
	}
	if GetProfile(merged) != "target-profile" {
		t.Errorf("Expected target profile to win, got %s", GetProfile(merged))
	}
}

func TestStartSpanAssignsTraceID(t *testing.T) {
	if err := InitOpenTelemetry("nodeshell-test"); err != nil {
		t.Fatalf("InitOpenTelemetry failed: %v", err)
	}

	ctx, span := StartSpan(context.Background(), "nodeshell.test", "test.span")
	EndSpan(span, nil)

	if GetTraceID(ctx) == "" {
		t.Error("Expected trace ID after StartSpan with SDK provider")
	}
}
