package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithAttrsOverridesExistingKey(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "text", "info"))
	ctx = WithAttrs(ctx, slog.String("component", "a"), slog.String("app", "celiaquia"))
	ctx = WithAttrs(ctx, slog.String("component", "b"))

	Info(ctx, "hello")

	out := buf.String()
	if !strings.Contains(out, "component=b") || strings.Contains(out, "component=a") {
		t.Fatalf("unexpected output: %s", out)
	}
	if !strings.Contains(out, "app=celiaquia") {
		t.Fatalf("missing app attr: %s", out)
	}
}

func TestWithExpedienteAndLevel(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "json", "warn"))
	ctx = WithExpediente(ctx, 7, 0)

	Info(ctx, "dropped")
	Warn(ctx, "kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info record must be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"expediente_id":7`) || strings.Contains(out, "legajo_id") {
		t.Fatalf("unexpected attrs: %s", out)
	}
}
