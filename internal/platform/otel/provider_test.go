package otel_test

import (
	"context"
	"testing"

	"github.com/robdanz/tf-cf-dni-list/internal/platform/otel"
)

func TestSetupNoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("DNI_LIST_OTEL_ENDPOINT", "")
	t.Setenv("DNI_LIST_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "dnilist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupNoopWhenDisabled(t *testing.T) {
	t.Setenv("DNI_LIST_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("DNI_LIST_OTEL_ENABLED", "false")

	shutdown, err := otel.Setup(context.Background(), "dnilist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
