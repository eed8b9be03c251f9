package worker

import (
	"context"
	"errors"
	"testing"

	"memorykeep/pkg/memorykeep"
)

func noopHandler() memorykeep.AutomationHandler {
	return memorykeep.HandlerFunc(func(context.Context, memorykeep.Invocation) error {
		return nil
	})
}

func TestHandlerRegistryRegisterAndResolve(t *testing.T) {
	t.Parallel()

	registry := NewHandlerRegistry()
	handler := noopHandler()
	if err := registry.Register("scheduled-message", handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	resolved, exists := registry.Resolve("scheduled-message")
	if !exists {
		t.Fatal("registered handler not resolved")
	}
	if resolved == nil {
		t.Fatal("resolved handler is nil")
	}

	if _, exists := registry.Resolve("email-monitor"); exists {
		t.Fatal("unregistered type resolved")
	}
}

func TestHandlerRegistryRejectsInvalidRegistrations(t *testing.T) {
	t.Parallel()

	registry := NewHandlerRegistry()
	if err := registry.Register("", noopHandler()); err == nil {
		t.Fatal("empty module type accepted")
	}
	if err := registry.Register("scheduled-message", nil); err == nil {
		t.Fatal("nil handler accepted")
	}

	if err := registry.Register("scheduled-message", noopHandler()); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := registry.Register("scheduled-message", noopHandler())
	if !errors.Is(err, memorykeep.ErrHandlerAlreadyRegistered) {
		t.Fatalf("duplicate registration error = %v, want ErrHandlerAlreadyRegistered", err)
	}
}

func TestHandlerRegistryTypesAreSorted(t *testing.T) {
	t.Parallel()

	registry := NewHandlerRegistry()
	for _, moduleType := range []string{"memory-summary", "scheduled-message", "email-monitor"} {
		if err := registry.Register(moduleType, noopHandler()); err != nil {
			t.Fatalf("register %s: %v", moduleType, err)
		}
	}

	types := registry.Types()
	want := []string{"email-monitor", "memory-summary", "scheduled-message"}
	if len(types) != len(want) {
		t.Fatalf("types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("types = %v, want %v", types, want)
		}
	}
}
