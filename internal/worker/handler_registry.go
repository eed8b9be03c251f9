package worker

import (
	"fmt"
	"sort"
	"sync"

	"memorykeep/pkg/memorykeep"
)

// HandlerRegistry maps declared module types to automation handlers.
//
// New automation modules are added by registering an implementation, not by
// editing a dispatch table. Unregistered types are skipped by the worker, so
// unknown modules stored by forward-compatible clients never error the loop.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]memorykeep.AutomationHandler
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]memorykeep.AutomationHandler),
	}
}

// Register binds one module type to a handler.
func (r *HandlerRegistry) Register(moduleType string, handler memorykeep.AutomationHandler) error {
	if moduleType == "" {
		return fmt.Errorf("register handler: empty module type")
	}
	if handler == nil {
		return fmt.Errorf("register handler %s: nil handler", moduleType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[moduleType]; exists {
		return fmt.Errorf("register handler %s: %w", moduleType, memorykeep.ErrHandlerAlreadyRegistered)
	}

	r.handlers[moduleType] = handler

	return nil
}

// Resolve returns the handler registered for one module type.
func (r *HandlerRegistry) Resolve(moduleType string) (memorykeep.AutomationHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, exists := r.handlers[moduleType]

	return handler, exists
}

// Types returns all registered module types in sorted order.
func (r *HandlerRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for moduleType := range r.handlers {
		types = append(types, moduleType)
	}
	sort.Strings(types)

	return types
}
