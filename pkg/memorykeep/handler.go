package memorykeep

import "context"

// Invocation carries everything one automation handler call needs.
type Invocation struct {
	// Tenant is the tenant display name.
	Tenant string
	// Credential is the tenant's Memory API credential.
	Credential string
	// Descriptor is the record that matched the handler's module type.
	Descriptor ModuleDescriptor
	// Category is the category the descriptor was fetched from.
	Category string
	// Memories holds every category fetched for this tenant in the current
	// cycle, so handlers can cross-reference without extra network calls.
	Memories map[string]Payload
}

// AutomationHandler processes module descriptors of one declared type.
//
// Handlers must be concurrency-safe with respect to their own state; the
// dispatcher recovers panics, so a failing handler never stops the cycle.
type AutomationHandler interface {
	// Handle processes one matched descriptor.
	Handle(ctx context.Context, invocation Invocation) error
}

// HandlerFunc adapts a plain function to AutomationHandler.
type HandlerFunc func(ctx context.Context, invocation Invocation) error

// Handle calls the wrapped function.
func (f HandlerFunc) Handle(ctx context.Context, invocation Invocation) error {
	return f(ctx, invocation)
}

// MemoryClient is the Memory API surface consumed by the worker and its
// automation handlers.
type MemoryClient interface {
	// Read fetches one category's memory. The boolean reports presence; a
	// missing memory is not an error.
	Read(ctx context.Context, credential string, category string) (Payload, bool, error)
	// Append logs one entry under a category.
	Append(ctx context.Context, credential string, category string, entry any) error
	// Overwrite replaces a category's memory with entry.
	Overwrite(ctx context.Context, credential string, category string, entry any) error
}
