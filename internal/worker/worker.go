// Package worker runs the automation polling loop.
//
// Each cycle reloads the tenant whitelist, fetches every tenant's memory
// categories through the Memory API, classifies structured records into
// module descriptors, and dispatches them to registered automation handlers.
// Failure is isolated per cycle, per tenant, and per handler invocation:
// nothing short of process termination stops the loop.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"memorykeep/internal/registry"
	"memorykeep/pkg/memorykeep"
)

const (
	defaultPollInterval   = 60 * time.Second
	defaultHandlerTimeout = 30 * time.Second
)

// DefaultCategories are the categories polled when none are configured.
var DefaultCategories = []string{"core", "notebook", "experience"}

// Config configures one automation worker.
type Config struct {
	// WhitelistPath locates the tenant whitelist, reloaded every cycle.
	WhitelistPath string
	// Client calls the Memory API.
	Client memorykeep.MemoryClient
	// Handlers resolves module types to automation handlers.
	Handlers *HandlerRegistry
	// Categories are the memory categories polled per tenant. Empty uses
	// DefaultCategories.
	Categories []string
	// PollInterval is the fixed sleep between cycles. Zero uses a default.
	PollInterval time.Duration
	// HandlerTimeout bounds one handler invocation. Zero uses a default.
	HandlerTimeout time.Duration
	// Logger receives cycle diagnostics. Nil uses slog.Default.
	Logger *slog.Logger
}

// Worker is the polling automation dispatcher.
type Worker struct {
	whitelistPath  string
	client         memorykeep.MemoryClient
	handlers       *HandlerRegistry
	categories     []string
	pollInterval   time.Duration
	handlerTimeout time.Duration
	logger         *slog.Logger

	// loadRegistry is swappable in tests.
	loadRegistry func() *registry.Registry
}

// New builds a Worker from config.
func New(cfg Config) (*Worker, error) {
	if cfg.WhitelistPath == "" {
		return nil, fmt.Errorf("new worker: empty whitelist path")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("new worker: nil memory client")
	}
	if cfg.Handlers == nil {
		return nil, fmt.Errorf("new worker: nil handler registry")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	categories := cfg.Categories
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	handlerTimeout := cfg.HandlerTimeout
	if handlerTimeout <= 0 {
		handlerTimeout = defaultHandlerTimeout
	}

	worker := &Worker{
		whitelistPath:  cfg.WhitelistPath,
		client:         cfg.Client,
		handlers:       cfg.Handlers,
		categories:     append([]string(nil), categories...),
		pollInterval:   pollInterval,
		handlerTimeout: handlerTimeout,
		logger:         logger,
	}
	worker.loadRegistry = func() *registry.Registry {
		return registry.Load(worker.whitelistPath, worker.logger)
	}

	return worker, nil
}

// Run polls until ctx is cancelled. Cancellation is a clean exit.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("automation worker started",
		"categories", w.categories,
		"poll_interval", w.pollInterval,
		"handlers", w.handlers.Types(),
	)

	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	for {
		if err := runSafely("automation cycle", func() error {
			w.runCycle(ctx)
			return nil
		}); err != nil {
			w.logger.Error("automation cycle failed", "error", err)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.pollInterval)

		select {
		case <-ctx.Done():
			w.logger.Info("automation worker stopped")
			return nil
		case <-timer.C:
		}
	}
}

// RunCycle executes exactly one polling cycle. It backs Run and is exported
// for one-shot operation and tests.
func (w *Worker) RunCycle(ctx context.Context) {
	w.runCycle(ctx)
}

func (w *Worker) runCycle(ctx context.Context) {
	reg := w.loadRegistry()
	if reg.Len() == 0 {
		w.logger.Warn("no tenants loaded, skipping cycle", "whitelist", w.whitelistPath)
		return
	}

	for _, tenant := range reg.Tenants() {
		if ctx.Err() != nil {
			return
		}
		w.processTenant(ctx, tenant)
	}
}

// processTenant fetches, classifies, and dispatches one tenant's memories.
// Fetch failures for one category do not stop the remaining categories.
func (w *Worker) processTenant(ctx context.Context, tenant registry.Tenant) {
	memories := make(map[string]memorykeep.Payload, len(w.categories))
	for _, category := range w.categories {
		payload, found, err := w.client.Read(ctx, tenant.Credential, category)
		if err != nil {
			w.logger.Error("fetch memory failed",
				"tenant", tenant.Name,
				"category", category,
				"error", err,
			)
			continue
		}
		if !found {
			continue
		}
		memories[category] = payload
	}
	if len(memories) == 0 {
		return
	}

	for _, category := range w.categories {
		payload, exists := memories[category]
		if !exists {
			continue
		}
		for _, descriptor := range memorykeep.DescriptorsFromPayload(payload) {
			w.dispatch(ctx, tenant, category, descriptor, memories)
		}
	}
}

// dispatch invokes the handler matching one descriptor's declared type.
// Unregistered types are skipped silently.
func (w *Worker) dispatch(
	ctx context.Context,
	tenant registry.Tenant,
	category string,
	descriptor memorykeep.ModuleDescriptor,
	memories map[string]memorykeep.Payload,
) {
	moduleType := descriptor.ModuleType()
	if moduleType == "" {
		return
	}
	handler, exists := w.handlers.Resolve(moduleType)
	if !exists {
		return
	}

	w.logger.Info("running automation handler",
		"tenant", tenant.Name,
		"category", category,
		"module_type", moduleType,
	)

	invocationCtx, cancel := context.WithTimeout(ctx, w.handlerTimeout)
	defer cancel()

	err := runSafely("handler "+moduleType, func() error {
		return handler.Handle(invocationCtx, memorykeep.Invocation{
			Tenant:     tenant.Name,
			Credential: tenant.Credential,
			Descriptor: descriptor,
			Category:   category,
			Memories:   memories,
		})
	})
	if err != nil {
		w.logger.Error("automation handler failed",
			"tenant", tenant.Name,
			"category", category,
			"module_type", moduleType,
			"error", err,
		)
	}
}
