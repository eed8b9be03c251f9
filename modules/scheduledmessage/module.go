// Package scheduledmessage delivers stored one-shot messages when due.
//
// A descriptor is one structured record of the form:
//
//	{"type": "scheduled-message", "to": "@someone", "message": "text",
//	 "deliver_at": "2026-09-01T09:00:00Z", "id": "optional-stable-id"}
//
// Delivery happens on the first cycle at or after deliver_at. A delivery
// marker is logged back to the tenant's experience memory in whichever
// representation that category currently holds, and the category is checked
// for that marker before sending, so redeliveries are suppressed without any
// worker-local state.
package scheduledmessage

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"time"

	"memorykeep/internal/notify"
	"memorykeep/pkg/memorykeep"
)

// ModuleType is the declared type this handler serves.
const ModuleType = "scheduled-message"

const markerCategory = memorykeep.DefaultCategory

// Module is the scheduled-message automation handler.
type Module struct {
	notifier notify.Notifier
	client   memorykeep.MemoryClient
	logger   *slog.Logger

	now func() time.Time
}

// New creates the handler.
func New(notifier notify.Notifier, client memorykeep.MemoryClient, logger *slog.Logger) (*Module, error) {
	if notifier == nil {
		return nil, fmt.Errorf("new scheduled-message module: nil notifier")
	}
	if client == nil {
		return nil, fmt.Errorf("new scheduled-message module: nil memory client")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Module{
		notifier: notifier,
		client:   client,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Handle delivers one scheduled message if it is due and not yet delivered.
func (m *Module) Handle(ctx context.Context, invocation memorykeep.Invocation) error {
	text := strings.TrimSpace(invocation.Descriptor.String("message"))
	if text == "" {
		return fmt.Errorf("scheduled-message: descriptor has no message")
	}

	if rawDeliverAt := strings.TrimSpace(invocation.Descriptor.String("deliver_at")); rawDeliverAt != "" {
		deliverAt, err := time.Parse(time.RFC3339, rawDeliverAt)
		if err != nil {
			return fmt.Errorf("scheduled-message: parse deliver_at %q: %w", rawDeliverAt, err)
		}
		if m.now().Before(deliverAt) {
			return nil
		}
	}

	marker := deliveryMarker(invocation.Descriptor)
	markerMemory, markerMemoryExists := m.markerMemory(ctx, invocation)
	if markerMemoryExists && containsMarker(markerMemory, marker) {
		return nil
	}

	message := notify.Message{
		To:   strings.TrimSpace(invocation.Descriptor.String("to")),
		Text: text,
	}
	if err := m.notifier.Send(ctx, message); err != nil {
		return fmt.Errorf("scheduled-message: %w", err)
	}

	m.logger.Info("scheduled message delivered",
		"tenant", invocation.Tenant,
		"to", message.To,
	)

	// The marker write is best effort: delivery already happened, so a
	// failed write-back is logged rather than failing the handler.
	entry := markerEntry(markerMemory, markerMemoryExists, marker)
	if err := m.client.Append(ctx, invocation.Credential, markerCategory, entry); err != nil {
		m.logger.Warn("record delivery marker failed",
			"tenant", invocation.Tenant,
			"error", err,
		)
	}

	return nil
}

// markerMemory returns the marker category's current payload, reading it
// through the client when the cycle snapshot does not carry the category.
func (m *Module) markerMemory(
	ctx context.Context,
	invocation memorykeep.Invocation,
) (memorykeep.Payload, bool) {
	payload, exists := invocation.Memories[markerCategory]
	if exists {
		return payload, true
	}

	payload, found, err := m.client.Read(ctx, invocation.Credential, markerCategory)
	if err != nil {
		m.logger.Warn("read delivery markers failed",
			"tenant", invocation.Tenant,
			"error", err,
		)
		return memorykeep.Payload{}, false
	}

	return payload, found
}

// containsMarker scans whichever representation the category holds.
func containsMarker(payload memorykeep.Payload, marker string) bool {
	switch payload.Format {
	case memorykeep.FormatRaw:
		return strings.Contains(payload.Text, marker)
	case memorykeep.FormatStructured:
		return strings.Contains(string(payload.JSON), marker)
	default:
		return false
	}
}

// markerEntry shapes the marker to match the category's current
// representation. A structured category gets a structured record; read
// precedence would otherwise shadow a raw marker line forever.
func markerEntry(payload memorykeep.Payload, exists bool, marker string) any {
	if exists && payload.Format == memorykeep.FormatStructured {
		return map[string]any{"event": marker}
	}

	return marker
}

// deliveryMarker derives a stable marker line for one descriptor. An
// explicit id wins; otherwise the recipient and message text are hashed.
func deliveryMarker(descriptor memorykeep.ModuleDescriptor) string {
	id := strings.TrimSpace(descriptor.String("id"))
	if id == "" {
		digest := fnv.New64a()
		digest.Write([]byte(descriptor.String("to")))
		digest.Write([]byte{0})
		digest.Write([]byte(descriptor.String("message")))
		id = fmt.Sprintf("%x", digest.Sum64())
	}

	return fmt.Sprintf("scheduled-message %s delivered", id)
}
