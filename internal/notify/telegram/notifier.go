// Package telegram delivers notifications through a Telegram user session.
//
// The session must already be authorized out of band; the notifier refuses
// to start an interactive login from inside the worker loop.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"

	"memorykeep/internal/notify"
)

// Config configures the Telegram notifier.
type Config struct {
	// AppID is the Telegram API application identifier.
	AppID int
	// AppHash is the Telegram API application hash.
	AppHash string
	// SessionFile stores the authorized MTProto session.
	SessionFile string
}

// Validate checks notifier configuration.
func (c Config) Validate() error {
	if c.AppID <= 0 {
		return fmt.Errorf("validate telegram config: app id must be > 0")
	}
	if strings.TrimSpace(c.AppHash) == "" {
		return fmt.Errorf("validate telegram config: missing app hash")
	}
	if strings.TrimSpace(c.SessionFile) == "" {
		return fmt.Errorf("validate telegram config: missing session file")
	}

	return nil
}

// sessionClient abstracts one gotd client session for tests.
//
// AuthStatus and SendText are only valid inside the Run callback.
type sessionClient interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
	AuthStatus(ctx context.Context) (bool, error)
	SendText(ctx context.Context, recipient string, text string) error
}

type gotdSessionClient struct {
	client *telegram.Client
}

func (c gotdSessionClient) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.client.Run(ctx, fn)
}

func (c gotdSessionClient) AuthStatus(ctx context.Context) (bool, error) {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return false, err
	}

	return status.Authorized, nil
}

func (c gotdSessionClient) SendText(ctx context.Context, recipient string, text string) error {
	sender := message.NewSender(c.client.API())
	_, err := sender.Resolve(recipient).Text(ctx, text)

	return err
}

// Notifier sends messages through gotd.
//
// Each Send runs one short-lived client session. Scheduled messages are low
// volume, so connection reuse is not worth holding an MTProto session open
// between worker cycles.
type Notifier struct {
	cfg Config

	// newClient is swappable in tests.
	newClient func() sessionClient
}

// New creates a Telegram notifier from config.
func New(cfg Config) (*Notifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new telegram notifier: %w", err)
	}

	notifier := &Notifier{cfg: cfg}
	notifier.newClient = func() sessionClient {
		return gotdSessionClient{
			client: telegram.NewClient(cfg.AppID, cfg.AppHash, telegram.Options{
				SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
			}),
		}
	}

	return notifier, nil
}

// Send resolves the recipient and delivers one text message.
func (n *Notifier) Send(ctx context.Context, msg notify.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	recipient := strings.TrimPrefix(strings.TrimSpace(msg.To), "@")
	if recipient == "" {
		return fmt.Errorf("telegram send: empty recipient")
	}

	client := n.newClient()
	err := client.Run(ctx, func(runCtx context.Context) error {
		authorized, err := client.AuthStatus(runCtx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !authorized {
			return fmt.Errorf("session is not authorized")
		}

		if err := client.SendText(runCtx, recipient, msg.Text); err != nil {
			return fmt.Errorf("send to %s: %w", recipient, err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}

	return nil
}
