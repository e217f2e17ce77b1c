package natschat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/resilience"
)

// publisher is the subset of *nats.Conn the channel needs.
type publisher interface {
	Publish(subject string, data []byte) error
	IsConnected() bool
}

// Channel posts assistant messages to a chat widget listening on a subject.
type Channel struct {
	conn     publisher
	closer   func()
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

func Connect(url, subject string, options Options) (*Channel, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("mailbills-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	ch := newChannel(conn, subject, options.ResilienceExecutor, logger)
	ch.closer = conn.Close
	return ch, nil
}

func newChannel(conn publisher, subject string, executor *resilience.Executor, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		conn:     conn,
		subject:  subject,
		executor: executor,
		logger:   logger,
	}
}

func (c *Channel) Close() {
	if c != nil && c.closer != nil {
		c.closer()
	}
}

// Available reports whether a message published now would reach the server.
func (c *Channel) Available(_ context.Context) bool {
	return c != nil && c.conn != nil && c.conn.IsConnected()
}

type message struct {
	Role    string   `json:"role"`
	Text    string   `json:"text,omitempty"`
	Intro   string   `json:"intro,omitempty"`
	Bullets []string `json:"bullets,omitempty"`
}

func (c *Channel) Say(ctx context.Context, role, text string) error {
	return c.publish(ctx, message{Role: role, Text: text})
}

func (c *Channel) SayBullets(ctx context.Context, role, intro string, bullets []string) error {
	return c.publish(ctx, message{Role: role, Intro: intro, Bullets: bullets})
}

func (c *Channel) publish(ctx context.Context, msg message) error {
	if !c.Available(ctx) {
		return domain.WrapError(domain.ErrTransport, "chat publish", nats.ErrDisconnected)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal chat message: %w", err)
	}

	err = c.executor.Execute(ctx, "chat.publish", func(context.Context) error {
		if err := c.conn.Publish(c.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}, countsAgainstBreaker)
	if err != nil {
		return domain.WrapError(domain.ErrTransport, "chat publish", err)
	}
	return nil
}

func countsAgainstBreaker(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
