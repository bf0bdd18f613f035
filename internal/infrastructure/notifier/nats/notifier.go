package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/printpoint/handoff/internal/core/domain"
	"github.com/printpoint/handoff/internal/infrastructure/resilience"
)

// Notifier publishes pickup-code messages for an out-of-process delivery
// worker (SMS/email transport is outside the core). The core only needs
// "deliver this short text to this address".
type Notifier struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

// Delivery is the wire shape shared by the publisher and the courier
// consumer.
type Delivery struct {
	Destination string    `json:"destination"`
	Body        string    `json:"body"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string) (*Notifier, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Notifier, error) {
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
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("handoff-notifier"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Notifier{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (n *Notifier) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

// Send enqueues one delivery. The destination and body go out; the pickup
// code inside the body is never logged here.
func (n *Notifier) Send(ctx context.Context, destination, body string) error {
	payload, err := json.Marshal(Delivery{
		Destination: destination,
		Body:        body,
		EnqueuedAt:  time.Now().UTC(),
	})
	if err != nil {
		return domain.WrapError(domain.ErrDelivery, "encode notification", err)
	}

	call := func(_ context.Context) error {
		if err := n.conn.Publish(n.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if n.executor != nil {
		err = n.executor.Execute(ctx, "notifier.send", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.WrapError(domain.ErrDelivery, "send notification", err)
	}
	return nil
}

// Subscribe consumes deliveries until ctx is cancelled. Consumers share
// the "couriers" queue group so a message reaches exactly one courier.
// A handler error is logged and the message dropped; the uploader API
// treats delivery as best-effort and never waits on it.
func (n *Notifier) Subscribe(ctx context.Context, handler func(context.Context, Delivery) error) error {
	sub, err := n.conn.QueueSubscribe(n.subject, "couriers", func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}

		var delivery Delivery
		if err := json.Unmarshal(msg.Data, &delivery); err != nil {
			slog.Warn("malformed delivery dropped", "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, delivery); err != nil {
			slog.Error("delivery failed", "destination", delivery.Destination, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := n.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := n.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
