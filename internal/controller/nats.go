package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/DoyleJ11/doodle-play-backend/internal/engine"
)

// NATS subscribes to a subject; `*` and `>` wildcards are allowed.
type NATS struct {
	URL     string
	Subject string
	Name    string
	Log     *zap.Logger
}

func (n *NATS) Run(ctx context.Context, onPayload func(engine.Payload), onStatus func(Status)) error {
	log := n.Log
	if log == nil {
		log = zap.NewNop()
	}

	onStatus(Status{Connecting: true})
	nc, err := nats.Connect(n.URL,
		nats.Name(n.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ConnectHandler(func(*nats.Conn) {
			onStatus(Status{Connected: true})
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
			onStatus(Status{Connecting: true})
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
			onStatus(Status{Connected: true})
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Debug("nats connection closed")
		}),
	)
	if err != nil {
		n.fail(ctx, log, onStatus, fmt.Errorf("nats connect: %w", err))
		return nil
	}

	sub, err := nc.Subscribe(n.Subject, func(m *nats.Msg) {
		deliver(log, m.Data, onPayload)
	})
	if err != nil {
		nc.Close()
		n.fail(ctx, log, onStatus, fmt.Errorf("nats subscribe %q: %w", n.Subject, err))
		return nil
	}
	log.Info("nats subscribed", zap.String("subject", sub.Subject))
	if nc.IsConnected() {
		onStatus(Status{Connected: true})
	}

	<-ctx.Done()
	if err := nc.Drain(); err != nil {
		nc.Close()
	}
	return nil
}

// fail reports err as the link status and blocks until ctx is done.
func (n *NATS) fail(ctx context.Context, log *zap.Logger, onStatus func(Status), err error) {
	log.Error("nats transport unavailable", zap.Error(err))
	onStatus(Status{Err: err.Error()})
	<-ctx.Done()
}
