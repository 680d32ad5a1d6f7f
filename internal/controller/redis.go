package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DoyleJ11/doodle-play-backend/internal/engine"
)

// Redis listens on a pub/sub channel. A channel containing glob
// characters is subscribed with PSUBSCRIBE.
type Redis struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedis(url, channel string, log *zap.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts), channel: channel, log: log}, nil
}

func isPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

func (r *Redis) Run(ctx context.Context, onPayload func(engine.Payload), onStatus func(Status)) error {
	defer r.client.Close()

	onStatus(Status{Connecting: true})

	var ps *redis.PubSub
	if isPattern(r.channel) {
		ps = r.client.PSubscribe(ctx, r.channel)
	} else {
		ps = r.client.Subscribe(ctx, r.channel)
	}
	defer ps.Close()

	// The first reply confirms the subscription. On failure the channel
	// below keeps reconnecting in the background.
	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		r.log.Warn("redis subscribe failed", zap.String("channel", r.channel), zap.Error(err))
		onStatus(Status{Err: err.Error()})
	} else {
		r.log.Info("redis subscribed", zap.String("channel", r.channel))
		onStatus(Status{Connected: true})
	}

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			deliver(r.log, []byte(m.Payload), onPayload)
		}
	}
}
