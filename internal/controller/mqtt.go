package controller

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/DoyleJ11/doodle-play-backend/internal/engine"
)

// MQTT subscribes to a topic (wildcards allowed) on one broker. Broker
// URLs may use tcp://, ssl://, ws:// or wss://.
type MQTT struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
	Log      *zap.Logger
}

func (m *MQTT) Run(ctx context.Context, onPayload func(engine.Payload), onStatus func(Status)) error {
	log := m.Log
	if log == nil {
		log = zap.NewNop()
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		deliver(log, msg.Payload(), onPayload)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(m.Broker).
		SetClientID(m.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetMaxReconnectInterval(10 * time.Second)
	if m.Username != "" {
		opts.SetUsername(m.Username)
		opts.SetPassword(m.Password)
	}

	// Subscriptions do not survive a clean-session reconnect, so every
	// connect subscribes again.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		tok := c.Subscribe(m.Topic, m.QoS, handler)
		go func() {
			<-tok.Done()
			if err := tok.Error(); err != nil {
				log.Warn("mqtt subscribe failed", zap.String("topic", m.Topic), zap.Error(err))
				onStatus(Status{Err: "subscribe failed: " + err.Error()})
				return
			}
			log.Info("mqtt subscribed", zap.String("broker", m.Broker), zap.String("topic", m.Topic))
			onStatus(Status{Connected: true})
		}()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", zap.Error(err))
		onStatus(Status{Err: "connection lost: " + err.Error()})
	})
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		onStatus(Status{Connecting: true})
	})

	onStatus(Status{Connecting: true})
	client := mqtt.NewClient(opts)
	tok := client.Connect()

	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			log.Warn("mqtt connect failed", zap.Error(err))
			onStatus(Status{Err: err.Error()})
		}
	case <-ctx.Done():
	}

	<-ctx.Done()
	client.Disconnect(250)
	return nil
}
