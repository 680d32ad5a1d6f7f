package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/doodle-play-backend/internal/engine"
	wire "github.com/DoyleJ11/doodle-play-backend/pkg/types"
)

var (
	ErrEmptyMessage     = errors.New("empty controller message")
	ErrMalformedMessage = errors.New("malformed controller message")
	ErrUnknownTransport = errors.New("unknown transport")
)

// Status is what the stage header shows about the controller link.
type Status struct {
	Connected  bool
	Connecting bool
	Err        string
}

func (s Status) Describe() string {
	switch {
	case s.Err != "":
		return s.Err
	case s.Connected:
		return "controller connected"
	case s.Connecting:
		return "connecting..."
	default:
		return "waiting for connection"
	}
}

func (s Status) Wire() wire.Status {
	return wire.Status{
		Connected:  s.Connected,
		Connecting: s.Connecting,
		Error:      s.Err,
		Text:       s.Describe(),
	}
}

// Transport subscribes to controller messages until ctx is cancelled.
// Reconnection is left to the underlying client library; onStatus is
// called on every link change and onPayload for every decoded message.
// Both callbacks run on library goroutines and must not block.
type Transport interface {
	Run(ctx context.Context, onPayload func(engine.Payload), onStatus func(Status)) error
}

// Decode turns one broker message into a payload. A JSON object fills
// the payload fields, anything else is taken as a bare button word.
func Decode(raw []byte) (engine.Payload, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return engine.Payload{}, ErrEmptyMessage
	}

	p := engine.Payload{Raw: text}
	if !strings.HasPrefix(text, "{") {
		if strings.ContainsAny(text, " \t\r\n\"[]") {
			return engine.Payload{}, fmt.Errorf("%w: %q", ErrMalformedMessage, text)
		}
		p.Button = text
		return p, nil
	}

	var cp wire.ControllerPayload
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	if err := dec.Decode(&cp); err != nil {
		return engine.Payload{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	p.Event = cp.Event
	p.ID = cp.ID
	p.PlayerID = cp.PlayerID
	p.Button = cp.Button
	p.Step = cp.Step
	if cp.DX != nil {
		p.DX = *cp.DX
	}
	if cp.DY != nil {
		p.DY = *cp.DY
	}
	return p, nil
}

// deliver decodes raw and hands it on; undecodable messages are dropped.
func deliver(log *zap.Logger, raw []byte, onPayload func(engine.Payload)) {
	p, err := Decode(raw)
	if err != nil {
		log.Debug("controller message dropped", zap.ByteString("raw", raw), zap.Error(err))
		return
	}
	onPayload(p)
}

type Options struct {
	Kind     string // mqtt | redis | nats | none
	URL      string
	Topic    string
	ClientID string
	Username string
	Password string
}

func New(opts Options, log *zap.Logger) (Transport, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("controller")

	if opts.Kind != "none" && opts.Kind != "" && opts.URL == "" {
		return None{Reason: "set DOODLE_BROKER_URL to connect controllers"}, nil
	}

	switch opts.Kind {
	case "mqtt":
		return &MQTT{
			Broker:   opts.URL,
			Topic:    opts.Topic,
			ClientID: opts.ClientID,
			Username: opts.Username,
			Password: opts.Password,
			Log:      log,
		}, nil
	case "redis":
		return NewRedis(opts.URL, opts.Topic, log)
	case "nats":
		return &NATS{URL: opts.URL, Subject: opts.Topic, Name: opts.ClientID, Log: log}, nil
	case "none", "":
		return None{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, opts.Kind)
	}
}

// None is used when no broker is configured. Keyboard input still works.
type None struct {
	Reason string
}

func (n None) Run(ctx context.Context, _ func(engine.Payload), onStatus func(Status)) error {
	reason := n.Reason
	if reason == "" {
		reason = "transport disabled"
	}
	onStatus(Status{Err: reason})
	<-ctx.Done()
	return nil
}
