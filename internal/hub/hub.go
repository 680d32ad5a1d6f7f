package hub

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/doodle-play-backend/internal/engine"
	"github.com/DoyleJ11/doodle-play-backend/internal/session"
	wire "github.com/DoyleJ11/doodle-play-backend/pkg/types"
)

type HubMsg interface{ isHubMsg() }

type CreateSession struct {
	Reply chan *session.Session
}

type GetSession struct {
	ID    string
	Reply chan *session.Session
}

type EnsureSession struct {
	ID    string
	Reply chan *session.Session
}

type RemoveSession struct {
	ID string
}

// Dispatch hands a controller payload to every live session.
type Dispatch struct {
	Payload engine.Payload
}

type StatusChanged struct {
	Status wire.Status
}

type DrawingAdded struct {
	Drawing engine.Drawing
}

type Count struct {
	Reply chan int
}

type ShutdownHub struct{}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (EnsureSession) isHubMsg() {}
func (RemoveSession) isHubMsg() {}
func (Dispatch) isHubMsg()      {}
func (StatusChanged) isHubMsg() {}
func (DrawingAdded) isHubMsg()  {}
func (Count) isHubMsg()         {}
func (ShutdownHub) isHubMsg()   {}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	opts     session.Options
	status   wire.Status
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewHub starts the registry. opts is the template every new session is
// built from; its Status is kept current from StatusChanged messages.
func NewHub(parent context.Context, opts session.Options, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		opts:     opts,
		status:   opts.Status,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Send queues m unless the hub has shut down.
func (h *Hub) Send(m HubMsg) bool {
	if h.ctx.Err() != nil {
		return false
	}
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) Create() *session.Session {
	reply := make(chan *session.Session, 1)
	if !h.Send(CreateSession{Reply: reply}) {
		return nil
	}
	return h.await(reply)
}

// Get returns nil when id is unknown.
func (h *Hub) Get(id string) *session.Session {
	reply := make(chan *session.Session, 1)
	if !h.Send(GetSession{ID: id, Reply: reply}) {
		return nil
	}
	return h.await(reply)
}

func (h *Hub) await(reply chan *session.Session) *session.Session {
	select {
	case s := <-reply:
		return s
	case <-h.ctx.Done():
		return nil
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				msg.Reply <- h.newSession(uuid.NewString())

			case GetSession:
				msg.Reply <- h.live(msg.ID) // May be nil

			case EnsureSession:
				if s := h.live(msg.ID); s != nil {
					msg.Reply <- s
					break
				}
				msg.Reply <- h.newSession(msg.ID)

			case RemoveSession:
				if s, ok := h.sessions[msg.ID]; ok {
					s.Send(session.Shutdown{})
					delete(h.sessions, msg.ID)
					h.log.Info("session removed", zap.String("session", msg.ID), zap.Int("sessions", len(h.sessions)))
				}

			case Dispatch:
				h.fanOut(session.FromController{Payload: msg.Payload})

			case StatusChanged:
				h.status = msg.Status
				h.fanOut(session.StatusChanged{Status: msg.Status})

			case DrawingAdded:
				h.fanOut(session.DrawingAdded{Drawing: msg.Drawing})

			case Count:
				msg.Reply <- len(h.sessions)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) newSession(id string) *session.Session {
	opts := h.opts
	opts.Status = h.status
	opts.Logger = h.log.Named("session")
	s := session.New(h.ctx, id, opts)
	h.sessions[id] = s
	h.log.Info("session created", zap.String("session", id), zap.Int("sessions", len(h.sessions)))
	return s
}

// live returns the session for id, forgetting it if it already stopped.
func (h *Hub) live(id string) *session.Session {
	s, ok := h.sessions[id]
	if !ok {
		return nil
	}
	select {
	case <-s.Done():
		delete(h.sessions, id)
		return nil
	default:
		return s
	}
}

func (h *Hub) fanOut(m session.Msg) {
	for id := range h.sessions {
		s := h.live(id)
		if s == nil {
			continue
		}
		if !s.TrySend(m) {
			h.log.Warn("session inbox full, message dropped", zap.String("session", id))
		}
	}
}

func (h *Hub) shutdown() {
	for _, s := range h.sessions {
		s.Send(session.Shutdown{})
	}
	clear(h.sessions)
	h.cancel()
}
