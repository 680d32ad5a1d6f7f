package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/doodle-play-backend/internal/engine"
	wire "github.com/DoyleJ11/doodle-play-backend/pkg/types"
)

// LoadErrorMessage is what the stage shows when the gallery cannot be listed.
const LoadErrorMessage = "Failed to load drawings"

type Msg interface{ isSessionMsg() }

type Select struct{ DrawingID string }

func (Select) isSessionMsg() {}

type Release struct{}

func (Release) isSessionMsg() {}

type FromController struct{ Payload engine.Payload }

func (FromController) isSessionMsg() {}

// Key is a keyboard fallback press from the stage page.
type Key struct{ Key string }

func (Key) isSessionMsg() {}

type Join struct {
	ViewerID string
	Outbox   chan Snapshot // where this viewer wants to receive snapshots
}

func (Join) isSessionMsg() {}

type Leave struct{ ViewerID string }

func (Leave) isSessionMsg() {}

type GalleryLoaded struct {
	Drawings []engine.Drawing
	Err      error
}

func (GalleryLoaded) isSessionMsg() {}

type DrawingAdded struct{ Drawing engine.Drawing }

func (DrawingAdded) isSessionMsg() {}

type StatusChanged struct{ Status wire.Status }

func (StatusChanged) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type Snapshot struct {
	Version int
	Stage   wire.StageSnapshot
}

type View struct {
	Version    int
	NumViewers int
	State      engine.State
	Stage      wire.StageSnapshot
}

// Loader lists the drawings a fresh session starts with.
type Loader func(ctx context.Context) ([]engine.Drawing, error)

type Options struct {
	Strategy engine.Strategy
	Loader   Loader
	Status   wire.Status
	Logger   *zap.Logger
}

// Session owns one stage's pairing state. Everything runs on the loop
// goroutine, one message at a time.
type Session struct {
	id       string
	inbox    chan Msg
	strategy engine.Strategy
	state    engine.State
	version  int
	viewers  map[string]chan Snapshot
	status   wire.Status
	lastRaw  string
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(parent context.Context, id string, opts Options) *Session {
	ctx, cancel := context.WithCancel(parent)

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		id:       id,
		inbox:    make(chan Msg, 64),
		strategy: opts.Strategy,
		state:    engine.NewEmptyState(opts.Strategy.Mode()),
		viewers:  make(map[string]chan Snapshot),
		status:   opts.Status,
		log:      logger.With(zap.String("session", id)),
		ctx:      ctx,
		cancel:   cancel,
	}

	go s.loop()
	go s.loadGallery(opts.Loader)
	return s
}

func (s *Session) ID() string { return s.id }

// Expose the inbox so tests or the ws layer can send messages.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Send queues m unless the session has already shut down.
func (s *Session) Send(m Msg) bool {
	if s.ctx.Err() != nil {
		return false
	}
	select {
	case s.inbox <- m:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// TrySend queues m without waiting; false means the inbox was full or
// the session is gone.
func (s *Session) TrySend(m Msg) bool {
	if s.ctx.Err() != nil {
		return false
	}
	select {
	case s.inbox <- m:
		return true
	default:
		return false
	}
}

// Done is closed once the session has shut down.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// loadGallery runs the initial listing. The request dies with the session
// and a late result is discarded.
func (s *Session) loadGallery(load Loader) {
	if load == nil {
		s.Send(GalleryLoaded{})
		return
	}

	drawings, err := load(s.ctx)
	if s.ctx.Err() != nil {
		return
	}
	s.Send(GalleryLoaded{Drawings: drawings, Err: err})
}

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			changed := false

			switch msg := m.(type) {
			case Join:
				// Register viewer + send current snapshot immediately
				s.viewers[msg.ViewerID] = msg.Outbox
				s.sendTo(msg.ViewerID, s.snapshot())

			case Leave:
				if ch, ok := s.viewers[msg.ViewerID]; ok {
					close(ch)
					delete(s.viewers, msg.ViewerID)
				}

			case Select:
				d, ok := engine.LookupDrawing(s.state, msg.DrawingID)
				if !ok {
					s.log.Debug("select for unknown drawing", zap.String("drawing", msg.DrawingID))
					break
				}
				changed = s.apply(engine.Command{Type: engine.CmdSelectDrawing, Drawing: d})

			case Release:
				changed = s.apply(engine.Command{Type: engine.CmdRelease})

			case FromController:
				changed = s.controllerInput(msg.Payload)

			case Key:
				p, ok := engine.KeyPayload(s.strategy.Mode(), msg.Key)
				if !ok {
					break
				}
				changed = s.controllerInput(p)

			case GalleryLoaded:
				if msg.Err != nil {
					s.log.Warn("gallery load failed", zap.Error(msg.Err))
					changed = s.apply(engine.Command{Type: engine.CmdGalleryFailed, Message: LoadErrorMessage})
					break
				}
				changed = s.apply(engine.Command{Type: engine.CmdLoadGallery, Drawings: msg.Drawings})

			case DrawingAdded:
				changed = s.apply(engine.Command{Type: engine.CmdAddDrawing, Drawing: msg.Drawing})

			case StatusChanged:
				changed = s.status != msg.Status
				s.status = msg.Status

			case GetState:
				// Read-only view of the actor state, answered from the loop.
				msg.Reply <- View{
					Version:    s.version,
					NumViewers: len(s.viewers),
					State:      s.state,
					Stage:      s.snapshot().Stage,
				}

			case Shutdown:
				s.shutdown()
				return
			}

			if changed {
				s.version++
				s.broadcast(s.snapshot())
			}
		}
	}
}

// controllerInput records the raw text for diagnostics even when the
// message itself turns out to be a no-op.
func (s *Session) controllerInput(p engine.Payload) bool {
	rawChanged := p.Raw != s.lastRaw
	s.lastRaw = p.Raw
	applied := s.apply(engine.Command{Type: engine.CmdControllerInput, Payload: p})
	return applied || rawChanged
}

func (s *Session) apply(cmd engine.Command) bool {
	events, next, err := engine.Apply(s.strategy, s.state, cmd)
	if err != nil {
		s.log.Debug("command dropped", zap.String("command", string(cmd.Type)), zap.Error(err))
		return false
	}
	s.state = next
	for _, ev := range events {
		s.log.Debug("event",
			zap.String("type", string(ev.Type)),
			zap.String("controller", ev.Controller),
			zap.String("drawing", ev.DrawingID),
		)
	}
	return len(events) > 0
}

func (s *Session) snapshot() Snapshot {
	stage := engine.View(s.state)
	stage.LastRaw = s.lastRaw
	stage.Status = s.status
	return Snapshot{Version: s.version, Stage: stage}
}

func (s *Session) shutdown() {
	for id, ch := range s.viewers {
		close(ch) // Tell viewer no more snapshots
		delete(s.viewers, id)
	}
	s.state = engine.NewEmptyState(s.strategy.Mode())
	s.cancel()
}

func (s *Session) sendTo(id string, snap Snapshot) {
	ch := s.viewers[id]
	select {
	case ch <- snap:
	default:
		close(ch)
		delete(s.viewers, id)
	}
}

func (s *Session) broadcast(snap Snapshot) {
	for id := range s.viewers {
		// Viewer is slow/full - drop them.
		s.sendTo(id, snap)
	}
}
