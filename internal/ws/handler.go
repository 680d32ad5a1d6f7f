package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/doodle-play-backend/internal/hub"
	"github.com/DoyleJ11/doodle-play-backend/internal/session"
	"github.com/DoyleJ11/doodle-play-backend/internal/types"
)

var (
	errBadJSON     = errors.New("bad json")
	errUnknownType = errors.New("unknown type")
	errNoDrawing   = errors.New("missing drawing_id")
)

const writeTimeout = 3 * time.Second

type Handler struct {
	hub *hub.Hub
	log *zap.Logger
	// OriginPatterns are passed to websocket.Accept; empty means same-origin only.
	OriginPatterns []string
}

func NewHandler(h *hub.Hub, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{hub: h, log: log.Named("ws")}
}

// ServeHTTP attaches the connection to ?session=<id>, or to a fresh
// session that lives as long as the connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")

	var s *session.Session
	owned := id == ""
	if owned {
		s = h.hub.Create()
		if s == nil {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
	} else if s = h.hub.Get(id); s == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if owned {
		defer h.hub.Send(hub.RemoveSession{ID: s.ID()})
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.OriginPatterns})
	if err != nil {
		h.log.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	viewerID := uuid.NewString()
	log := h.log.With(zap.String("session", s.ID()), zap.String("viewer", viewerID))

	out := make(chan session.Snapshot, 8)
	if !s.Send(session.Join{ViewerID: viewerID, Outbox: out}) {
		conn.Close(websocket.StatusGoingAway, "session closed")
		return
	}
	defer s.Send(session.Leave{ViewerID: viewerID})
	log.Debug("viewer joined")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Writer goroutine. The outbox is closed when the session drops this
	// viewer or shuts down; either ends the connection.
	go func() {
		defer cancel()
		for snap := range out {
			msg := types.ServerMessage{
				Type:    types.MsgStageSnapshot,
				Session: s.ID(),
				Version: snap.Version,
				State:   &snap.Stage,
			}
			if err := write(ctx, conn, msg); err != nil {
				log.Debug("snapshot write failed", zap.Error(err))
				return
			}
		}
		conn.Close(websocket.StatusGoingAway, "session closed")
	}()

	// Reader loop
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					log.Debug("websocket read failed", zap.Error(err))
				}
			}
			return
		}

		msg, err := decode(data)
		if err != nil {
			_ = write(ctx, conn, types.ServerMessage{Type: types.MsgError, Error: err.Error()})
			continue
		}
		if !s.Send(msg) {
			return
		}
	}
}

func decode(data []byte) (session.Msg, error) {
	var cm types.ClientMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		return nil, errBadJSON
	}
	return toSessionMsg(cm)
}

func toSessionMsg(m types.ClientMessage) (session.Msg, error) {
	switch m.Type {
	case types.MsgSelect:
		if m.DrawingID == "" {
			return nil, errNoDrawing
		}
		return session.Select{DrawingID: m.DrawingID}, nil
	case types.MsgRelease:
		return session.Release{}, nil
	case types.MsgKey:
		return session.Key{Key: m.Key}, nil
	default:
		return nil, errUnknownType
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
