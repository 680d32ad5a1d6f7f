package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/doodle-play-backend/internal/engine"
	"github.com/DoyleJ11/doodle-play-backend/internal/session"
	wire "github.com/DoyleJ11/doodle-play-backend/pkg/types"
)

var d1 = engine.Drawing{ID: "drawing-1.png", URL: "https://blob/drawing-1.png"}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	opts := session.Options{
		Strategy: engine.Dynamic{Routing: engine.RouteByID},
		Loader: func(context.Context) ([]engine.Drawing, error) {
			return []engine.Drawing{d1}, nil
		},
	}
	return NewHub(ctx, opts, zaptest.NewLogger(t))
}

// peek asks the session for its state; ok is false on timeout. Safe to
// call from require.Eventually conditions.
func peek(s *session.Session) (session.View, bool) {
	reply := make(chan session.View, 1)
	if !s.Send(session.GetState{Reply: reply}) {
		return session.View{}, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-time.After(200 * time.Millisecond):
		return session.View{}, false
	}
}

func TestHub_Ensure_Get_SamePointer(t *testing.T) {
	h := newTestHub(t)
	reply := make(chan *session.Session, 1)

	h.Inbox() <- EnsureSession{ID: "tab-1", Reply: reply}
	s1 := <-reply

	s2 := h.Get("tab-1")

	if s1 == nil || s2 == nil || s1 != s2 {
		t.Fatalf("expected same session pointer")
	}
	assert.Nil(t, h.Get("tab-2"))
}

func TestHub_Create_AssignsUniqueIDs(t *testing.T) {
	h := newTestHub(t)

	a := h.Create()
	b := h.Create()

	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.NotEqual(t, a.ID(), b.ID())

	count := make(chan int, 1)
	h.Inbox() <- Count{Reply: count}
	assert.Equal(t, 2, <-count)
}

func TestHub_Remove_ShutsSessionDown(t *testing.T) {
	h := newTestHub(t)
	s := h.Create()
	require.NotNil(t, s)

	h.Inbox() <- RemoveSession{ID: s.ID()}

	select {
	case <-s.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("session still running after removal")
	}
	assert.Nil(t, h.Get(s.ID()))
}

func TestHub_Dispatch_FansOutToEverySession(t *testing.T) {
	h := newTestHub(t)
	a := h.Create()
	b := h.Create()

	for _, s := range []*session.Session{a, b} {
		out := make(chan session.Snapshot, 8)
		s.Inbox() <- session.Join{ViewerID: "v", Outbox: out}
		for snap := range out {
			if !snap.Stage.Loading {
				break
			}
		}
		s.Inbox() <- session.Select{DrawingID: d1.ID}
	}

	h.Inbox() <- Dispatch{Payload: engine.Payload{Raw: "connect", Event: engine.EventConnect, ID: "A"}}
	h.Inbox() <- StatusChanged{Status: wire.Status{Connected: true, Text: "connected"}}

	for _, s := range []*session.Session{a, b} {
		require.Eventually(t, func() bool {
			v, ok := peek(s)
			return ok && v.State.Pairings["A"] == d1.ID && v.Stage.Status.Connected
		}, time.Second, 10*time.Millisecond)
	}

	// Sessions created later start from the latest status.
	c := h.Create()
	require.NotNil(t, c)
	v, ok := peek(c)
	require.True(t, ok)
	assert.True(t, v.Stage.Status.Connected)
}

func TestHub_Shutdown_StopsSessions(t *testing.T) {
	h := newTestHub(t)
	s := h.Create()
	require.NotNil(t, s)

	h.Inbox() <- ShutdownHub{}

	select {
	case <-s.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("session still running after hub shutdown")
	}
	assert.Nil(t, h.Create(), "create after shutdown returns nil")
}
