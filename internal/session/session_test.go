package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/doodle-play-backend/internal/engine"
)

var (
	d1 = engine.Drawing{ID: "drawing-1.png", URL: "https://blob/drawing-1.png"}
	d2 = engine.Drawing{ID: "drawing-2.png", URL: "https://blob/drawing-2.png"}
)

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("viewer outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvClosed(t *testing.T, ch <-chan Snapshot, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("outbox not closed within %v", within)
		}
	}
}

func recvView(t *testing.T, s *Session, within time.Duration) View {
	t.Helper()
	reply := make(chan View, 1)
	s.Inbox() <- GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

// gatedLoader blocks until release is closed, so tests control when the
// gallery arrives.
func gatedLoader(release <-chan struct{}, drawings ...engine.Drawing) Loader {
	return func(ctx context.Context) ([]engine.Drawing, error) {
		select {
		case <-release:
			return drawings, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func newTestSession(t *testing.T, loader Loader) *Session {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, "s1", Options{
		Strategy: engine.Dynamic{Routing: engine.RouteByID},
		Loader:   loader,
		Logger:   zaptest.NewLogger(t),
	})
}

func TestSession_PairAndMove_BroadcastsVersions(t *testing.T) {
	release := make(chan struct{})
	s := newTestSession(t, gatedLoader(release, d1, d2))

	out := make(chan Snapshot, 8)
	s.Inbox() <- Join{ViewerID: "v1", Outbox: out}

	first := recvSnapshot(t, out, 100*time.Millisecond)
	if first.Version != 0 || !first.Stage.Loading {
		t.Fatalf("after join: want version=0 loading, got %d loading=%v", first.Version, first.Stage.Loading)
	}

	close(release)
	loaded := recvSnapshot(t, out, 500*time.Millisecond)
	assert.Equal(t, 1, loaded.Version)
	assert.Len(t, loaded.Stage.Gallery, 2)

	s.Inbox() <- Select{DrawingID: d1.ID}
	selected := recvSnapshot(t, out, 100*time.Millisecond)
	assert.True(t, selected.Stage.Awaiting)
	require.NotNil(t, selected.Stage.Pending)
	assert.Equal(t, d1.ID, selected.Stage.Pending.ID)

	s.Inbox() <- FromController{Payload: engine.Payload{Raw: `{"event":"connect","id":"A"}`, Event: engine.EventConnect, ID: "A"}}
	paired := recvSnapshot(t, out, 100*time.Millisecond)
	require.Len(t, paired.Stage.Active, 1)
	assert.Equal(t, "A", paired.Stage.Active[0].Controller)
	assert.False(t, paired.Stage.Awaiting)

	s.Inbox() <- FromController{Payload: engine.Payload{Raw: "right", ID: "A", Button: "right"}}
	moved := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 4, moved.Version)
	assert.Equal(t, 6.0, moved.Stage.Active[0].Position.X)
	assert.Equal(t, "right", moved.Stage.LastRaw)

	s.Inbox() <- Shutdown{}
}

func TestSession_DroppedPayloadOnlyUpdatesLastRaw(t *testing.T) {
	s := newTestSession(t, nil)

	out := make(chan Snapshot, 8)
	s.Inbox() <- Join{ViewerID: "v1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	s.Inbox() <- FromController{Payload: engine.Payload{Raw: "up", ID: "nobody", Button: "up"}}

	view := recvView(t, s, 100*time.Millisecond)
	assert.Equal(t, "up", view.Stage.LastRaw)
	assert.Empty(t, view.State.Pairings)
	assert.Empty(t, view.State.Positions)
}

func TestSession_DropSlowViewer(t *testing.T) {
	s := newTestSession(t, nil)

	out := make(chan Snapshot, 1)
	s.Inbox() <- Join{ViewerID: "v1", Outbox: out}

	s.Inbox() <- DrawingAdded{Drawing: d1}
	s.Inbox() <- DrawingAdded{Drawing: d2}

	view := recvView(t, s, 100*time.Millisecond)
	if view.NumViewers != 0 {
		t.Fatalf("expected slow viewer to be dropped; NumViewers=%d", view.NumViewers)
	}
}

func TestSession_ShutdownCancelsGalleryLoad(t *testing.T) {
	cancelled := make(chan error, 1)
	loader := func(ctx context.Context) ([]engine.Drawing, error) {
		<-ctx.Done()
		cancelled <- ctx.Err()
		return []engine.Drawing{d1}, nil
	}
	s := newTestSession(t, loader)

	out := make(chan Snapshot, 2)
	s.Inbox() <- Join{ViewerID: "v1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	s.Inbox() <- Shutdown{}

	select {
	case err := <-cancelled:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("gallery load was not cancelled")
	}
	recvClosed(t, out, 500*time.Millisecond)

	select {
	case <-s.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("session not done after shutdown")
	}
	assert.False(t, s.Send(Release{}), "send after shutdown must not block")
}

// waitFor reads snapshots until cond holds.
func waitFor(t *testing.T, ch <-chan Snapshot, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	for i := 0; i < 8; i++ {
		snap := recvSnapshot(t, ch, 500*time.Millisecond)
		if cond(snap) {
			return snap
		}
	}
	t.Fatalf("condition not reached")
	return Snapshot{} // unreachable
}

func TestSession_GalleryFailure(t *testing.T) {
	s := newTestSession(t, func(context.Context) ([]engine.Drawing, error) {
		return nil, errors.New("bucket unreachable")
	})

	out := make(chan Snapshot, 8)
	s.Inbox() <- Join{ViewerID: "v1", Outbox: out}

	snap := waitFor(t, out, func(s Snapshot) bool { return !s.Stage.Loading })
	assert.Equal(t, LoadErrorMessage, snap.Stage.LoadError)
}

func TestSession_KeyboardFallbackAndLeave(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, "s2", Options{
		Strategy: engine.FixedSlots{},
		Loader:   gatedLoader(closedChan(), d1),
		Logger:   zaptest.NewLogger(t),
	})

	out := make(chan Snapshot, 16)
	s.Inbox() <- Join{ViewerID: "v1", Outbox: out}
	waitFor(t, out, func(s Snapshot) bool { return len(s.Stage.Gallery) == 1 })

	s.Inbox() <- Select{DrawingID: d1.ID}
	s.Inbox() <- Key{Key: "ArrowDown"} // claims player1
	s.Inbox() <- Key{Key: "ArrowDown"}
	s.Inbox() <- Key{Key: "F5"} // ignored

	view := recvView(t, s, 100*time.Millisecond)
	require.Len(t, view.Stage.Active, 1)
	assert.Equal(t, "player1", view.Stage.Active[0].Controller)
	assert.Equal(t, 6.0, view.Stage.Active[0].Position.Y)

	s.Inbox() <- Leave{ViewerID: "v1"}
	recvClosed(t, out, 100*time.Millisecond)
}

func TestSession_KeyboardPairsAndMovesInDynamicMode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, "s3", Options{
		Strategy: engine.Dynamic{Routing: engine.RouteByID},
		Loader:   gatedLoader(closedChan(), d1, d2),
		Logger:   zaptest.NewLogger(t),
	})

	out := make(chan Snapshot, 16)
	s.Inbox() <- Join{ViewerID: "v1", Outbox: out}
	waitFor(t, out, func(s Snapshot) bool { return len(s.Stage.Gallery) == 2 })

	s.Inbox() <- Select{DrawingID: d2.ID}
	s.Inbox() <- Key{Key: "1"} // connects the keyboard controller
	s.Inbox() <- Key{Key: "ArrowLeft"}
	s.Inbox() <- Key{Key: "ArrowUp"}

	view := recvView(t, s, 100*time.Millisecond)
	assert.Nil(t, view.Stage.Pending)
	require.Len(t, view.Stage.Active, 1)
	assert.Equal(t, engine.KeyboardID1, view.Stage.Active[0].Controller)
	assert.Equal(t, d2.ID, view.Stage.Active[0].Drawing.ID)
	assert.Equal(t, -6.0, view.Stage.Active[0].Position.X)
	assert.Equal(t, -6.0, view.Stage.Active[0].Position.Y)
	assert.Equal(t, "up", view.Stage.LastRaw)
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
