package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yegors/flight-control/internal/flights"
	"github.com/yegors/flight-control/pkg/logger"
)

type recordingHub struct {
	mu       sync.Mutex
	messages []*Message
}

func (r *recordingHub) Broadcast(m *Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

func (r *recordingHub) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Type
	}
	return out
}

func TestBoardMarkerLifecycle(t *testing.T) {
	hub := &recordingHub{}
	board := NewBoard(hub, logger.NewNop())

	marker := flights.Marker{ID: "a", Latitude: 4.61, Longitude: -74.08, Icon: flights.IconSpec{Color: "green", Label: "1"}}
	h, err := board.CreateMarker("a", marker)
	if err != nil || h == "" {
		t.Fatalf("CreateMarker() = %q, %v", h, err)
	}
	other, _ := board.CreateMarker("b", flights.Marker{ID: "b"})
	if other == h {
		t.Fatal("handles must be unique")
	}

	marker.Latitude = 5
	if err := board.UpdateMarker(h, marker); err != nil {
		t.Fatal(err)
	}
	if err := board.RemoveMarker(other); err != nil {
		t.Fatal(err)
	}

	if err := board.UpdateMarker("missing", marker); err == nil {
		t.Error("expected error updating unknown handle")
	}
	if err := board.RemoveMarker("missing"); err == nil {
		t.Error("expected error removing unknown handle")
	}

	want := []string{MessageTypeMarkerCreated, MessageTypeMarkerCreated, MessageTypeMarkerUpdated, MessageTypeMarkerRemoved}
	got := hub.types()
	if len(got) != len(want) {
		t.Fatalf("broadcasts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("broadcast %d = %s, want %s", i, got[i], want[i])
		}
	}

	snap := board.Snapshot()
	if len(snap.Markers) != 1 || snap.Markers[0].Handle != h || snap.Markers[0].Latitude != 5 {
		t.Errorf("snapshot markers = %+v", snap.Markers)
	}
	if board.MarkerCount() != 1 {
		t.Errorf("marker count = %d", board.MarkerCount())
	}
}

func TestBoardListsAndStatus(t *testing.T) {
	hub := &recordingHub{}
	board := NewBoard(hub, logger.NewNop())

	entries := []flights.ListEntry{{Number: 1, ID: "a"}, {Number: 2, ID: "b"}}
	if err := board.RenderActive(entries); err != nil {
		t.Fatal(err)
	}
	if err := board.RenderUpcoming(nil); err != nil {
		t.Fatal(err)
	}
	if err := board.NotifyStatus(flights.DashboardStatus{Stale: true, ConsecutiveFailures: 3}); err != nil {
		t.Fatal(err)
	}

	entries[0].ID = "mutated"
	snap := board.Snapshot()
	if len(snap.Active) != 2 || snap.Active[0].ID != "a" {
		t.Errorf("active = %+v", snap.Active)
	}
	if snap.Upcoming == nil || len(snap.Upcoming) != 0 {
		t.Errorf("upcoming = %#v, want empty list", snap.Upcoming)
	}
	if snap.Status == nil || !snap.Status.Stale {
		t.Errorf("status = %+v", snap.Status)
	}

	last := hub.messages[len(hub.messages)-1]
	if last.Type != MessageTypeDashboardStatus {
		t.Errorf("last broadcast = %s", last.Type)
	}
}

// The board drives a full reconcile through the flights pipeline
func TestBoardAsReconcilerSink(t *testing.T) {
	hub := &recordingHub{}
	board := NewBoard(hub, logger.NewNop())
	popups := flights.NewPopupBuilder("en", nil, "")
	rec := flights.NewReconciler(flights.NewRegistry(), board, popups, logger.NewNop())

	snap := &flights.Snapshot{
		Flights:   []flights.Flight{{ID: "a", PilotName: "P1", PassengerName: "Q1", Status: flights.StatusFlying}},
		Positions: []flights.Position{{ID: "a", Latitude: 4.61, Longitude: -74.08, Altitude: 120}},
	}
	joined := flights.Merge(snap)
	res := rec.Reconcile(joined, flights.AssignNumbers(joined.Flights))
	if res.Created != 1 {
		t.Fatalf("result = %+v", res)
	}

	markers := board.Snapshot().Markers
	if len(markers) != 1 || markers[0].Icon.Label != "1" || markers[0].Icon.Color != "green" {
		t.Errorf("markers = %+v", markers)
	}

	joined = flights.Merge(&flights.Snapshot{Flights: snap.Flights})
	res = rec.Reconcile(joined, flights.AssignNumbers(joined.Flights))
	if res.Removed != 1 || board.MarkerCount() != 0 {
		t.Errorf("removal not applied: %+v, board=%d", res, board.MarkerCount())
	}
}

type stubRefresher struct {
	result flights.CycleResult
	err    error
	calls  int
}

func (s *stubRefresher) RunCycle(ctx context.Context) (flights.CycleResult, error) {
	s.calls++
	return s.result, s.err
}

func newTestClient() *Client {
	return &Client{send: make(chan *Message, 4), closeChan: make(chan struct{})}
}

func TestHandlerSnapshotRequest(t *testing.T) {
	board := NewBoard(&recordingHub{}, logger.NewNop())
	board.CreateMarker("a", flights.Marker{ID: "a"})
	board.RenderActive([]flights.ListEntry{{ID: "a", Number: 1}})

	h := NewHandler(board, nil, 0, logger.NewNop())
	client := newTestClient()

	if err := h.HandleMessage(client, MessageTypeSnapshotRequest, nil); err != nil {
		t.Fatal(err)
	}
	msg := <-client.send
	if msg.Type != MessageTypeBoardSnapshot {
		t.Fatalf("reply type = %s", msg.Type)
	}
	if markers, ok := msg.Data["markers"].([]MarkerState); !ok || len(markers) != 1 {
		t.Errorf("markers = %#v", msg.Data["markers"])
	}
}

func TestHandlerRefreshRequest(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantOK   bool
		wantBusy bool
	}{
		{name: "success", wantOK: true},
		{name: "busy", err: flights.ErrCycleInProgress, wantBusy: true},
		{name: "fetch failure", err: &flights.FetchError{Endpoint: "x", StatusCode: 500, Err: errors.New("boom")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := &stubRefresher{result: flights.CycleResult{Cycle: 4}, err: tt.err}
			h := NewHandler(NewBoard(&recordingHub{}, logger.NewNop()), ref, 0, logger.NewNop())
			client := newTestClient()

			if err := h.HandleMessage(client, MessageTypeRefreshRequest, nil); err != nil {
				t.Fatal(err)
			}
			msg := <-client.send
			if msg.Type != MessageTypeRefreshResult || ref.calls != 1 {
				t.Fatalf("reply = %s, calls = %d", msg.Type, ref.calls)
			}
			if msg.Data["ok"] != tt.wantOK {
				t.Errorf("ok = %v, want %v", msg.Data["ok"], tt.wantOK)
			}
			if !tt.wantOK && msg.Data["busy"] != tt.wantBusy {
				t.Errorf("busy = %v, want %v", msg.Data["busy"], tt.wantBusy)
			}
		})
	}
}

func TestHandlerIgnoresUnknownMessages(t *testing.T) {
	h := NewHandler(NewBoard(&recordingHub{}, logger.NewNop()), nil, 0, logger.NewNop())
	client := newTestClient()
	if err := h.HandleMessage(client, "filter_update", map[string]any{"x": 1}); err != nil {
		t.Fatal(err)
	}
	if len(client.send) != 0 {
		t.Error("unexpected reply to unknown message")
	}
}
