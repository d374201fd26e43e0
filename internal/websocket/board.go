package websocket

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/yegors/flight-control/internal/flights"
	"github.com/yegors/flight-control/pkg/logger"
)

// Broadcaster delivers a message to every connected page
type Broadcaster interface {
	Broadcast(message *Message)
}

// MarkerState is one marker as held by the board
type MarkerState struct {
	Handle flights.MarkerHandle `json:"handle"`
	flights.Marker
}

// BoardSnapshot is the full board sent to a page that just connected
type BoardSnapshot struct {
	Markers  []MarkerState            `json:"markers"`
	Active   []flights.ListEntry      `json:"active"`
	Upcoming []flights.ListEntry      `json:"upcoming"`
	Status   *flights.DashboardStatus `json:"status,omitempty"`
}

// Board is the browser render sink. It keeps the current markers and lists so that
// late joiners can catch up, and pushes every change to connected pages.
type Board struct {
	hub    Broadcaster
	logger *logger.Logger

	mu       sync.RWMutex
	markers  map[flights.MarkerHandle]flights.Marker
	active   []flights.ListEntry
	upcoming []flights.ListEntry
	status   *flights.DashboardStatus
}

// NewBoard creates a board that broadcasts through hub
func NewBoard(hub Broadcaster, log *logger.Logger) *Board {
	return &Board{
		hub:      hub,
		logger:   log.Named("board"),
		markers:  make(map[flights.MarkerHandle]flights.Marker),
		active:   []flights.ListEntry{},
		upcoming: []flights.ListEntry{},
	}
}

func (b *Board) CreateMarker(id string, marker flights.Marker) (flights.MarkerHandle, error) {
	handle := flights.MarkerHandle(uuid.NewString())

	b.mu.Lock()
	b.markers[handle] = marker
	b.mu.Unlock()

	b.hub.Broadcast(&Message{
		Type: MessageTypeMarkerCreated,
		Data: map[string]any{
			"handle": handle,
			"marker": marker,
		},
	})
	return handle, nil
}

func (b *Board) UpdateMarker(handle flights.MarkerHandle, marker flights.Marker) error {
	b.mu.Lock()
	if _, ok := b.markers[handle]; !ok {
		b.mu.Unlock()
		return fmt.Errorf("unknown marker handle %s", handle)
	}
	b.markers[handle] = marker
	b.mu.Unlock()

	b.hub.Broadcast(&Message{
		Type: MessageTypeMarkerUpdated,
		Data: map[string]any{
			"handle": handle,
			"marker": marker,
		},
	})
	return nil
}

func (b *Board) RemoveMarker(handle flights.MarkerHandle) error {
	b.mu.Lock()
	marker, ok := b.markers[handle]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("unknown marker handle %s", handle)
	}
	delete(b.markers, handle)
	b.mu.Unlock()

	b.hub.Broadcast(&Message{
		Type: MessageTypeMarkerRemoved,
		Data: map[string]any{
			"handle": handle,
			"id":     marker.ID,
		},
	})
	return nil
}

func (b *Board) RenderActive(entries []flights.ListEntry) error {
	entries = slices.Clone(entries)
	if entries == nil {
		entries = []flights.ListEntry{}
	}
	b.mu.Lock()
	b.active = entries
	b.mu.Unlock()

	b.hub.Broadcast(&Message{
		Type: MessageTypeActiveList,
		Data: map[string]any{
			"flights": entries,
			"count":   len(entries),
		},
	})
	return nil
}

func (b *Board) RenderUpcoming(entries []flights.ListEntry) error {
	entries = slices.Clone(entries)
	if entries == nil {
		entries = []flights.ListEntry{}
	}
	b.mu.Lock()
	b.upcoming = entries
	b.mu.Unlock()

	b.hub.Broadcast(&Message{
		Type: MessageTypeUpcomingList,
		Data: map[string]any{
			"flights": entries,
			"count":   len(entries),
		},
	})
	return nil
}

// NotifyStatus pushes the fetch health so pages can show a stale banner
func (b *Board) NotifyStatus(status flights.DashboardStatus) error {
	b.mu.Lock()
	b.status = &status
	b.mu.Unlock()

	if status.Stale {
		b.logger.Debug("Broadcasting stale dashboard status", Int("consecutive_failures", status.ConsecutiveFailures))
	}

	b.hub.Broadcast(&Message{
		Type: MessageTypeDashboardStatus,
		Data: map[string]any{
			"status": status,
		},
	})
	return nil
}

// Snapshot returns the current board with markers ordered by flight id
func (b *Board) Snapshot() BoardSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	markers := make([]MarkerState, 0, len(b.markers))
	for h, m := range b.markers {
		markers = append(markers, MarkerState{Handle: h, Marker: m})
	}
	slices.SortFunc(markers, func(a, c MarkerState) int {
		return strings.Compare(a.ID, c.ID)
	})

	snap := BoardSnapshot{
		Markers:  markers,
		Active:   slices.Clone(b.active),
		Upcoming: slices.Clone(b.upcoming),
	}
	if b.status != nil {
		st := *b.status
		snap.Status = &st
	}
	return snap
}

// MarkerCount returns the number of markers on the board
func (b *Board) MarkerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.markers)
}
