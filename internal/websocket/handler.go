package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/yegors/flight-control/internal/flights"
	"github.com/yegors/flight-control/pkg/logger"
)

// Refresher runs one refresh cycle on demand
type Refresher interface {
	RunCycle(ctx context.Context) (flights.CycleResult, error)
}

// Handler handles incoming WebSocket messages from dashboard pages
type Handler struct {
	board          *Board
	refresher      Refresher
	refreshTimeout time.Duration
	logger         *logger.Logger
}

// NewHandler creates a new WebSocket message handler
func NewHandler(board *Board, refresher Refresher, refreshTimeout time.Duration, log *logger.Logger) *Handler {
	return &Handler{
		board:          board,
		refresher:      refresher,
		refreshTimeout: refreshTimeout,
		logger:         log.Named("ws-handler"),
	}
}

// HandleMessage handles incoming WebSocket messages
func (h *Handler) HandleMessage(client *Client, messageType string, data map[string]any) error {
	switch messageType {
	case MessageTypeSnapshotRequest:
		return h.handleSnapshotRequest(client)
	case MessageTypeRefreshRequest:
		return h.handleRefreshRequest(client)
	default:
		h.logger.Debug("Unhandled message type", String("type", messageType))
		return nil
	}
}

// handleSnapshotRequest sends the full board to one page
func (h *Handler) handleSnapshotRequest(client *Client) error {
	snap := h.board.Snapshot()

	h.logger.Debug("Sending board snapshot",
		Int("markers", len(snap.Markers)),
		Int("active", len(snap.Active)),
		Int("upcoming", len(snap.Upcoming)))

	return h.sendToClient(client, &Message{
		Type: MessageTypeBoardSnapshot,
		Data: map[string]any{
			"markers":  snap.Markers,
			"active":   snap.Active,
			"upcoming": snap.Upcoming,
			"status":   snap.Status,
		},
	})
}

// handleRefreshRequest runs a cycle immediately and reports the outcome to the requesting page.
// The cycle's own changes reach every page through the board.
func (h *Handler) handleRefreshRequest(client *Client) error {
	if h.refresher == nil {
		return h.sendToClient(client, &Message{
			Type: MessageTypeRefreshResult,
			Data: map[string]any{"ok": false, "error": "refresh not available"},
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.refreshTimeout)
	defer cancel()

	result, err := h.refresher.RunCycle(ctx)
	data := map[string]any{
		"ok":    err == nil,
		"cycle": result.Cycle,
	}
	if err != nil {
		data["error"] = err.Error()
		data["busy"] = errors.Is(err, flights.ErrCycleInProgress)
		h.logger.Warn("Manual refresh failed", Error(err))
	} else {
		data["result"] = result
	}

	return h.sendToClient(client, &Message{Type: MessageTypeRefreshResult, Data: data})
}

// sendToClient sends a message to a specific client
func (h *Handler) sendToClient(client *Client, message *Message) error {
	if !client.SendMessage(message) {
		h.logger.Warn("Client send channel full or closed, dropping message", String("type", message.Type))
	}
	return nil
}
