package flights

import (
	"sync"
	"time"

	"github.com/yegors/flight-control/pkg/logger"
)

// MarkerHandle is the opaque identity a sink returns for a created marker
type MarkerHandle string

// IconSpec describes how a marker is drawn
type IconSpec struct {
	Color    string `json:"color"`
	ColorHex string `json:"color_hex"`
	Label    string `json:"label"` // flight number, or "-"
	Status   Status `json:"status"`
}

// Marker is the full render payload for one positioned record
type Marker struct {
	ID        string   `json:"id"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  float64  `json:"altitude"`
	Icon      IconSpec `json:"icon"`
	PopupHTML string   `json:"popup_html"`
}

// Sink applies marker operations and renders the two ordered lists
type Sink interface {
	CreateMarker(id string, marker Marker) (MarkerHandle, error)
	UpdateMarker(handle MarkerHandle, marker Marker) error
	RemoveMarker(handle MarkerHandle) error
	RenderActive(entries []ListEntry) error
	RenderUpcoming(entries []ListEntry) error
}

// StatusNotifier is implemented by sinks that can show the dashboard health
type StatusNotifier interface {
	NotifyStatus(status DashboardStatus) error
}

// DashboardStatus is the fetch health shown to operators
type DashboardStatus struct {
	Stale               bool       `json:"stale"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	LastAttempt         *time.Time `json:"last_attempt,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	LastCycle           uint64     `json:"last_cycle"`
}

// FanoutSink applies every operation to a primary sink and mirrors it to secondary sinks.
// Only the primary outcome is reported; mirror failures are logged.
type FanoutSink struct {
	primary Sink
	mirrors []Sink
	logger  *logger.Logger

	mu      sync.Mutex
	handles map[MarkerHandle][]MarkerHandle // primary handle -> handle per mirror
	ids     map[MarkerHandle]string
}

// NewFanoutSink creates a sink that mirrors the primary to each of mirrors
func NewFanoutSink(primary Sink, log *logger.Logger, mirrors ...Sink) *FanoutSink {
	return &FanoutSink{
		primary: primary,
		mirrors: mirrors,
		logger:  log.Named("fanout"),
		handles: make(map[MarkerHandle][]MarkerHandle),
		ids:     make(map[MarkerHandle]string),
	}
}

func (f *FanoutSink) CreateMarker(id string, marker Marker) (MarkerHandle, error) {
	handle, err := f.primary.CreateMarker(id, marker)
	if err != nil {
		return "", err
	}

	mirrored := make([]MarkerHandle, len(f.mirrors))
	for i, m := range f.mirrors {
		h, err := m.CreateMarker(id, marker)
		if err != nil {
			f.logger.Warn("Mirror failed to create marker", logger.Int("mirror", i), logger.String("id", id), logger.Error(err))
			continue
		}
		mirrored[i] = h
	}

	f.mu.Lock()
	f.handles[handle] = mirrored
	f.ids[handle] = id
	f.mu.Unlock()
	return handle, nil
}

func (f *FanoutSink) UpdateMarker(handle MarkerHandle, marker Marker) error {
	if err := f.primary.UpdateMarker(handle, marker); err != nil {
		return err
	}

	f.mu.Lock()
	mirrored := make([]MarkerHandle, len(f.mirrors))
	copy(mirrored, f.handles[handle])
	f.mu.Unlock()

	for i, m := range f.mirrors {
		// a mirror that missed the create gets another chance here
		if mirrored[i] == "" {
			h, err := m.CreateMarker(marker.ID, marker)
			if err != nil {
				f.logger.Warn("Mirror failed to create marker", logger.Int("mirror", i), logger.String("id", marker.ID), logger.Error(err))
				continue
			}
			mirrored[i] = h
			continue
		}
		if err := m.UpdateMarker(mirrored[i], marker); err != nil {
			f.logger.Warn("Mirror failed to update marker", logger.Int("mirror", i), logger.String("id", marker.ID), logger.Error(err))
		}
	}

	f.mu.Lock()
	f.handles[handle] = mirrored
	f.ids[handle] = marker.ID
	f.mu.Unlock()
	return nil
}

func (f *FanoutSink) RemoveMarker(handle MarkerHandle) error {
	if err := f.primary.RemoveMarker(handle); err != nil {
		return err
	}

	f.mu.Lock()
	mirrored := f.handles[handle]
	id := f.ids[handle]
	delete(f.handles, handle)
	delete(f.ids, handle)
	f.mu.Unlock()

	for i, h := range mirrored {
		if h == "" {
			continue
		}
		if err := f.mirrors[i].RemoveMarker(h); err != nil {
			f.logger.Warn("Mirror failed to remove marker", logger.Int("mirror", i), logger.String("id", id), logger.Error(err))
		}
	}
	return nil
}

func (f *FanoutSink) RenderActive(entries []ListEntry) error {
	if err := f.primary.RenderActive(entries); err != nil {
		return err
	}
	for i, m := range f.mirrors {
		if err := m.RenderActive(entries); err != nil {
			f.logger.Warn("Mirror failed to render active list", logger.Int("mirror", i), logger.Error(err))
		}
	}
	return nil
}

func (f *FanoutSink) RenderUpcoming(entries []ListEntry) error {
	if err := f.primary.RenderUpcoming(entries); err != nil {
		return err
	}
	for i, m := range f.mirrors {
		if err := m.RenderUpcoming(entries); err != nil {
			f.logger.Warn("Mirror failed to render upcoming list", logger.Int("mirror", i), logger.Error(err))
		}
	}
	return nil
}

// NotifyStatus forwards the status to every sink that can show it
func (f *FanoutSink) NotifyStatus(status DashboardStatus) error {
	var primaryErr error
	if n, ok := f.primary.(StatusNotifier); ok {
		primaryErr = n.NotifyStatus(status)
	}
	for i, m := range f.mirrors {
		n, ok := m.(StatusNotifier)
		if !ok {
			continue
		}
		if err := n.NotifyStatus(status); err != nil {
			f.logger.Warn("Mirror failed to publish status", logger.Int("mirror", i), logger.Error(err))
		}
	}
	return primaryErr
}
