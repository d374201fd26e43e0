package flights

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// fakeSink records every operation applied to it
type fakeSink struct {
	mu       sync.Mutex
	next     int
	markers  map[MarkerHandle]Marker
	created  []string
	updated  []string
	removed  []string
	active   [][]ListEntry
	upcoming [][]ListEntry
	statuses []DashboardStatus

	failCreate map[string]bool
	failUpdate map[string]bool
	failRemove map[string]bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		markers:    make(map[MarkerHandle]Marker),
		failCreate: make(map[string]bool),
		failUpdate: make(map[string]bool),
		failRemove: make(map[string]bool),
	}
}

var errSinkRejected = errors.New("sink rejected operation")

func (s *fakeSink) CreateMarker(id string, m Marker) (MarkerHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate[id] {
		return "", errSinkRejected
	}
	s.next++
	h := MarkerHandle(fmt.Sprintf("h%d", s.next))
	s.markers[h] = m
	s.created = append(s.created, id)
	return h, nil
}

func (s *fakeSink) UpdateMarker(h MarkerHandle, m Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate[m.ID] {
		return errSinkRejected
	}
	if _, ok := s.markers[h]; !ok {
		return fmt.Errorf("unknown handle %s", h)
	}
	s.markers[h] = m
	s.updated = append(s.updated, m.ID)
	return nil
}

func (s *fakeSink) RemoveMarker(h MarkerHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markers[h]
	if !ok {
		return fmt.Errorf("unknown handle %s", h)
	}
	if s.failRemove[m.ID] {
		return errSinkRejected
	}
	delete(s.markers, h)
	s.removed = append(s.removed, m.ID)
	return nil
}

func (s *fakeSink) RenderActive(entries []ListEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = append(s.active, entries)
	return nil
}

func (s *fakeSink) RenderUpcoming(entries []ListEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upcoming = append(s.upcoming, entries)
	return nil
}

func (s *fakeSink) NotifyStatus(status DashboardStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

// markerFor returns the live marker for id
func (s *fakeSink) markerFor(id string) (Marker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.markers {
		if m.ID == id {
			return m, true
		}
	}
	return Marker{}, false
}

func (s *fakeSink) markerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markers)
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func flight(id string, status Status, departure *time.Time) Flight {
	return Flight{
		ID:                 id,
		PilotName:          "pilot-" + id,
		PassengerName:      "passenger-" + id,
		Status:             status,
		ScheduledDeparture: departure,
	}
}

func position(id string, lat, lon, alt float64) Position {
	return Position{ID: id, Latitude: lat, Longitude: lon, Altitude: alt}
}

func ids(flights []Flight) []string {
	out := make([]string, len(flights))
	for i, f := range flights {
		out[i] = f.ID
	}
	return out
}

func entryIDs(entries []ListEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func testPopups() *PopupBuilder {
	return NewPopupBuilder("en", time.UTC, "15:04")
}
