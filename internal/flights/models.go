package flights

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Flight is one pilot/passenger pairing as reported by the backend
type Flight struct {
	ID                 string     `json:"id"`
	PilotName          string     `json:"pilot_name"`
	PassengerName      string     `json:"passenger_name"`
	Status             Status     `json:"status"`
	ScheduledDeparture *time.Time `json:"scheduled_departure"`
	UpdatedAt          *time.Time `json:"timestamp,omitempty"`
}

// Position is the latest reported location for a flight identifier
type Position struct {
	ID         string     `json:"id"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Altitude   float64    `json:"altitude"` // meters
	ReportedAt *time.Time `json:"timestamp,omitempty"`
}

// Snapshot is the paired result of one fetch cycle
type Snapshot struct {
	Flights   []Flight   `json:"flights"`
	Positions []Position `json:"positions"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// JoinedRecord is a flight merged with its optional position.
// Flight is nil for a position whose id matches no flight.
type JoinedRecord struct {
	ID       string    `json:"id"`
	Flight   *Flight   `json:"flight,omitempty"`
	Position *Position `json:"position,omitempty"`
}

// Status returns the flight status, or StatusUnknown when there is no flight
func (r JoinedRecord) Status() Status {
	if r.Flight == nil {
		return StatusUnknown
	}
	return r.Flight.Status
}

// HasPosition reports whether the record can be placed on the map
func (r JoinedRecord) HasPosition() bool {
	return r.Position != nil
}

// wireFlight is the backend representation of a flight before validation
type wireFlight struct {
	ID                 string  `json:"id"`
	PilotName          string  `json:"pilot_name"`
	PassengerName      string  `json:"passenger_name"`
	Status             string  `json:"status"`
	ScheduledDeparture *string `json:"scheduled_departure"`
	Timestamp          *string `json:"timestamp"`
}

// UnmarshalJSON decodes and validates a backend flight
func (f *Flight) UnmarshalJSON(data []byte) error {
	var w wireFlight
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if strings.TrimSpace(w.ID) == "" {
		return errors.New("flight has empty id")
	}
	status, err := ParseStatus(w.Status)
	if err != nil {
		return err
	}
	departure, err := parseOptionalTimestamp(w.ScheduledDeparture)
	if err != nil {
		return fmt.Errorf("invalid scheduled_departure: %w", err)
	}
	updated, err := parseOptionalTimestamp(w.Timestamp)
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}

	*f = Flight{
		ID:                 w.ID,
		PilotName:          w.PilotName,
		PassengerName:      w.PassengerName,
		Status:             status,
		ScheduledDeparture: departure,
		UpdatedAt:          updated,
	}
	return nil
}

// wirePosition is the backend representation of a position before validation
type wirePosition struct {
	ID        string   `json:"id"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  float64  `json:"altitude"`
	Timestamp *string  `json:"timestamp"`
}

// UnmarshalJSON decodes and validates a backend position report
func (p *Position) UnmarshalJSON(data []byte) error {
	var w wirePosition
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if strings.TrimSpace(w.ID) == "" {
		return errors.New("position has empty id")
	}
	if w.Latitude == nil || w.Longitude == nil {
		return errors.New("position is missing coordinates")
	}
	if *w.Latitude < -90 || *w.Latitude > 90 {
		return fmt.Errorf("latitude out of range: %f", *w.Latitude)
	}
	if *w.Longitude < -180 || *w.Longitude > 180 {
		return fmt.Errorf("longitude out of range: %f", *w.Longitude)
	}
	reported, err := parseOptionalTimestamp(w.Timestamp)
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}

	*p = Position{
		ID:         w.ID,
		Latitude:   *w.Latitude,
		Longitude:  *w.Longitude,
		Altitude:   w.Altitude,
		ReportedAt: reported,
	}
	return nil
}

// timestampLayouts are tried in order. Zone-less values are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseTimestamp parses an ISO-8601 timestamp with or without a zone
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseOptionalTimestamp(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Rejection describes a backend record dropped at ingestion
type Rejection struct {
	Collection string
	Index      int
	ID         string
	Reason     error
}

// decodeFlights decodes a flight array element by element so one bad record does not discard the snapshot
func decodeFlights(body []byte) ([]Flight, []Rejection, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to parse flights JSON: %w", err)
	}

	flights := make([]Flight, 0, len(raw))
	var rejected []Rejection
	for i, item := range raw {
		var f Flight
		if err := json.Unmarshal(item, &f); err != nil {
			rejected = append(rejected, Rejection{Collection: "flights", Index: i, ID: peekID(item), Reason: err})
			continue
		}
		flights = append(flights, f)
	}
	return flights, rejected, nil
}

// decodePositions decodes a position array element by element
func decodePositions(body []byte) ([]Position, []Rejection, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to parse positions JSON: %w", err)
	}

	positions := make([]Position, 0, len(raw))
	var rejected []Rejection
	for i, item := range raw {
		var p Position
		if err := json.Unmarshal(item, &p); err != nil {
			rejected = append(rejected, Rejection{Collection: "positions", Index: i, ID: peekID(item), Reason: err})
			continue
		}
		positions = append(positions, p)
	}
	return positions, rejected, nil
}

func peekID(item json.RawMessage) string {
	var probe struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(item, &probe)
	return probe.ID
}
