package flights

import (
	"encoding/json"
	"fmt"
)

// Status is the lifecycle state of a flight.
// StatusUnknown is synthetic: it marks a position with no matching flight and is never accepted from the wire.
type Status int

const (
	StatusUnknown Status = iota
	StatusScheduled
	StatusPaused
	StatusFlying
	StatusLanded
)

// statusInfo is the display and ordering data attached to each status
type statusInfo struct {
	wire     string
	color    string
	colorHex string
	labelKey string
	priority int // active ordering, lower first; -1 when excluded from the active list
}

var statusTable = map[Status]statusInfo{
	StatusUnknown:   {wire: "unknown", color: "red", colorHex: "#ef4444", labelKey: keyStatusUnknown, priority: -1},
	StatusScheduled: {wire: "scheduled", color: "blue", colorHex: "#3b82f6", labelKey: keyStatusScheduled, priority: 2},
	StatusPaused:    {wire: "paused", color: "yellow", colorHex: "#eab308", labelKey: keyStatusPaused, priority: 1},
	StatusFlying:    {wire: "flying", color: "green", colorHex: "#22c55e", labelKey: keyStatusFlying, priority: 0},
	StatusLanded:    {wire: "landed", color: "gray", colorHex: "#6b7280", labelKey: keyStatusLanded, priority: -1},
}

// ParseStatus converts a wire value into a Status. Only the four exact lowercase wire values are
// accepted; anything else, including "unknown", is rejected.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "scheduled":
		return StatusScheduled, nil
	case "paused":
		return StatusPaused, nil
	case "flying":
		return StatusFlying, nil
	case "landed":
		return StatusLanded, nil
	default:
		return StatusUnknown, fmt.Errorf("unrecognized flight status %q", s)
	}
}

func (s Status) info() statusInfo {
	if info, ok := statusTable[s]; ok {
		return info
	}
	return statusTable[StatusUnknown]
}

func (s Status) String() string {
	return s.info().wire
}

// Color returns the icon color name for the status
func (s Status) Color() string {
	return s.info().color
}

// ColorHex returns the icon fill color for the status
func (s Status) ColorHex() string {
	return s.info().colorHex
}

// IsActive reports whether the flight belongs to the active list (and gets a number)
func (s Status) IsActive() bool {
	return s.info().priority >= 0
}

func (s Status) priority() int {
	return s.info().priority
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the synthetic "unknown" so render payloads round-trip.
// Backend flights are validated with ParseStatus, which does not.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("status must be a string: %w", err)
	}
	if str == statusTable[StatusUnknown].wire {
		*s = StatusUnknown
		return nil
	}
	parsed, err := ParseStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
