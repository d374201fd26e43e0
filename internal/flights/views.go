package flights

import (
	"cmp"
	"slices"
	"time"
)

// ActiveSequence returns the non-landed flights ordered by status priority
// (flying, paused, scheduled) and then by scheduled departure, missing departures last.
// The sort is stable: equal keys keep snapshot order.
func ActiveSequence(flights []Flight) []Flight {
	active := make([]Flight, 0, len(flights))
	for _, f := range flights {
		if f.Status.IsActive() {
			active = append(active, f)
		}
	}
	slices.SortStableFunc(active, func(a, b Flight) int {
		if c := cmp.Compare(a.Status.priority(), b.Status.priority()); c != 0 {
			return c
		}
		return compareDeparture(a.ScheduledDeparture, b.ScheduledDeparture)
	})
	return active
}

// UpcomingSequence returns only scheduled flights ordered by departure, missing departures last
func UpcomingSequence(flights []Flight) []Flight {
	upcoming := make([]Flight, 0, len(flights))
	for _, f := range flights {
		if f.Status == StatusScheduled {
			upcoming = append(upcoming, f)
		}
	}
	slices.SortStableFunc(upcoming, func(a, b Flight) int {
		return compareDeparture(a.ScheduledDeparture, b.ScheduledDeparture)
	})
	return upcoming
}

func compareDeparture(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

// ListEntry is one card in the active or upcoming list
type ListEntry struct {
	Number             int        `json:"number" csv:"number"` // 0 when the flight has no number
	ID                 string     `json:"id" csv:"id"`
	PilotName          string     `json:"pilot_name" csv:"pilot_name"`
	PassengerName      string     `json:"passenger_name" csv:"passenger_name"`
	Status             Status     `json:"status" csv:"-"`
	StatusLabel        string     `json:"status_label" csv:"status"`
	ScheduledDeparture *time.Time `json:"scheduled_departure" csv:"-"`
	Departure          string     `json:"departure" csv:"departure"` // formatted in the display timezone, empty when unknown
	OnMap              bool       `json:"on_map" csv:"on_map"`
}

// Views are the two ordered lists derived from one snapshot
type Views struct {
	Active      []ListEntry `json:"active"`
	Upcoming    []ListEntry `json:"upcoming"`
	GeneratedAt time.Time   `json:"generated_at"`
	Cycle       uint64      `json:"cycle"`
}

// BuildViews derives the active and upcoming lists for one cycle.
// Display strings come from the popup builder so list cards and popups agree.
func BuildViews(joined Joined, numbers NumberTable, display *PopupBuilder) Views {
	positioned := make(map[string]bool, len(joined.Records))
	for _, r := range joined.Records {
		if r.HasPosition() {
			positioned[r.ID] = true
		}
	}

	toEntries := func(flights []Flight) []ListEntry {
		entries := make([]ListEntry, 0, len(flights))
		for _, f := range flights {
			n, _ := numbers.Number(f.ID)
			entries = append(entries, ListEntry{
				Number:             n,
				ID:                 f.ID,
				PilotName:          f.PilotName,
				PassengerName:      f.PassengerName,
				Status:             f.Status,
				StatusLabel:        display.StatusLabel(f.Status),
				ScheduledDeparture: f.ScheduledDeparture,
				Departure:          display.FormatDeparture(f.ScheduledDeparture),
				OnMap:              positioned[f.ID],
			})
		}
		return entries
	}

	return Views{
		Active:   toEntries(ActiveSequence(joined.Flights)),
		Upcoming: toEntries(UpcomingSequence(joined.Flights)),
	}
}
