package flights

// Joined is the per-cycle join of flights and positions
type Joined struct {
	// Flights holds the deduplicated flight collection in snapshot order
	Flights []Flight
	// Records holds one record per identifier: positioned records in position order,
	// then flights without a position in flight order
	Records []JoinedRecord
}

// Merge joins the two snapshot collections by identifier.
// Duplicate identifiers within a collection resolve last-write-wins; the surviving
// value keeps the slot of the first occurrence.
func Merge(s *Snapshot) Joined {
	if s == nil {
		return Joined{}
	}

	flights := dedupeFlights(s.Flights)
	positions := dedupePositions(s.Positions)

	byID := make(map[string]int, len(flights))
	for i, f := range flights {
		byID[f.ID] = i
	}

	records := make([]JoinedRecord, 0, len(positions)+len(flights))
	positioned := make(map[string]bool, len(positions))
	for i := range positions {
		pos := positions[i]
		rec := JoinedRecord{ID: pos.ID, Position: &pos}
		if idx, ok := byID[pos.ID]; ok {
			f := flights[idx]
			rec.Flight = &f
		}
		positioned[pos.ID] = true
		records = append(records, rec)
	}

	for i := range flights {
		if positioned[flights[i].ID] {
			continue
		}
		f := flights[i]
		records = append(records, JoinedRecord{ID: f.ID, Flight: &f})
	}

	return Joined{Flights: flights, Records: records}
}

// Mapped returns the records that carry a position, in position order
func (j Joined) Mapped() []JoinedRecord {
	mapped := make([]JoinedRecord, 0, len(j.Records))
	for _, r := range j.Records {
		if r.HasPosition() {
			mapped = append(mapped, r)
		}
	}
	return mapped
}

// Record looks up the joined record for an identifier
func (j Joined) Record(id string) (JoinedRecord, bool) {
	for _, r := range j.Records {
		if r.ID == id {
			return r, true
		}
	}
	return JoinedRecord{}, false
}

func dedupeFlights(in []Flight) []Flight {
	out := make([]Flight, 0, len(in))
	seen := make(map[string]int, len(in))
	for _, f := range in {
		if idx, ok := seen[f.ID]; ok {
			out[idx] = f
			continue
		}
		seen[f.ID] = len(out)
		out = append(out, f)
	}
	return out
}

func dedupePositions(in []Position) []Position {
	out := make([]Position, 0, len(in))
	seen := make(map[string]int, len(in))
	for _, p := range in {
		if idx, ok := seen[p.ID]; ok {
			out[idx] = p
			continue
		}
		seen[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}
