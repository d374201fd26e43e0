package flights

import "strconv"

// NumberPlaceholder is the marker label for flights without a number
const NumberPlaceholder = "-"

// NumberTable maps active flight identifiers to 1..N.
// It is recomputed from scratch every cycle, so numbers follow the current active ordering
// and are not kept by a flight across cycles.
type NumberTable map[string]int

// AssignNumbers numbers the non-landed flights in active-sequence order
func AssignNumbers(flights []Flight) NumberTable {
	active := ActiveSequence(flights)
	table := make(NumberTable, len(active))
	for i, f := range active {
		table[f.ID] = i + 1
	}
	return table
}

// Number returns the number assigned to id
func (t NumberTable) Number(id string) (int, bool) {
	n, ok := t[id]
	return n, ok
}

// Label returns the number as text, or the placeholder when id has none
func (t NumberTable) Label(id string) string {
	if n, ok := t[id]; ok {
		return strconv.Itoa(n)
	}
	return NumberPlaceholder
}
