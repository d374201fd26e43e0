package flights

import (
	"reflect"
	"testing"
)

func TestMerge(t *testing.T) {
	snap := &Snapshot{
		Flights: []Flight{
			flight("a", StatusFlying, nil),
			flight("b", StatusScheduled, nil),
			flight("c", StatusLanded, nil),
		},
		Positions: []Position{
			position("c", 1, 1, 0),
			position("x", 2, 2, 50),
			position("a", 3, 3, 100),
		},
	}

	joined := Merge(snap)

	var got []string
	for _, r := range joined.Records {
		got = append(got, r.ID)
	}
	if want := []string{"c", "x", "a", "b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("record order = %v, want %v", got, want)
	}

	tests := []struct {
		id          string
		status      Status
		hasPosition bool
	}{
		{"a", StatusFlying, true},
		{"b", StatusScheduled, false},
		{"c", StatusLanded, true},
		{"x", StatusUnknown, true},
	}
	for _, tt := range tests {
		rec, ok := joined.Record(tt.id)
		if !ok {
			t.Fatalf("no record for %s", tt.id)
		}
		if rec.Status() != tt.status || rec.HasPosition() != tt.hasPosition {
			t.Errorf("%s: status=%v position=%v, want %v %v", tt.id, rec.Status(), rec.HasPosition(), tt.status, tt.hasPosition)
		}
	}

	if n := len(joined.Mapped()); n != 3 {
		t.Errorf("mapped = %d, want 3", n)
	}
	if _, ok := joined.Record("zzz"); ok {
		t.Error("unexpected record for unknown id")
	}
}

func TestMergeOneRecordPerIdentifier(t *testing.T) {
	snap := &Snapshot{
		Flights: []Flight{
			flight("a", StatusScheduled, nil),
			flight("b", StatusPaused, nil),
			flight("a", StatusFlying, nil),
		},
		Positions: []Position{
			position("a", 1, 1, 10),
			position("a", 5, 5, 50),
		},
	}

	joined := Merge(snap)
	if len(joined.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(joined.Records))
	}
	if got := ids(joined.Flights); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("flights = %v, want [a b] (first slot kept)", got)
	}

	rec, _ := joined.Record("a")
	if rec.Status() != StatusFlying {
		t.Errorf("status = %v, want later duplicate to win", rec.Status())
	}
	if rec.Position.Latitude != 5 || rec.Position.Altitude != 50 {
		t.Errorf("position = %+v, want later duplicate to win", rec.Position)
	}
}

func TestMergeRecordsDoNotAliasSnapshot(t *testing.T) {
	snap := &Snapshot{
		Flights:   []Flight{flight("a", StatusFlying, nil)},
		Positions: []Position{position("a", 1, 1, 1)},
	}
	joined := Merge(snap)

	snap.Flights[0].Status = StatusLanded
	snap.Positions[0].Latitude = 9

	rec, _ := joined.Record("a")
	if rec.Status() != StatusFlying || rec.Position.Latitude != 1 {
		t.Error("joined record changed when the snapshot was mutated")
	}
}

func TestMergeNil(t *testing.T) {
	joined := Merge(nil)
	if len(joined.Records) != 0 || len(joined.Flights) != 0 {
		t.Errorf("Merge(nil) = %+v", joined)
	}
}
