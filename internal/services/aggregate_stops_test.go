package services

import (
	"errors"
	"slices"
	"testing"

	"route-tracker/internal/domain"
)

func at(lat, lon float64) *domain.Coordinates {
	return &domain.Coordinates{Lat: lat, Lon: lon}
}

func TestAggregateStops_MergesSameCoordinate(t *testing.T) {
	rows := []domain.RawStopRecord{
		{Row: 2, Coordinates: at(-23.5, -46.6), ID: "AT1", Address: "Rua A, 10", TrackingCode: "A", StopNumber: 1},
		{Row: 3, Coordinates: at(-23.6, -46.7), ID: "AT2", Address: "Rua B, 20", TrackingCode: "C", StopNumber: 2},
		{Row: 4, Coordinates: at(-23.5, -46.6), ID: "AT3", Address: "Rua A, 10", TrackingCode: "B", StopNumber: 3},
	}

	got, err := AggregateStops(rows, domain.KeyCoordinateOnly, DefaultTrackingSeparator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(got))
	}
	first := got[0]
	if first.TrackingCodes != "A | B" {
		t.Fatalf("tracking codes = %q, want %q", first.TrackingCodes, "A | B")
	}
	if first.ItemCount != 2 {
		t.Fatalf("item count = %d, want 2", first.ItemCount)
	}
	if first.ID != "AT1" || first.StopNumber != 1 {
		t.Fatalf("first row should win: %+v", first)
	}
	if !slices.Equal(first.SourceRows, []int{2, 4}) {
		t.Fatalf("source rows = %v, want [2 4]", first.SourceRows)
	}
	if got[1].ID != "AT2" || got[1].ItemCount != 1 {
		t.Fatalf("second stop = %+v", got[1])
	}
}

func TestAggregateStops_KeyModes(t *testing.T) {
	rows := []domain.RawStopRecord{
		{Row: 2, Coordinates: at(1, 1), Address: "Rua  A,   10"},
		{Row: 3, Coordinates: at(1, 1), Address: "rua a, 10"},
		{Row: 4, Coordinates: at(1, 1), Address: "Rua A, 12"},
	}

	tests := []struct {
		mode domain.KeyMode
		want int
	}{
		{domain.KeyCoordinateOnly, 1},
		{domain.KeyCoordinateAndAddress, 2},
	}

	for _, tc := range tests {
		got, err := AggregateStops(rows, tc.mode, DefaultTrackingSeparator)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.mode, err)
		}
		if len(got) != tc.want {
			t.Fatalf("%s: got %d stops, want %d", tc.mode, len(got), tc.want)
		}
	}
}

func TestAggregateStops_SkipsEmptyTrackingCodes(t *testing.T) {
	rows := []domain.RawStopRecord{
		{Coordinates: at(1, 1), TrackingCode: ""},
		{Coordinates: at(1, 1), TrackingCode: " X "},
		{Coordinates: at(1, 1)},
	}

	got, err := AggregateStops(rows, domain.KeyCoordinateOnly, ", ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].TrackingCodes != "X" || got[0].ItemCount != 3 {
		t.Fatalf("stop = %+v", got[0])
	}
	if !slices.Equal(got[0].SourceRows, []int{1, 2, 3}) {
		t.Fatalf("source rows = %v, want positional rows", got[0].SourceRows)
	}
}

func TestAggregateStops_RejectsMissingCoordinates(t *testing.T) {
	rows := []domain.RawStopRecord{
		{Row: 2, Coordinates: at(1, 1)},
		{Row: 7},
	}

	_, err := AggregateStops(rows, domain.KeyCoordinateOnly, DefaultTrackingSeparator)
	var de *domain.DataError
	if !errors.As(err, &de) {
		t.Fatalf("expected DataError, got %v", err)
	}
	if de.Row != 7 {
		t.Fatalf("row = %d, want 7", de.Row)
	}
}

func TestAggregateStops_UnknownKeyMode(t *testing.T) {
	_, err := AggregateStops(nil, "street", DefaultTrackingSeparator)
	var de *domain.DataError
	if !errors.As(err, &de) {
		t.Fatalf("expected DataError, got %v", err)
	}
}

func TestAggregateStops_Empty(t *testing.T) {
	got, err := AggregateStops(nil, domain.KeyCoordinateOnly, DefaultTrackingSeparator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no stops, got %d", len(got))
	}
}

// Reordering rows inside a group only changes the order of their codes;
// the set of stops and their counts stay the same.
func TestAggregateStops_PermutationStable(t *testing.T) {
	rows := []domain.RawStopRecord{
		{Row: 1, Coordinates: at(1, 1), Address: "A", TrackingCode: "a1"},
		{Row: 2, Coordinates: at(2, 2), Address: "B", TrackingCode: "b1"},
		{Row: 3, Coordinates: at(1, 1), Address: "A", TrackingCode: "a2"},
		{Row: 4, Coordinates: at(3, 3), Address: "C", TrackingCode: "c1"},
		{Row: 5, Coordinates: at(2, 2), Address: "B", TrackingCode: "b2"},
	}
	reversed := slices.Clone(rows)
	slices.Reverse(reversed)

	a, err := AggregateStops(rows, domain.KeyCoordinateOnly, DefaultTrackingSeparator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := AggregateStops(reversed, domain.KeyCoordinateOnly, DefaultTrackingSeparator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	type group struct {
		address string
		count   int
	}
	summary := func(stops []domain.AggregatedStop) map[domain.Coordinates]group {
		m := make(map[domain.Coordinates]group)
		for _, s := range stops {
			m[s.Coordinates] = group{s.Address, s.ItemCount}
		}
		return m
	}
	sa, sb := summary(a), summary(b)
	if len(sa) != len(sb) {
		t.Fatalf("stop count differs: %d vs %d", len(sa), len(sb))
	}
	for k, v := range sa {
		if v != sb[k] {
			t.Fatalf("stop %v differs: %v vs %v", k, v, sb[k])
		}
	}

	again, err := AggregateStops(rows, domain.KeyCoordinateOnly, DefaultTrackingSeparator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range a {
		if a[i].TrackingCodes != again[i].TrackingCodes || a[i].Coordinates != again[i].Coordinates {
			t.Fatalf("identical input gave different output at %d", i)
		}
	}
}
