package services

import (
	"strings"

	"route-tracker/internal/domain"
)

// DefaultTrackingSeparator joins the tracking codes of rows merged into one stop.
const DefaultTrackingSeparator = " | "

type stopKey struct {
	lat, lon float64
	address  string
}

// AggregateStops groups uploaded rows that share a location into single stops.
//
// All rows are validated before any grouping happens; the first row without
// coordinates fails the whole batch with a *domain.DataError. Groups are
// emitted in the order their first row appears, so identical input always
// yields identical output. The merge rules are documented on domain.AggregatedStop.
func AggregateStops(
	rows []domain.RawStopRecord,
	mode domain.KeyMode,
	separator string,
) ([]domain.AggregatedStop, error) {
	if _, ok := domain.ParseKeyMode(string(mode)); !ok {
		return nil, &domain.DataError{Field: "key_mode", Reason: "unknown key mode " + string(mode)}
	}

	for i, r := range rows {
		row := r.Row
		if row == 0 {
			row = i + 1
		}
		if r.Coordinates == nil {
			return nil, &domain.DataError{Row: row, Field: "Latitude/Longitude", Reason: "missing coordinates"}
		}
	}

	index := make(map[stopKey]int, len(rows))
	out := make([]domain.AggregatedStop, 0, len(rows))
	codes := make([][]string, 0, len(rows))

	for i, r := range rows {
		row := r.Row
		if row == 0 {
			row = i + 1
		}

		key := stopKey{lat: r.Coordinates.Lat, lon: r.Coordinates.Lon}
		if mode == domain.KeyCoordinateAndAddress {
			key.address = normalizeAddress(r.Address)
		}

		gi, ok := index[key]
		if !ok {
			gi = len(out)
			index[key] = gi
			out = append(out, domain.AggregatedStop{
				Coordinates: *r.Coordinates,
				ID:          r.ID,
				Sequence:    r.Sequence,
				Address:     r.Address,
				Area:        r.Area,
				City:        r.City,
				StopNumber:  r.StopNumber,
			})
			codes = append(codes, nil)
		}

		out[gi].ItemCount++
		out[gi].SourceRows = append(out[gi].SourceRows, row)
		if code := strings.TrimSpace(r.TrackingCode); code != "" {
			codes[gi] = append(codes[gi], code)
		}
	}

	for i := range out {
		out[i].TrackingCodes = strings.Join(codes[i], separator)
	}

	return out, nil
}

// normalizeAddress collapses whitespace so cosmetic differences do not split a stop.
func normalizeAddress(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
