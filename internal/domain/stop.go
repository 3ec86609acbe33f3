package domain

// KeyMode selects how uploaded rows are grouped into stops.
// It is a deployment-wide policy: every stop in a route uses the same key.
type KeyMode string

const (
	KeyCoordinateOnly       KeyMode = "coordinate"
	KeyCoordinateAndAddress KeyMode = "coordinate_address"
)

// ParseKeyMode maps a configuration value to a KeyMode.
func ParseKeyMode(s string) (KeyMode, bool) {
	switch KeyMode(s) {
	case KeyCoordinateOnly, KeyCoordinateAndAddress:
		return KeyMode(s), true
	}
	return "", false
}

// Represents one row of an uploaded stop file.
// Row is the line of the source file where the record starts, with the
// header on line 1, so it matches the row a spreadsheet shows. Coordinates is
// nil when the row carried no usable position.
type RawStopRecord struct {
	Row          int
	Coordinates  *Coordinates
	ID           string
	Sequence     string
	TrackingCode string
	Address      string
	Area         string
	City         string
	StopNumber   int
}

// Represents one logical delivery destination after grouping uploaded rows.
//
// Merge rules:
//   - ID, Sequence, Address, Area, City, StopNumber: first row of the group wins.
//   - TrackingCodes: non-empty codes joined with the configured separator, in file order.
//   - ItemCount: number of rows merged into the stop.
//   - SourceRows: file rows merged into the stop, in file order.
type AggregatedStop struct {
	Coordinates   Coordinates `json:"coordinates"`
	ID            string      `json:"id"`
	Sequence      string      `json:"sequence"`
	Address       string      `json:"address"`
	Area          string      `json:"area"`
	City          string      `json:"city"`
	StopNumber    int         `json:"stop_number"`
	TrackingCodes string      `json:"tracking_codes"`
	ItemCount     int         `json:"item_count"`
	SourceRows    []int       `json:"source_rows"`
}
