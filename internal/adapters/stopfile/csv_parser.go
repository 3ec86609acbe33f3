package stopfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"route-tracker/internal/domain"
)

// Recognized column headers, matched case-insensitively.
const (
	colLatitude     = "latitude"
	colLongitude    = "longitude"
	colAddress      = "destination address"
	colArea         = "bairro"
	colCity         = "city"
	colStop         = "stop"
	colID           = "at id"
	colSequence     = "sequence"
	colTrackingCode = "spx tn"
)

// MaxFileBytes bounds how much of an upload is read.
const MaxFileBytes = 10 << 20

var validate *validator.Validate

func init() {
	validate = validator.New()
	mustRegister("latitude", validateLatitude)
	mustRegister("longitude", validateLongitude)
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("stopfile: register %q validation: %v", tag, err))
	}
}

func validateLatitude(fl validator.FieldLevel) bool {
	lat := fl.Field().Float()
	return lat >= -90 && lat <= 90
}

func validateLongitude(fl validator.FieldLevel) bool {
	lon := fl.Field().Float()
	return lon >= -180 && lon <= 180
}

type position struct {
	Lat float64 `validate:"latitude"`
	Lon float64 `validate:"longitude"`
}

// CSVParser implements ports.StopFileParser for comma or semicolon separated
// exports. A file is accepted whole or rejected whole: the first problem is
// returned as a *domain.DataError naming the file line and column.
type CSVParser struct{}

func NewCSVParser() *CSVParser { return &CSVParser{} }

func (p *CSVParser) Parse(r io.Reader) ([]domain.RawStopRecord, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("parse stop file: read: %w", err)
	}
	if len(data) > MaxFileBytes {
		return nil, &domain.DataError{Field: "file", Reason: fmt.Sprintf("larger than %d bytes", MaxFileBytes)}
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	delim := detectDelimiter(data)
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.DataError{Field: "file", Reason: "empty file"}
	}
	if err != nil {
		return nil, &domain.DataError{Row: 1, Field: "header", Reason: err.Error()}
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, required := range []string{colLatitude, colLongitude} {
		if _, ok := cols[required]; !ok {
			return nil, &domain.DataError{Field: required, Reason: "required column missing"}
		}
	}

	out := make([]domain.RawStopRecord, 0, 64)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &domain.DataError{Row: pe.StartLine, Field: "record", Reason: pe.Err.Error()}
			}
			return nil, fmt.Errorf("parse stop file: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}

		row, err := parseRecord(rec, cols, line, delim == ';')
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	if len(out) == 0 {
		return nil, &domain.DataError{Field: "file", Reason: "no stop rows"}
	}

	return out, nil
}

func parseRecord(rec []string, cols map[string]int, line int, decimalComma bool) (domain.RawStopRecord, error) {
	get := func(col string) string {
		i, ok := cols[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	lat, err := parseFloat(get(colLatitude), decimalComma)
	if err != nil {
		return domain.RawStopRecord{}, &domain.DataError{Row: line, Field: "Latitude", Reason: err.Error()}
	}
	lon, err := parseFloat(get(colLongitude), decimalComma)
	if err != nil {
		return domain.RawStopRecord{}, &domain.DataError{Row: line, Field: "Longitude", Reason: err.Error()}
	}

	pos := position{Lat: lat, Lon: lon}
	if err := validate.Struct(pos); err != nil {
		var verrs validator.ValidationErrors
		field := "Latitude/Longitude"
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field = map[string]string{"Lat": "Latitude", "Lon": "Longitude"}[verrs[0].Field()]
		}
		return domain.RawStopRecord{}, &domain.DataError{Row: line, Field: field, Reason: "out of range"}
	}

	stopNumber := 0
	if s := get(colStop); s != "" {
		f, err := parseFloat(s, decimalComma)
		if err != nil || f != float64(int(f)) {
			return domain.RawStopRecord{}, &domain.DataError{Row: line, Field: "Stop", Reason: fmt.Sprintf("not an integer: %q", s)}
		}
		stopNumber = int(f)
	}

	return domain.RawStopRecord{
		Row:          line,
		Coordinates:  &domain.Coordinates{Lat: lat, Lon: lon},
		ID:           get(colID),
		Sequence:     get(colSequence),
		TrackingCode: get(colTrackingCode),
		Address:      get(colAddress),
		Area:         get(colArea),
		City:         get(colCity),
		StopNumber:   stopNumber,
	}, nil
}

func parseFloat(s string, decimalComma bool) (float64, error) {
	if s == "" {
		return 0, errors.New("missing value")
	}
	if decimalComma {
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return f, nil
}

// detectDelimiter picks ';' when the header line has more semicolons than commas.
func detectDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	if bytes.Count(first, []byte{';'}) > bytes.Count(first, []byte{','}) {
		return ';'
	}
	return ','
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
