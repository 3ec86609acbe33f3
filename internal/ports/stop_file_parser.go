package ports

import (
	"io"
	"route-tracker/internal/domain"
)

// Contract for reading an uploaded stop file into raw records.
// A malformed file is rejected as a whole with a *domain.DataError.
type StopFileParser interface {
	Parse(r io.Reader) ([]domain.RawStopRecord, error)
}
