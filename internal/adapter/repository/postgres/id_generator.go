package postgres

import (
	"github.com/oklog/ulid/v2"
)

// ULIDGenerator generates transfer ids. ULIDs sort by creation time, so log
// lines for one transfer group together.
type ULIDGenerator struct{}

// NewULIDGenerator creates a new ULIDGenerator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// Generate returns a new ULID string.
func (g *ULIDGenerator) Generate() string {
	return ulid.Make().String()
}
