package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator mints identifiers for new person records when the extract
// carries no preferred-identifier hint.
type IDGenerator interface {
	New() string
}

// UUIDGenerator mints random UUIDs.
type UUIDGenerator struct{}

// New implements IDGenerator.
func (UUIDGenerator) New() string {
	return uuid.NewString()
}

// FixedGenerator mints sequential ids from a fixed prefix, for
// deterministic tests.
type FixedGenerator struct {
	Prefix string
	n      int
}

// New implements IDGenerator.
func (g *FixedGenerator) New() string {
	g.n++
	return fmt.Sprintf("%s-%d", g.Prefix, g.n)
}
