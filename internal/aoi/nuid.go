package aoi

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator mints monotonically increasing Nuids. It is an explicit
// value callers own — one per test, one per server process, or one per
// index — rather than a single hidden process-wide counter, so tests
// can run with isolated, deterministic ID sequences.
type Generator struct {
	counter uint64
}

// NewGenerator constructs a Generator seeded from a random UUID's low
// 64 bits, so that IDs minted across process restarts are unlikely to
// collide with a previous run's.
func NewGenerator() *Generator {
	return &Generator{counter: seedFromUUID()}
}

// NewGeneratorFrom constructs a Generator whose first Next() returns
// seed. Tests use this for deterministic IDs.
func NewGeneratorFrom(seed uint64) *Generator {
	return &Generator{counter: seed}
}

// Next returns the current counter value and post-increments it. Safe
// for concurrent use, though an index itself is meant to be driven
// from a single goroutine.
func (g *Generator) Next() Nuid {
	return atomic.AddUint64(&g.counter, 1) - 1
}

func seedFromUUID() uint64 {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[8:16])
}
