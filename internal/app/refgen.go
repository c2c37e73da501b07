package app

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULIDReferenceGenerator issues lexically sortable transaction references of
// the form "txn_01H...". ULIDs are monotonic within a millisecond, so two
// references generated back to back still sort in creation order.
type ULIDReferenceGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	prefix  string
}

func NewULIDReferenceGenerator() *ULIDReferenceGenerator {
	return &ULIDReferenceGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		prefix:  "txn_",
	}
}

func (g *ULIDReferenceGenerator) NewReference() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), g.entropy)
	return g.prefix + id.String()
}
