package botplugin

import (
	"crypto/rand"
	"encoding/binary"
	"sync/atomic"
)

// idSource hands out unique int64 random ids for outgoing MTProto
// requests: seeded from crypto/rand once, then incremented, so
// concurrent callers never collide within a process lifetime.
var idSource = newIDCounter()

type idCounter struct {
	n int64
}

func newIDCounter() *idCounter {
	var seed [8]byte
	_, _ = rand.Read(seed[:])
	return &idCounter{n: int64(binary.BigEndian.Uint64(seed[:]))}
}

func (c *idCounter) next() int64 {
	return atomic.AddInt64(&c.n, 1)
}
