package comicvine

import "sync/atomic"

// Breaker is a one-way latch. Once tripped it stays tripped for the life of
// the value; build a new Client to get a fresh one.
type Breaker struct {
	tripped atomic.Bool
}

// Trip sets the latch and reports whether this call was the one that set it.
func (b *Breaker) Trip() bool {
	return b.tripped.CompareAndSwap(false, true)
}

func (b *Breaker) Tripped() bool {
	return b.tripped.Load()
}
