package buildings

import (
	"math/rand/v2"
	"time"
)

const (
	minBackoff = time.Microsecond
	maxBackoff = 2 * time.Millisecond
)

// backoff sleeps for a randomized, doubling interval between lock attempts.
// The jitter keeps two goroutines that collided once from colliding again in
// lockstep.
type backoff struct {
	next    time.Duration
	retries int
}

func (b *backoff) wait() {
	if b.next == 0 {
		b.next = minBackoff
	}
	time.Sleep(b.next/2 + rand.N(b.next/2+1))
	b.next = min(b.next*2, maxBackoff)
	b.retries++
}
