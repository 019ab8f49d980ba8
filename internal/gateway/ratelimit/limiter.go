package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

const (
	// window is the trailing interval requests are counted over.
	window = time.Minute

	// shardCount must be a power of two. Sharding keeps unrelated keys
	// from serializing on one lock under concurrent load.
	shardCount = 32
)

// Limiter is an in-process sliding-window rate limiter. Each gateway
// instance enforces its own share of a soft limit; counts are not
// shared across processes and reset on restart.
type Limiter struct {
	shards [shardCount]shard
	now    func() time.Time
}

type shard struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

// New creates a new limiter.
func New() *Limiter {
	l := &Limiter{now: time.Now}
	for i := range l.shards {
		l.shards[i].hits = make(map[string][]time.Time)
	}
	return l
}

// Allow reports whether a request under key is admitted against
// limitPerMinute, and how many requests remain in the current window.
// A limit of zero or less always rejects. Admission appends the current
// timestamp; rejection leaves the window untouched.
func (l *Limiter) Allow(key string, limitPerMinute int) (bool, int) {
	if limitPerMinute <= 0 {
		return false, 0
	}

	now := l.now()
	cutoff := now.Add(-window)

	s := &l.shards[shardFor(key)]
	s.mu.Lock()
	defer s.mu.Unlock()

	recent := s.hits[key][:0]
	for _, t := range s.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= limitPerMinute {
		s.hits[key] = recent
		return false, 0
	}

	recent = append(recent, now)
	s.hits[key] = recent
	return true, limitPerMinute - len(recent)
}

func shardFor(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() & (shardCount - 1)
}
