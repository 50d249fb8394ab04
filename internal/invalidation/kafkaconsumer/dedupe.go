package kafkaconsumer

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// tsDedupe remembers the newest event time applied per dataset scope.
type tsDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, time.Time]
}

func newTSDedupe(size int) *tsDedupe {
	if size <= 0 {
		size = 256
	}
	c, _ := lru.New[string, time.Time](size)
	return &tsDedupe{lru: c}
}

// seen reports whether an event at ts or later was already applied for key.
func (d *tsDedupe) seen(key string, ts time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lru.Get(key)
	return ok && !ts.After(last)
}

func (d *tsDedupe) mark(key string, ts time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && !ts.After(last) {
		return
	}
	d.lru.Add(key, ts)
}
