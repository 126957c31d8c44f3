package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at initial. Time moves only on Advance.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{current: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// FakeClock is a deterministic Clock for tests. It is safe for concurrent
// use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	tickers []*fakeTicker
	changed *sync.Cond
}

type fakeTicker struct {
	next     time.Time
	interval time.Duration
	ch       chan time.Time
	stopped  bool
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ft := &fakeTicker{
		next:     c.current.Add(d),
		interval: d,
		ch:       make(chan time.Time, 1),
	}
	c.tickers = append(c.tickers, ft)
	c.changed.Broadcast()

	return &Ticker{
		C: ft.ch,
		stopFunc: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			ft.stopped = true
			c.changed.Broadcast()
		},
	}
}

// Advance moves the clock forward by d and fires every ticker whose
// deadline has passed. A ticker fires at most once per Advance.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
	for _, ft := range c.tickers {
		if ft.stopped || ft.next.After(c.current) {
			continue
		}
		select {
		case ft.ch <- c.current:
		default:
		}
		for !ft.next.After(c.current) {
			ft.next = ft.next.Add(ft.interval)
		}
	}
}

// Set jumps the clock to t without firing tickers.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// WaitForTickers blocks until at least n live tickers are registered.
// Tests call it before Advance so a goroutine's ticker is not missed.
func (c *FakeClock) WaitForTickers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.liveTickers() < n {
		c.changed.Wait()
	}
}

func (c *FakeClock) liveTickers() int {
	live := 0
	for _, ft := range c.tickers {
		if !ft.stopped {
			live++
		}
	}
	return live
}
