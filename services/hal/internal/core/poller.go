package core

import (
	"container/heap"
	"context"
	"math/rand"
	"sync"
	"time"
)

// PollReq is one due poll, delivered to the HAL loop.
type PollReq struct {
	Addr  CapAddr
	Verb  string
	Every time.Duration
}

type pollKey struct {
	addr CapAddr
	verb string
}

type pollItem struct {
	key    pollKey
	due    int64
	every  time.Duration
	jitter time.Duration
	index  int
}

type pollHeap []*pollItem

func (h pollHeap) Len() int           { return len(h) }
func (h pollHeap) Less(i, j int) bool { return h[i].due < h[j].due }
func (h pollHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *pollHeap) Push(x any)        { it := x.(*pollItem); it.index = len(*h); *h = append(*h, it) }
func (h *pollHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	it.index = -1
	*h = old[:n-1]
	return it
}
func (h pollHeap) top() *pollItem {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// Poller keeps a heap of periodic schedules. Due polls are offered to out
// without blocking; a poll that finds out full is skipped, not queued.
type Poller struct {
	mu    sync.Mutex
	wake  chan struct{}
	items map[pollKey]*pollItem
	h     pollHeap
	rand  *rand.Rand
	out   chan<- PollReq
}

func NewPoller(out chan<- PollReq) *Poller {
	return &Poller{
		wake:  make(chan struct{}, 1),
		items: make(map[pollKey]*pollItem),
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
		out:   out,
	}
}

// Upsert adds or updates a schedule. The first fire occurs after interval
// plus a random jitter in [0..jitter]; jitter is re-applied on each re-arm.
func (p *Poller) Upsert(addr CapAddr, verb string, interval, jitter time.Duration) {
	if interval <= 0 || verb == "" {
		return
	}
	if jitter < 0 {
		jitter = 0
	}
	key := pollKey{addr: addr, verb: verb}

	p.mu.Lock()
	due := time.Now().Add(p.jittered(interval, jitter)).UnixNano()
	if it := p.items[key]; it == nil {
		it = &pollItem{key: key, due: due, every: interval, jitter: jitter, index: -1}
		p.items[key] = it
		heap.Push(&p.h, it)
	} else {
		it.every = interval
		it.jitter = jitter
		it.due = due
		heap.Fix(&p.h, it.index)
	}
	p.mu.Unlock()
	p.wakeup()
}

// Stop removes a schedule; unknown schedules are ignored.
func (p *Poller) Stop(addr CapAddr, verb string) {
	key := pollKey{addr: addr, verb: verb}
	p.mu.Lock()
	if it := p.items[key]; it != nil {
		heap.Remove(&p.h, it.index)
		delete(p.items, key)
	}
	p.mu.Unlock()
	p.wakeup()
}

// Len reports the number of active schedules.
func (p *Poller) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

func (p *Poller) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := p.nextWait()
		if wait < 0 {
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
				continue
			}
		}
		if wait == 0 {
			if req, ok := p.popDue(); ok {
				select {
				case p.out <- req:
				default:
				}
			}
			continue
		}

		resetTimer(timer, time.Duration(wait))
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		case <-timer.C:
		}
	}
}

func (p *Poller) popDue() (PollReq, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	top := p.h.top()
	if top == nil || top.due > time.Now().UnixNano() {
		return PollReq{}, false
	}
	it := heap.Pop(&p.h).(*pollItem)
	it.due = time.Now().Add(p.jittered(it.every, it.jitter)).UnixNano()
	heap.Push(&p.h, it)
	return PollReq{Addr: it.key.addr, Verb: it.key.verb, Every: it.every}, true
}

func (p *Poller) nextWait() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	top := p.h.top()
	if top == nil {
		return -1
	}
	now := time.Now().UnixNano()
	if top.due <= now {
		return 0
	}
	return top.due - now
}

func (p *Poller) wakeup() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Poller) jittered(interval, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return interval
	}
	return interval + time.Duration(p.rand.Int63n(int64(jitter)+1))
}

// resetTimer stops, drains and re-arms t.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
