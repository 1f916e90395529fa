package memstore

import (
	"context"
	"sync"

	"github.com/2beens/traininglog/internal/traininglog"
)

// pairLocks hands out one exclusive lock per pair. Waiting honors context
// cancellation, and a lock is dropped once nobody holds or waits for it.
type pairLocks struct {
	mu    sync.Mutex
	locks map[traininglog.Pair]*pairLock
}

type pairLock struct {
	sem  chan struct{}
	refs int
}

func newPairLocks() *pairLocks {
	return &pairLocks{
		locks: make(map[traininglog.Pair]*pairLock),
	}
}

func (p *pairLocks) acquire(ctx context.Context, pair traininglog.Pair) error {
	p.mu.Lock()
	l, ok := p.locks[pair]
	if !ok {
		l = &pairLock{sem: make(chan struct{}, 1)}
		p.locks[pair] = l
	}
	l.refs++
	p.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		p.unref(pair, l)
		return ctx.Err()
	}
}

func (p *pairLocks) release(pair traininglog.Pair) {
	p.mu.Lock()
	l, ok := p.locks[pair]
	p.mu.Unlock()
	if !ok {
		return
	}
	<-l.sem
	p.unref(pair, l)
}

func (p *pairLocks) unref(pair traininglog.Pair, l *pairLock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(p.locks, pair)
	}
}
