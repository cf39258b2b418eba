// Package lock implementa la exclusión mutua por scope del motor WAC:
// en proceso (una instancia) o distribuida sobre Redis (varias réplicas de la API).
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/inventario-wac/internal/application/inventory"
	"github.com/jhoicas/inventario-wac/internal/domain"
)

var _ inventory.ScopeLocker = (*LocalScopeLocker)(nil)

// DefaultWait espera máxima por un lock antes de responder ErrEngineBusy.
const DefaultWait = 2 * time.Second

// LocalScopeLocker un semáforo de capacidad 1 por clave. Las claves sin usuarios se liberan.
type LocalScopeLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalScopeLocker construye el locker con la espera máxima dada (<= 0 usa DefaultWait).
func NewLocalScopeLocker(wait time.Duration) *LocalScopeLocker {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &LocalScopeLocker{slots: make(map[string]*slot), wait: wait}
}

// Lock espera el lock de key hasta el plazo configurado o la cancelación de ctx.
func (l *LocalScopeLocker) Lock(ctx context.Context, key string) (func(), error) {
	s := l.acquireSlot(key)

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	select {
	case s.ch <- struct{}{}:
	case <-waitCtx.Done():
		l.releaseSlot(key, s)
		return nil, fmt.Errorf("%w: lock de %s no obtenido en %s: %w", domain.ErrEngineBusy, key, l.wait, waitCtx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.releaseSlot(key, s)
		})
	}, nil
}

func (l *LocalScopeLocker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalScopeLocker) releaseSlot(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// size cantidad de claves con usuarios (tests).
func (l *LocalScopeLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
