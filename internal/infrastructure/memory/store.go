// Package memory implementa los repositorios del motor WAC en memoria.
// Se usa en desarrollo (ENGINE_STORE=memory) y en los tests de la capa de aplicación.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/inventario-wac/internal/application/inventory"
	"github.com/jhoicas/inventario-wac/internal/domain"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/domain/repository"
)

var _ inventory.TxRunner = (*Store)(nil)

// Operaciones sobre las que se puede inyectar una falla o una demora.
const (
	OpMovementAppend = "movements.append"
	OpHistoryAppend  = "history.append"
	OpStatePut       = "states.put"
	OpCogsCreate     = "cogs.create"
	OpCommit         = "commit"
)

// Store guarda ledger, estados, historial, COGS y catálogo detrás de un RWMutex.
// Las transacciones acumulan escrituras y las publican juntas en el commit.
type Store struct {
	mu        sync.RWMutex
	movements map[entity.ScopeKey][]*entity.InventoryMovement
	states    map[entity.ScopeKey]*entity.WacState
	history   map[entity.ScopeKey][]*entity.WacHistoryEntry
	cogs      map[string]*entity.CogsRecord // por sale_item_id
	products  map[string]*entity.Product

	hookMu   sync.Mutex
	failures map[string]error
	delays   map[string]time.Duration
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{
		movements: make(map[entity.ScopeKey][]*entity.InventoryMovement),
		states:    make(map[entity.ScopeKey]*entity.WacState),
		history:   make(map[entity.ScopeKey][]*entity.WacHistoryEntry),
		cogs:      make(map[string]*entity.CogsRecord),
		products:  make(map[string]*entity.Product),
		failures:  make(map[string]error),
		delays:    make(map[string]time.Duration),
	}
}

// Repos devuelve repositorios de solo lectura sobre los datos confirmados.
func (s *Store) Repos() inventory.Repos {
	return inventory.Repos{
		Movements: &movementReader{s: s},
		States:    &stateReader{s: s},
		History:   &historyReader{s: s},
		Cogs:      &cogsReader{s: s},
	}
}

// Products repositorio del catálogo.
func (s *Store) Products() repository.ProductRepository { return &productRepo{s: s} }

// Run ejecuta fn con repositorios atados a una transacción nueva.
// Si fn falla, el contexto vence o el commit falla, no se publica nada.
func (s *Store) Run(ctx context.Context, fn func(repos inventory.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := newTx(s)
	repos := inventory.Repos{
		Movements: &txMovements{tx: tx},
		States:    &txStates{tx: tx},
		History:   &txHistory{tx: tx},
		Cogs:      &txCogs{tx: tx},
	}
	if err := fn(repos); err != nil {
		return err
	}
	if err := s.hook(ctx, OpCommit); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return s.commit(tx)
}

// ── Inyección de fallas (tests) ───────────────────────────────────────────────

// FailOn hace que la operación op devuelva err hasta que se llame ClearFailures.
func (s *Store) FailOn(op string, err error) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.failures[op] = err
}

// DelayOn demora la operación op; la demora respeta la cancelación del contexto.
func (s *Store) DelayOn(op string, d time.Duration) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.delays[op] = d
}

// ClearFailures quita fallas y demoras.
func (s *Store) ClearFailures() {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.failures = make(map[string]error)
	s.delays = make(map[string]time.Duration)
}

// CorruptState modifica el estado cacheado sin pasar por el motor, para simular divergencias.
func (s *Store) CorruptState(scope entity.ScopeKey, mutate func(st *entity.WacState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[scope]
	if !ok {
		st = entity.NewWacState(scope)
		s.states[scope] = st
	}
	mutate(st)
}

// PutProduct agrega o reemplaza un producto del catálogo.
func (s *Store) PutProduct(p *entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.products[p.ID] = &cp
}

func (s *Store) hook(ctx context.Context, op string) error {
	s.hookMu.Lock()
	err := s.failures[op]
	d := s.delays[op]
	s.hookMu.Unlock()

	if d > 0 {
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range tx.cogs {
		if _, ok := s.cogs[id]; ok {
			return fmt.Errorf("%w: sale_item_id %s", domain.ErrDuplicate, id)
		}
	}
	for k, ms := range tx.movements {
		s.movements[k] = append(s.movements[k], ms...)
		sortMovements(s.movements[k])
	}
	for k, hs := range tx.history {
		s.history[k] = append(s.history[k], hs...)
	}
	for k, st := range tx.states {
		s.states[k] = st
	}
	for id, r := range tx.cogs {
		s.cogs[id] = r
	}
	return nil
}
