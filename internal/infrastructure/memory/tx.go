package memory

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-wac/internal/domain"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/domain/repository"
)

// memTx escrituras pendientes de una transacción. Las lecturas ven primero lo pendiente
// y luego lo confirmado. La exclusión entre escritores del mismo scope la da el ScopeLocker.
type memTx struct {
	s         *Store
	movements map[entity.ScopeKey][]*entity.InventoryMovement
	history   map[entity.ScopeKey][]*entity.WacHistoryEntry
	states    map[entity.ScopeKey]*entity.WacState
	cogs      map[string]*entity.CogsRecord
}

func newTx(s *Store) *memTx {
	return &memTx{
		s:         s,
		movements: make(map[entity.ScopeKey][]*entity.InventoryMovement),
		history:   make(map[entity.ScopeKey][]*entity.WacHistoryEntry),
		states:    make(map[entity.ScopeKey]*entity.WacState),
		cogs:      make(map[string]*entity.CogsRecord),
	}
}

type txMovements struct{ tx *memTx }

func (r *txMovements) Append(ctx context.Context, m *entity.InventoryMovement) error {
	if err := r.tx.s.hook(ctx, OpMovementAppend); err != nil {
		return fmt.Errorf("insert inventory_movement: %w", err)
	}
	k := m.Scope
	for _, p := range r.tx.movements[k] {
		if p.Sequence == m.Sequence {
			return fmt.Errorf("%w: secuencia %d repetida en %s", domain.ErrDuplicate, m.Sequence, k)
		}
	}
	cp := *m
	r.tx.movements[k] = append(r.tx.movements[k], &cp)
	return nil
}

func (r *txMovements) ListByScope(ctx context.Context, scope entity.ScopeKey, limit, offset int) ([]*entity.InventoryMovement, error) {
	committed, err := (&movementReader{s: r.tx.s}).ListByScope(ctx, scope, 0, 0)
	if err != nil {
		return nil, err
	}
	all := append(committed, cloneMovements(r.tx.movements[scope])...)
	sortMovements(all)
	return page(all, limit, offset), nil
}

type txStates struct{ tx *memTx }

func (r *txStates) Get(ctx context.Context, scope entity.ScopeKey) (*entity.WacState, error) {
	if st, ok := r.tx.states[scope]; ok {
		cp := *st
		return &cp, nil
	}
	return (&stateReader{s: r.tx.s}).Get(ctx, scope)
}

func (r *txStates) GetForUpdate(ctx context.Context, scope entity.ScopeKey) (*entity.WacState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := r.Get(ctx, scope)
	if err != nil {
		return nil, err
	}
	if st == nil {
		st = entity.NewWacState(scope)
	}
	return st, nil
}

func (r *txStates) Put(ctx context.Context, st *entity.WacState) error {
	if err := r.tx.s.hook(ctx, OpStatePut); err != nil {
		return fmt.Errorf("upsert wac_state: %w", err)
	}
	cp := *st
	r.tx.states[st.Scope] = &cp
	return nil
}

func (r *txStates) List(ctx context.Context, filter repository.ScopeFilter) ([]*entity.WacState, error) {
	return (&stateReader{s: r.tx.s}).List(ctx, filter)
}

type txHistory struct{ tx *memTx }

func (r *txHistory) Append(ctx context.Context, h *entity.WacHistoryEntry) error {
	if err := r.tx.s.hook(ctx, OpHistoryAppend); err != nil {
		return fmt.Errorf("insert wac_history: %w", err)
	}
	cp := *h
	k := h.Scope
	r.tx.history[k] = append(r.tx.history[k], &cp)
	return nil
}

func (r *txHistory) ListByScope(ctx context.Context, scope entity.ScopeKey, limit, offset int) ([]*entity.WacHistoryEntry, error) {
	committed, err := (&historyReader{s: r.tx.s}).ListByScope(ctx, scope, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, h := range r.tx.history[scope] {
		cp := *h
		committed = append(committed, &cp)
	}
	return page(committed, limit, offset), nil
}

type txCogs struct{ tx *memTx }

func (r *txCogs) Create(ctx context.Context, rec *entity.CogsRecord) error {
	if err := r.tx.s.hook(ctx, OpCogsCreate); err != nil {
		return fmt.Errorf("insert cogs_record: %w", err)
	}
	existing, err := r.GetBySaleItem(ctx, rec.SaleItemID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: sale_item_id %s", domain.ErrDuplicate, rec.SaleItemID)
	}
	r.tx.cogs[rec.SaleItemID] = cloneCogs(rec)
	return nil
}

func (r *txCogs) GetBySaleItem(ctx context.Context, saleItemID string) (*entity.CogsRecord, error) {
	if rec, ok := r.tx.cogs[saleItemID]; ok {
		return cloneCogs(rec), nil
	}
	return (&cogsReader{s: r.tx.s}).GetBySaleItem(ctx, saleItemID)
}

func (r *txCogs) List(ctx context.Context, filter repository.CogsFilter) ([]*entity.CogsRecord, error) {
	return (&cogsReader{s: r.tx.s}).List(ctx, filter)
}
