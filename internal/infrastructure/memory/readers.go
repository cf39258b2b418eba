package memory

import (
	"context"
	"errors"
	"sort"

	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/domain/repository"
)

var errReadOnly = errors.New("escritura fuera de transacción")

// Repositorios sobre los datos confirmados. Las escrituras solo se permiten dentro de Run.

type movementReader struct{ s *Store }

func (r *movementReader) Append(context.Context, *entity.InventoryMovement) error { return errReadOnly }

func (r *movementReader) ListByScope(_ context.Context, scope entity.ScopeKey, limit, offset int) ([]*entity.InventoryMovement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return page(cloneMovements(r.s.movements[scope]), limit, offset), nil
}

type stateReader struct{ s *Store }

func (r *stateReader) Get(_ context.Context, scope entity.ScopeKey) (*entity.WacState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.states[scope]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (r *stateReader) GetForUpdate(context.Context, entity.ScopeKey) (*entity.WacState, error) {
	return nil, errReadOnly
}

func (r *stateReader) Put(context.Context, *entity.WacState) error { return errReadOnly }

func (r *stateReader) List(_ context.Context, filter repository.ScopeFilter) ([]*entity.WacState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.WacState, 0, len(r.s.states))
	for _, st := range r.s.states {
		if !matchesScope(filter, st.Scope) {
			continue
		}
		cp := *st
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope.Less(out[j].Scope) })
	return out, nil
}

type historyReader struct{ s *Store }

func (r *historyReader) Append(context.Context, *entity.WacHistoryEntry) error { return errReadOnly }

func (r *historyReader) ListByScope(_ context.Context, scope entity.ScopeKey, limit, offset int) ([]*entity.WacHistoryEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	src := r.s.history[scope]
	out := make([]*entity.WacHistoryEntry, len(src))
	for i, h := range src {
		cp := *h
		out[i] = &cp
	}
	return page(out, limit, offset), nil
}

type cogsReader struct{ s *Store }

func (r *cogsReader) Create(context.Context, *entity.CogsRecord) error { return errReadOnly }

func (r *cogsReader) GetBySaleItem(_ context.Context, saleItemID string) (*entity.CogsRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.cogs[saleItemID]
	if !ok {
		return nil, nil
	}
	return cloneCogs(rec), nil
}

func (r *cogsReader) List(_ context.Context, filter repository.CogsFilter) ([]*entity.CogsRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.CogsRecord, 0)
	for _, rec := range r.s.cogs {
		if matchesScope(filter.ScopeFilter, rec.Scope) && filter.InRange(rec.OccurredAt) {
			out = append(out, cloneCogs(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].SaleItemID < out[j].SaleItemID
	})
	return out, nil
}

type productRepo struct{ s *Store }

func (r *productRepo) FindByIDs(_ context.Context, ids []string) (map[string]*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[string]*entity.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *productRepo) ListIDs(_ context.Context, categoryID, brandID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := make([]string, 0)
	for id, p := range r.s.products {
		if categoryID != "" && p.CategoryID != categoryID {
			continue
		}
		if brandID != "" && p.BrandID != brandID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func matchesScope(f repository.ScopeFilter, k entity.ScopeKey) bool {
	if !f.MatchesProduct(k.ProductID) {
		return false
	}
	if f.BranchID != "" && k.BranchID != f.BranchID {
		return false
	}
	if f.WarehouseID != "" && k.WarehouseID != f.WarehouseID {
		return false
	}
	return true
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func sortMovements(ms []*entity.InventoryMovement) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].OccurredAt.Equal(ms[j].OccurredAt) {
			return ms[i].OccurredAt.Before(ms[j].OccurredAt)
		}
		return ms[i].Sequence < ms[j].Sequence
	})
}

func cloneMovements(src []*entity.InventoryMovement) []*entity.InventoryMovement {
	out := make([]*entity.InventoryMovement, len(src))
	for i, m := range src {
		cp := *m
		out[i] = &cp
	}
	return out
}

func cloneCogs(r *entity.CogsRecord) *entity.CogsRecord {
	cp := *r
	if r.Warnings != nil {
		cp.Warnings = append([]string(nil), r.Warnings...)
	}
	return &cp
}
