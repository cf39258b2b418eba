package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-wac/internal/application/inventory"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/infrastructure/lock"
	"github.com/jhoicas/inventario-wac/internal/infrastructure/memory"
)

type fixture struct {
	engine  *inventory.WacEngine
	tracker *inventory.CogsTracker
	store   *memory.Store
	locker  *lock.LocalScopeLocker
}

func newFixture(t *testing.T, opts ...inventory.EngineOption) *fixture {
	t.Helper()
	store := memory.NewStore()
	locker := lock.NewLocalScopeLocker(500 * time.Millisecond)
	eng := inventory.NewWacEngine(store, store.Repos(), locker, opts...)
	return &fixture{
		engine:  eng,
		tracker: inventory.NewCogsTracker(eng, nil),
		store:   store,
		locker:  locker,
	}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

var scopeP1 = entity.ScopeKey{ProductID: "p1", BranchID: "b1"}

func (f *fixture) purchase(t *testing.T, scope entity.ScopeKey, qty, cost string) *inventory.MovementResult {
	t.Helper()
	res, err := f.engine.ApplyMovement(context.Background(), inventory.MovementRequest{
		Scope:         scope,
		Type:          entity.MovementPurchase,
		QuantityDelta: d(qty),
		UnitCost:      dp(cost),
		Reference:     entity.Reference{Type: "purchase_order", ID: "po-1"},
		Actor:         "tester",
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) sell(t *testing.T, scope entity.ScopeKey, id, qty, price string) *entity.CogsRecord {
	t.Helper()
	rec, err := f.tracker.RecordSale(context.Background(), inventory.SaleLine{
		SaleItemID: id,
		Scope:      scope,
		Quantity:   d(qty),
		SalePrice:  d(price),
		Actor:      "tester",
	})
	require.NoError(t, err)
	return rec
}

func (f *fixture) state(t *testing.T, scope entity.ScopeKey) *entity.WacState {
	t.Helper()
	st, err := f.engine.GetState(context.Background(), scope)
	require.NoError(t, err)
	return st
}

func (f *fixture) ledger(t *testing.T, scope entity.ScopeKey) []*entity.InventoryMovement {
	t.Helper()
	ms, err := f.engine.ListMovements(context.Background(), scope, 0, 0)
	require.NoError(t, err)
	return ms
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "esperado %s, obtenido %s", want, got.String())
}
