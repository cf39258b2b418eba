package inventory_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/inventario-wac/internal/application/inventory"
	"github.com/jhoicas/inventario-wac/internal/domain"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Escenarios
// ──────────────────────────────────────────────────────────────────────────────

func TestApplyMovement_EscenarioA(t *testing.T) {
	f := newFixture(t)

	r := f.purchase(t, scopeP1, "10", "5")
	assertDec(t, "5", r.State.WeightedAverageCost)
	assertDec(t, "10", r.State.CurrentQuantity)

	r = f.purchase(t, scopeP1, "10", "7")
	assertDec(t, "20", r.State.CurrentQuantity)
	assertDec(t, "120", r.State.TotalValue)
	assertDec(t, "6", r.State.WeightedAverageCost)
	assertDec(t, "5", r.PreviousWac)

	rec := f.sell(t, scopeP1, "si-1", "5", "9")
	assertDec(t, "30", rec.TotalCogs)
	assertDec(t, "45", rec.Revenue)
	assertDec(t, "15", rec.GrossProfit)
	assertDec(t, "0.3333", rec.ProfitMargin)
	assert.Empty(t, rec.Warnings)

	st := f.state(t, scopeP1)
	assertDec(t, "15", st.CurrentQuantity)
	assertDec(t, "90", st.TotalValue)
	assertDec(t, "6", st.WeightedAverageCost)

	ms := f.ledger(t, scopeP1)
	require.Len(t, ms, 3)
	for i, m := range ms {
		assert.Equal(t, int64(i+1), m.Sequence)
	}
	sale := ms[2]
	assert.Equal(t, entity.MovementSale, sale.Type)
	assertDec(t, "-5", sale.QuantityDelta)
	assertDec(t, "6", sale.UnitCost)
	assertDec(t, "-30", sale.TotalCost)
	assertDec(t, "15", sale.RunningQuantity)
	assertDec(t, "90", sale.RunningValue)
	assert.Equal(t, sale.ID, rec.MovementID)
}

func TestApplyMovement_EscenarioB_VentaSinStock(t *testing.T) {
	f := newFixture(t)

	_, err := f.tracker.RecordSale(context.Background(), inventory.SaleLine{
		SaleItemID: "si-1", Scope: scopeP1, Quantity: d("1"), SalePrice: d("9"),
	})
	require.ErrorIs(t, err, domain.ErrNegativeQuantity)

	st := f.state(t, scopeP1)
	assertDec(t, "0", st.CurrentQuantity)
	assert.Equal(t, int64(0), st.LastSequence)
	assert.Empty(t, f.ledger(t, scopeP1))

	rec, err := f.store.Repos().Cogs.GetBySaleItem(context.Background(), "si-1")
	require.NoError(t, err)
	assert.Nil(t, rec, "no debe existir registro de COGS")
}

func TestApplyMovement_EscenarioC_ResetEnCero(t *testing.T) {
	f := newFixture(t)
	f.purchase(t, scopeP1, "1", "3.3333")
	f.purchase(t, scopeP1, "2", "3.3334")
	f.sell(t, scopeP1, "si-1", "3", "5")

	st := f.state(t, scopeP1)
	assert.True(t, st.CurrentQuantity.IsZero())
	assert.True(t, st.TotalValue.IsZero())
	assert.True(t, st.WeightedAverageCost.IsZero())

	r := f.purchase(t, scopeP1, "3", "10")
	assertDec(t, "10", r.State.WeightedAverageCost)
	assertDec(t, "30", r.State.TotalValue)
}

func TestApplyMovement_EscenarioD_SinActualizacionesPerdidas(t *testing.T) {
	f := newFixture(t)
	const workers = 40

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			cost := fmt.Sprintf("%d.25", 1+i%7)
			_, err := f.engine.ApplyMovement(ctx, inventory.MovementRequest{
				Scope: scopeP1, Type: entity.MovementPurchase,
				QuantityDelta: d("1.5"), UnitCost: dp(cost),
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	st := f.state(t, scopeP1)
	assertDec(t, "60", st.CurrentQuantity)
	assert.Equal(t, int64(workers), st.LastSequence)

	replayed, err := f.engine.Replay(context.Background(), scopeP1)
	require.NoError(t, err)
	assert.True(t, st.SameTotals(replayed))
}

// ──────────────────────────────────────────────────────────────────────────────
// Validación
// ──────────────────────────────────────────────────────────────────────────────

func TestApplyMovement_Invalidos(t *testing.T) {
	tests := []struct {
		name string
		req  inventory.MovementRequest
	}{
		{"cantidad cero", inventory.MovementRequest{Scope: scopeP1, Type: entity.MovementPurchase, QuantityDelta: d("0"), UnitCost: dp("1")}},
		{"cero tras redondeo", inventory.MovementRequest{Scope: scopeP1, Type: entity.MovementPurchase, QuantityDelta: d("0.00001"), UnitCost: dp("1")}},
		{"compra negativa", inventory.MovementRequest{Scope: scopeP1, Type: entity.MovementPurchase, QuantityDelta: d("-1"), UnitCost: dp("1")}},
		{"venta positiva", inventory.MovementRequest{Scope: scopeP1, Type: entity.MovementSale, QuantityDelta: d("1")}},
		{"merma positiva", inventory.MovementRequest{Scope: scopeP1, Type: entity.MovementWastage, QuantityDelta: d("1")}},
		{"compra sin costo", inventory.MovementRequest{Scope: scopeP1, Type: entity.MovementPurchase, QuantityDelta: d("1")}},
		{"devolución con costo negativo", inventory.MovementRequest{Scope: scopeP1, Type: entity.MovementReturn, QuantityDelta: d("1"), UnitCost: dp("-1")}},
		{"tipo desconocido", inventory.MovementRequest{Scope: scopeP1, Type: "gift", QuantityDelta: d("1"), UnitCost: dp("1")}},
		{"scope vacío", inventory.MovementRequest{Type: entity.MovementPurchase, QuantityDelta: d("1"), UnitCost: dp("1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.engine.ApplyMovement(context.Background(), tt.req)
			require.ErrorIs(t, err, domain.ErrInvalidMovement)
			assert.Empty(t, f.ledger(t, scopeP1))
		})
	}
}

func TestApplyMovement_FechaAnteriorAlUltimoMovimiento(t *testing.T) {
	f := newFixture(t)
	t1 := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	_, err := f.engine.ApplyMovement(context.Background(), inventory.MovementRequest{
		Scope: scopeP1, Type: entity.MovementPurchase, QuantityDelta: d("5"), UnitCost: dp("2"), OccurredAt: t1,
	})
	require.NoError(t, err)

	_, err = f.engine.ApplyMovement(context.Background(), inventory.MovementRequest{
		Scope: scopeP1, Type: entity.MovementPurchase, QuantityDelta: d("5"), UnitCost: dp("2"), OccurredAt: t1.Add(-time.Minute),
	})
	require.ErrorIs(t, err, domain.ErrInvalidMovement)

	// misma fecha se acepta: el desempate es la secuencia
	_, err = f.engine.ApplyMovement(context.Background(), inventory.MovementRequest{
		Scope: scopeP1, Type: entity.MovementPurchase, QuantityDelta: d("5"), UnitCost: dp("4"), OccurredAt: t1,
	})
	require.NoError(t, err)
	assertDec(t, "3", f.state(t, scopeP1).WeightedAverageCost)
}

func TestApplyMovement_SinFechaNoQuedaAntesDeUnMovimientoFuturo(t *testing.T) {
	f := newFixture(t)
	future := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	_, err := f.engine.ApplyMovement(context.Background(), inventory.MovementRequest{
		Scope: scopeP1, Type: entity.MovementPurchase, QuantityDelta: d("1"), UnitCost: dp("1"), OccurredAt: future,
	})
	require.NoError(t, err)

	r := f.purchase(t, scopeP1, "1", "1")
	assert.True(t, r.Movement.OccurredAt.Equal(future))
}

func TestApplyMovement_SalidaIgnoraCostoRecibido(t *testing.T) {
	f := newFixture(t)
	f.purchase(t, scopeP1, "4", "2.5")

	r, err := f.engine.ApplyMovement(context.Background(), inventory.MovementRequest{
		Scope: scopeP1, Type: entity.MovementWastage, QuantityDelta: d("-1"), UnitCost: dp("999"),
	})
	require.NoError(t, err)
	assertDec(t, "2.5", r.Movement.UnitCost)
	assertDec(t, "2.5", r.State.WeightedAverageCost)
	assertDec(t, "7.5", r.State.TotalValue)
}

func TestApplyMovement_AjustePositivoSinCostoEntraAlWac(t *testing.T) {
	f := newFixture(t)
	f.purchase(t, scopeP1, "10", "6")

	r, err := f.engine.ApplyMovement(context.Background(), inventory.MovementRequest{
		Scope: scopeP1, Type: entity.MovementAdjustment, QuantityDelta: d("2"),
	})
	require.NoError(t, err)
	assertDec(t, "6", r.Movement.UnitCost)
	assertDec(t, "12", r.State.CurrentQuantity)
	assertDec(t, "6", r.State.WeightedAverageCost)

	r, err = f.engine.ApplyMovement(context.Background(), inventory.MovementRequest{
		Scope: scopeP1, Type: entity.MovementAdjustment, QuantityDelta: d("-12"),
	})
	require.NoError(t, err)
	assert.True(t, r.State.TotalValue.IsZero())
}

func TestApplyMovement_HistorialPorMovimiento(t *testing.T) {
	f := newFixture(t)
	f.purchase(t, scopeP1, "10", "5")
	r := f.purchase(t, scopeP1, "10", "7")

	h := r.History
	assert.Equal(t, r.Movement.ID, h.MovementID)
	assertDec(t, "5", h.PreviousWac)
	assertDec(t, "6", h.NewWac)
	assertDec(t, "10", h.PreviousQuantity)
	assertDec(t, "20", h.NewQuantity)
	assertDec(t, "50", h.PreviousValue)
	assertDec(t, "120", h.NewValue)
	assert.Equal(t, entity.MovementPurchase, h.TriggerType)
	assert.Equal(t, "po-1", h.TriggerReferenceID)

	hist, err := f.engine.ListHistory(context.Background(), scopeP1, 0, 0)
	require.NoError(t, err)
	assert.Len(t, hist, 2)

	page, err := f.engine.ListMovements(context.Background(), scopeP1, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(2), page[0].Sequence)
}

// ──────────────────────────────────────────────────────────────────────────────
// Atomicidad y plazos
// ──────────────────────────────────────────────────────────────────────────────

func TestApplyMovement_FallaDePersistenciaRevierteTodo(t *testing.T) {
	for _, op := range []string{memory.OpMovementAppend, memory.OpHistoryAppend, memory.OpStatePut, memory.OpCommit} {
		t.Run(op, func(t *testing.T) {
			f := newFixture(t)
			f.purchase(t, scopeP1, "10", "5")

			cause := errors.New("disco lleno")
			f.store.FailOn(op, cause)
			_, err := f.engine.ApplyMovement(context.Background(), inventory.MovementRequest{
				Scope: scopeP1, Type: entity.MovementPurchase, QuantityDelta: d("10"), UnitCost: dp("7"),
			})
			require.ErrorIs(t, err, domain.ErrPersistence)
			require.ErrorIs(t, err, cause)

			st := f.state(t, scopeP1)
			assertDec(t, "10", st.CurrentQuantity)
			assertDec(t, "5", st.WeightedAverageCost)
			assert.Equal(t, int64(1), st.LastSequence)
			assert.Len(t, f.ledger(t, scopeP1), 1)
			hist, err := f.engine.ListHistory(context.Background(), scopeP1, 0, 0)
			require.NoError(t, err)
			assert.Len(t, hist, 1)

			f.store.ClearFailures()
			r := f.purchase(t, scopeP1, "10", "7")
			assert.Equal(t, int64(2), r.Movement.Sequence)
		})
	}
}

func TestApplyMovement_LockOcupadoEsEngineBusy(t *testing.T) {
	f := newFixture(t)
	unlock, err := f.locker.Lock(context.Background(), scopeP1.String())
	require.NoError(t, err)
	defer unlock()

	_, err = f.engine.ApplyMovement(context.Background(), inventory.MovementRequest{
		Scope: scopeP1, Type: entity.MovementPurchase, QuantityDelta: d("1"), UnitCost: dp("1"),
	})
	require.ErrorIs(t, err, domain.ErrEngineBusy)

	// otro scope no está bloqueado
	f.purchase(t, entity.ScopeKey{ProductID: "p2"}, "1", "1")
}

func TestApplyMovement_PersistenciaLentaEsEngineBusy(t *testing.T) {
	f := newFixture(t, inventory.WithTxTimeout(20*time.Millisecond))
	f.store.DelayOn(memory.OpStatePut, 500*time.Millisecond)

	_, err := f.engine.ApplyMovement(context.Background(), inventory.MovementRequest{
		Scope: scopeP1, Type: entity.MovementPurchase, QuantityDelta: d("1"), UnitCost: dp("1"),
	})
	require.ErrorIs(t, err, domain.ErrEngineBusy)
	assert.Empty(t, f.ledger(t, scopeP1))

	// el lock se liberó
	f.store.ClearFailures()
	f.purchase(t, scopeP1, "1", "1")
}

func TestApplyMovement_CancelacionDelLlamadorNoAbortaLaEscritura(t *testing.T) {
	f := newFixture(t)
	f.store.DelayOn(memory.OpStatePut, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	r, err := f.engine.ApplyMovement(ctx, inventory.MovementRequest{
		Scope: scopeP1, Type: entity.MovementPurchase, QuantityDelta: d("3"), UnitCost: dp("2"),
	})
	require.NoError(t, err)
	assertDec(t, "3", r.State.CurrentQuantity)
	assertDec(t, "3", f.state(t, scopeP1).CurrentQuantity)
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrencia
// ──────────────────────────────────────────────────────────────────────────────

func TestApplyMovement_ScopesIndependientesEnParalelo(t *testing.T) {
	f := newFixture(t)
	scopes := []entity.ScopeKey{{ProductID: "a"}, {ProductID: "b"}, {ProductID: "c", WarehouseID: "w1"}}

	g, ctx := errgroup.WithContext(context.Background())
	for _, sc := range scopes {
		sc := sc
		for i := 0; i < 15; i++ {
			g.Go(func() error {
				_, err := f.engine.ApplyMovement(ctx, inventory.MovementRequest{
					Scope: sc, Type: entity.MovementPurchase, QuantityDelta: d("2"), UnitCost: dp("3"),
				})
				return err
			})
		}
	}
	require.NoError(t, g.Wait())

	for _, sc := range scopes {
		st := f.state(t, sc)
		assertDec(t, "30", st.CurrentQuantity)
		assertDec(t, "3", st.WeightedAverageCost)
	}
}

func TestRecordSale_ConcurrenteUsaWacPrevioALaVenta(t *testing.T) {
	f := newFixture(t)
	f.purchase(t, scopeP1, "100", "5")

	rnd := rand.New(rand.NewSource(7))
	costs := make([]string, 20)
	for i := range costs {
		costs[i] = fmt.Sprintf("%d.%02d", 3+rnd.Intn(6), rnd.Intn(100))
	}

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 20; i++ {
		i := i
		g.Go(func() error {
			_, err := f.engine.ApplyMovement(ctx, inventory.MovementRequest{
				Scope: scopeP1, Type: entity.MovementPurchase, QuantityDelta: d("3"), UnitCost: dp(costs[i]),
			})
			return err
		})
		g.Go(func() error {
			_, err := f.tracker.RecordSale(ctx, inventory.SaleLine{
				SaleItemID: fmt.Sprintf("si-%d", i), Scope: scopeP1, Quantity: d("2"), SalePrice: d("9"),
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	ms := f.ledger(t, scopeP1)
	require.Len(t, ms, 41)
	for i := 1; i < len(ms); i++ {
		if ms[i].Type != entity.MovementSale {
			continue
		}
		// la venta se costea al WAC que dejó el movimiento inmediatamente anterior
		assertDec(t, ms[i-1].WacAfterMovement.String(), ms[i].UnitCost)

		rec, err := f.store.Repos().Cogs.GetBySaleItem(context.Background(), ms[i].Reference.ID)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assertDec(t, ms[i].UnitCost.String(), rec.WacAtSale)
	}

	st := f.state(t, scopeP1)
	assertDec(t, "120", st.CurrentQuantity)
}

func TestApplyMovement_ScopesConSeparadorNoComparten(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ab := entity.ScopeKey{ProductID: "a/b", BranchID: "c"}
	bc := entity.ScopeKey{ProductID: "a", BranchID: "b/c"}

	f.purchase(t, ab, "10", "5")

	st := f.state(t, bc)
	assert.True(t, st.CurrentQuantity.IsZero())
	assert.True(t, st.TotalValue.IsZero())
	assert.Equal(t, bc, st.Scope)
	assert.Empty(t, f.ledger(t, bc))

	_, err := f.tracker.RecordSale(ctx, inventory.SaleLine{
		SaleItemID: "si-1", Scope: bc, Quantity: d("1"), SalePrice: d("9"),
	})
	assert.ErrorIs(t, err, domain.ErrNegativeQuantity)

	res, err := f.engine.VerifyScope(ctx, ab)
	require.NoError(t, err)
	assert.True(t, res.Healthy)
	assertDec(t, "10", res.Live.CurrentQuantity)
}
