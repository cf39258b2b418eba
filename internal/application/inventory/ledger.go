package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-wac/internal/domain"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/domain/inventory"
)

// VerifyResult compara el estado cacheado con el recalculado desde el ledger.
// Si el ledger no se puede plegar, Replayed es nil y ReplayErr trae la causa.
type VerifyResult struct {
	Scope     entity.ScopeKey
	Live      *entity.WacState
	Replayed  *entity.WacState
	ReplayErr error
	Healthy   bool
}

// Replay recalcula el estado del scope plegando todos sus movimientos en orden de ledger,
// con la misma aritmética que ApplyMovement. No toma lock ni escribe.
func (e *WacEngine) Replay(ctx context.Context, scope entity.ScopeKey) (*entity.WacState, error) {
	if scope.IsZero() {
		return nil, fmt.Errorf("%w: scope sin producto", domain.ErrInvalidInput)
	}
	return replayWith(ctx, e.reader, scope)
}

// VerifyScope indica si el estado cacheado coincide exactamente con el replay del ledger.
// Toma el lock del scope para comparar una foto consistente; una divergencia es señal de corrupción.
func (e *WacEngine) VerifyScope(ctx context.Context, scope entity.ScopeKey) (*VerifyResult, error) {
	if scope.IsZero() {
		return nil, fmt.Errorf("%w: scope sin producto", domain.ErrInvalidInput)
	}
	unlock, err := e.lockScopes(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer unlock()

	live, err := e.reader.States.Get(ctx, scope)
	if err != nil {
		return nil, err
	}
	if live == nil {
		live = entity.NewWacState(scope)
	}
	movements, err := e.reader.Movements.ListByScope(ctx, scope, 0, 0)
	if err != nil {
		return nil, err
	}
	replayed, err := foldState(scope, movements)
	if err != nil {
		// un ledger que no se pliega es corrupción, no una falla de lectura
		e.metrics.ReplayDivergence()
		e.log.Warn().Err(err).Str("scope", scope.String()).Msg("ledger WAC no se puede recalcular")
		return &VerifyResult{Scope: scope, Live: live, ReplayErr: err}, nil
	}

	res := &VerifyResult{Scope: scope, Live: live, Replayed: replayed, Healthy: live.SameTotals(replayed)}
	if !res.Healthy {
		e.metrics.ReplayDivergence()
		e.log.Warn().
			Str("scope", scope.String()).
			Str("live_qty", live.CurrentQuantity.String()).
			Str("replay_qty", replayed.CurrentQuantity.String()).
			Str("live_value", live.TotalValue.String()).
			Str("replay_value", replayed.TotalValue.String()).
			Str("live_wac", live.WeightedAverageCost.String()).
			Str("replay_wac", replayed.WeightedAverageCost.String()).
			Msg("estado WAC diverge del ledger")
	}
	return res, nil
}

// RepairScope reemplaza el estado cacheado por el replay del ledger, bajo el lock del scope.
// El ledger no se toca: es la fuente de verdad. Devuelve el estado reparado y si cambió.
func (e *WacEngine) RepairScope(ctx context.Context, scope entity.ScopeKey) (*entity.WacState, bool, error) {
	if scope.IsZero() {
		return nil, false, fmt.Errorf("%w: scope sin producto", domain.ErrInvalidInput)
	}
	unlock, err := e.lockScopes(ctx, scope)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	var (
		repaired *entity.WacState
		changed  bool
	)
	err = e.runTx(ctx, func(txCtx context.Context, repos Repos) error {
		current, err := repos.States.GetForUpdate(txCtx, scope)
		if err != nil {
			return err
		}
		replayed, err := replayWith(txCtx, repos, scope)
		if err != nil {
			return err
		}
		changed = !current.SameTotals(replayed) || !current.LastMovementAt.Equal(replayed.LastMovementAt)
		if !changed {
			repaired = current
			return nil
		}
		replayed.LastUpdatedAt = e.now().UTC()
		if err := repos.States.Put(txCtx, replayed); err != nil {
			return err
		}
		repaired = replayed
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		e.log.Scope(scope.String()).Warn().
			Str("quantity", repaired.CurrentQuantity.String()).
			Str("wac", repaired.WeightedAverageCost.String()).
			Msg("estado WAC reparado desde el ledger")
	}
	return repaired, changed, nil
}

func replayWith(ctx context.Context, repos Repos, scope entity.ScopeKey) (*entity.WacState, error) {
	movements, err := repos.Movements.ListByScope(ctx, scope, 0, 0)
	if err != nil {
		return nil, err
	}
	return foldState(scope, movements)
}

func foldState(scope entity.ScopeKey, movements []*entity.InventoryMovement) (*entity.WacState, error) {
	totals, err := inventory.Fold(movements)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", scope.String(), err)
	}
	st := entity.NewWacState(scope)
	st.CurrentQuantity = totals.Quantity
	st.TotalValue = totals.Value
	st.WeightedAverageCost = totals.Wac
	if n := len(movements); n > 0 {
		last := movements[n-1]
		st.LastSequence = last.Sequence
		st.LastMovementAt = last.OccurredAt
	}
	return st, nil
}
