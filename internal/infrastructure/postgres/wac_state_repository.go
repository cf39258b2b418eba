package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/domain/repository"
)

var _ repository.WacStateRepository = (*WacStateRepo)(nil)

const stateColumns = `product_id, branch_id, warehouse_id, current_quantity, total_value,
	weighted_average_cost, last_sequence, last_movement_at, last_updated_at`

// WacStateRepo estado WAC cacheado, una fila por scope.
type WacStateRepo struct {
	q Querier
}

// NewWacStateRepository construye el adaptador. Pasar pool o tx (Querier).
func NewWacStateRepository(q Querier) *WacStateRepo {
	return &WacStateRepo{q: q}
}

// Get devuelve el estado del scope o nil si no existe.
func (r *WacStateRepo) Get(ctx context.Context, scope entity.ScopeKey) (*entity.WacState, error) {
	query := `SELECT ` + stateColumns + ` FROM wac_state
		WHERE product_id = $1 AND branch_id = $2 AND warehouse_id = $3`
	st, err := scanState(r.q.QueryRow(ctx, query, scope.ProductID, scope.BranchID, scope.WarehouseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wac state: %w", err)
	}
	return st, nil
}

// GetForUpdate crea la fila en cero si falta y la bloquea (FOR UPDATE) hasta el fin de la tx.
func (r *WacStateRepo) GetForUpdate(ctx context.Context, scope entity.ScopeKey) (*entity.WacState, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO wac_state (product_id, branch_id, warehouse_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, branch_id, warehouse_id) DO NOTHING`,
		scope.ProductID, scope.BranchID, scope.WarehouseID)
	if err != nil {
		return nil, fmt.Errorf("ensure wac state: %w", err)
	}
	query := `SELECT ` + stateColumns + ` FROM wac_state
		WHERE product_id = $1 AND branch_id = $2 AND warehouse_id = $3
		FOR UPDATE`
	st, err := scanState(r.q.QueryRow(ctx, query, scope.ProductID, scope.BranchID, scope.WarehouseID))
	if err != nil {
		return nil, fmt.Errorf("get wac state for update: %w", err)
	}
	return st, nil
}

// Put upsert del estado completo.
func (r *WacStateRepo) Put(ctx context.Context, st *entity.WacState) error {
	var lastMovementAt *time.Time
	if !st.LastMovementAt.IsZero() {
		lastMovementAt = &st.LastMovementAt
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO wac_state (`+stateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (product_id, branch_id, warehouse_id) DO UPDATE SET
			current_quantity = EXCLUDED.current_quantity,
			total_value = EXCLUDED.total_value,
			weighted_average_cost = EXCLUDED.weighted_average_cost,
			last_sequence = EXCLUDED.last_sequence,
			last_movement_at = EXCLUDED.last_movement_at,
			last_updated_at = EXCLUDED.last_updated_at`,
		st.Scope.ProductID, st.Scope.BranchID, st.Scope.WarehouseID,
		st.CurrentQuantity, st.TotalValue, st.WeightedAverageCost,
		st.LastSequence, lastMovementAt, st.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put wac state: %w", err)
	}
	return nil
}

// List estados que pasan el filtro, ordenados por scope.
func (r *WacStateRepo) List(ctx context.Context, filter repository.ScopeFilter) ([]*entity.WacState, error) {
	var w whereBuilder
	w.scope(filter)
	query := `SELECT ` + stateColumns + ` FROM wac_state` + w.sql() +
		` ORDER BY product_id, branch_id, warehouse_id`

	rows, err := r.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list wac states: %w", err)
	}
	defer rows.Close()

	var list []*entity.WacState
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wac state: %w", err)
		}
		list = append(list, st)
	}
	return list, rows.Err()
}

func scanState(row pgx.Row) (*entity.WacState, error) {
	var (
		st             entity.WacState
		lastMovementAt *time.Time
	)
	err := row.Scan(&st.Scope.ProductID, &st.Scope.BranchID, &st.Scope.WarehouseID,
		&st.CurrentQuantity, &st.TotalValue, &st.WeightedAverageCost,
		&st.LastSequence, &lastMovementAt, &st.LastUpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastMovementAt != nil {
		st.LastMovementAt = lastMovementAt.UTC()
	}
	st.LastUpdatedAt = st.LastUpdatedAt.UTC()
	return &st, nil
}
