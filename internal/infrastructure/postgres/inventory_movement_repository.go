package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/domain/repository"
)

var _ repository.InventoryMovementRepository = (*InventoryMovementRepo)(nil)

const movementColumns = `id::text, product_id, branch_id, warehouse_id, sequence, movement_type,
	quantity_delta, unit_cost, total_cost, running_quantity, running_value, wac_after_movement,
	reference_type, reference_id, occurred_at, actor, created_at`

// InventoryMovementRepo ledger de movimientos sobre PostgreSQL (usable con pool o tx).
type InventoryMovementRepo struct {
	q Querier
}

// NewInventoryMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInventoryMovementRepository(q Querier) *InventoryMovementRepo {
	return &InventoryMovementRepo{q: q}
}

// Append inserta el movimiento. La unicidad (scope, sequence) la garantiza la tabla.
func (r *InventoryMovementRepo) Append(ctx context.Context, m *entity.InventoryMovement) error {
	query := `
		INSERT INTO inventory_movements (id, product_id, branch_id, warehouse_id, sequence, movement_type,
			quantity_delta, unit_cost, total_cost, running_quantity, running_value, wac_after_movement,
			reference_type, reference_id, occurred_at, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.Scope.ProductID, m.Scope.BranchID, m.Scope.WarehouseID, m.Sequence, string(m.Type),
		m.QuantityDelta, m.UnitCost, m.TotalCost, m.RunningQuantity, m.RunningValue, m.WacAfterMovement,
		m.Reference.Type, m.Reference.ID, m.OccurredAt, m.Actor, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert inventory movement: %w", err)
	}
	return nil
}

// ListByScope movimientos del scope en orden de ledger. limit <= 0 devuelve todos.
func (r *InventoryMovementRepo) ListByScope(ctx context.Context, scope entity.ScopeKey, limit, offset int) ([]*entity.InventoryMovement, error) {
	query := `SELECT ` + movementColumns + `
		FROM inventory_movements
		WHERE product_id = $1 AND branch_id = $2 AND warehouse_id = $3
		ORDER BY occurred_at, sequence`
	args := []any{scope.ProductID, scope.BranchID, scope.WarehouseID}
	if limit > 0 {
		query += " LIMIT $4 OFFSET $5"
		args = append(args, limit, max(offset, 0))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements by scope: %w", err)
	}
	defer rows.Close()

	var list []*entity.InventoryMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func scanMovement(row pgx.Row) (*entity.InventoryMovement, error) {
	var (
		m   entity.InventoryMovement
		typ string
	)
	err := row.Scan(&m.ID, &m.Scope.ProductID, &m.Scope.BranchID, &m.Scope.WarehouseID, &m.Sequence, &typ,
		&m.QuantityDelta, &m.UnitCost, &m.TotalCost, &m.RunningQuantity, &m.RunningValue, &m.WacAfterMovement,
		&m.Reference.Type, &m.Reference.ID, &m.OccurredAt, &m.Actor, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan movement: %w", err)
	}
	m.Type = entity.MovementType(typ)
	m.OccurredAt = m.OccurredAt.UTC()
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}
