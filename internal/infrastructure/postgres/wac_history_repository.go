package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/domain/repository"
)

var _ repository.WacHistoryRepository = (*WacHistoryRepo)(nil)

// WacHistoryRepo historial de auditoría de transiciones WAC.
type WacHistoryRepo struct {
	q Querier
}

// NewWacHistoryRepository construye el adaptador. Pasar pool o tx (Querier).
func NewWacHistoryRepository(q Querier) *WacHistoryRepo {
	return &WacHistoryRepo{q: q}
}

func (r *WacHistoryRepo) Append(ctx context.Context, h *entity.WacHistoryEntry) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO wac_history (id, product_id, branch_id, warehouse_id, movement_id,
			previous_wac, new_wac, previous_quantity, new_quantity, previous_value, new_value,
			trigger_type, trigger_reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		h.ID, h.Scope.ProductID, h.Scope.BranchID, h.Scope.WarehouseID, h.MovementID,
		h.PreviousWac, h.NewWac, h.PreviousQuantity, h.NewQuantity, h.PreviousValue, h.NewValue,
		string(h.TriggerType), h.TriggerReferenceID, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wac history: %w", err)
	}
	return nil
}

// ListByScope entradas del scope en orden de escritura (id v7 es monótono en el tiempo).
func (r *WacHistoryRepo) ListByScope(ctx context.Context, scope entity.ScopeKey, limit, offset int) ([]*entity.WacHistoryEntry, error) {
	query := `
		SELECT id::text, product_id, branch_id, warehouse_id, movement_id::text,
			previous_wac, new_wac, previous_quantity, new_quantity, previous_value, new_value,
			trigger_type, trigger_reference_id, created_at
		FROM wac_history
		WHERE product_id = $1 AND branch_id = $2 AND warehouse_id = $3
		ORDER BY created_at, id`
	args := []any{scope.ProductID, scope.BranchID, scope.WarehouseID}
	if limit > 0 {
		query += " LIMIT $4 OFFSET $5"
		args = append(args, limit, max(offset, 0))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wac history: %w", err)
	}
	defer rows.Close()

	var list []*entity.WacHistoryEntry
	for rows.Next() {
		var (
			h   entity.WacHistoryEntry
			typ string
		)
		if err := rows.Scan(&h.ID, &h.Scope.ProductID, &h.Scope.BranchID, &h.Scope.WarehouseID, &h.MovementID,
			&h.PreviousWac, &h.NewWac, &h.PreviousQuantity, &h.NewQuantity, &h.PreviousValue, &h.NewValue,
			&typ, &h.TriggerReferenceID, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wac history: %w", err)
		}
		h.TriggerType = entity.MovementType(typ)
		h.CreatedAt = h.CreatedAt.UTC()
		list = append(list, &h)
	}
	return list, rows.Err()
}
