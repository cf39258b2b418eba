package repository

import (
	"context"

	"github.com/jhoicas/inventario-wac/internal/domain/entity"
)

// InventoryMovementRepository puerto del ledger de movimientos (append-only).
type InventoryMovementRepository interface {
	// Append agrega un movimiento. Nunca falla en silencio: cualquier error se devuelve.
	Append(ctx context.Context, movement *entity.InventoryMovement) error
	// ListByScope devuelve los movimientos del scope en orden de ledger (occurred_at, sequence).
	// limit <= 0 devuelve todos (replay).
	ListByScope(ctx context.Context, scope entity.ScopeKey, limit, offset int) ([]*entity.InventoryMovement, error)
}
