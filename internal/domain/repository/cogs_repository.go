package repository

import (
	"context"

	"github.com/jhoicas/inventario-wac/internal/domain/entity"
)

// CogsRepository puerto de los registros de costo de ventas.
type CogsRepository interface {
	// Create persiste el registro; devuelve domain.ErrDuplicate si la línea de venta ya tiene uno.
	Create(ctx context.Context, record *entity.CogsRecord) error
	GetBySaleItem(ctx context.Context, saleItemID string) (*entity.CogsRecord, error)
	List(ctx context.Context, filter CogsFilter) ([]*entity.CogsRecord, error)
}
