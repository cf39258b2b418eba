package repository

import (
	"context"

	"github.com/jhoicas/inventario-wac/internal/domain/entity"
)

// WacStateRepository puerto del estado WAC cacheado (una fila por scope).
type WacStateRepository interface {
	// Get devuelve el estado o nil si el scope nunca tuvo movimientos.
	Get(ctx context.Context, scope entity.ScopeKey) (*entity.WacState, error)
	// GetForUpdate devuelve el estado bloqueando la fila hasta el fin de la transacción.
	// Si no existe lo crea en cero (creación perezosa).
	GetForUpdate(ctx context.Context, scope entity.ScopeKey) (*entity.WacState, error)
	// Put reemplaza el estado del scope (upsert).
	Put(ctx context.Context, state *entity.WacState) error
	// List devuelve los estados que pasan el filtro, ordenados por scope.
	List(ctx context.Context, filter ScopeFilter) ([]*entity.WacState, error)
}
