package repository

import (
	"context"

	"github.com/jhoicas/inventario-wac/internal/domain/entity"
)

// ProductRepository lectura del catálogo para las dimensiones de los reportes.
type ProductRepository interface {
	// FindByIDs devuelve los productos encontrados indexados por ID (los ausentes se omiten).
	FindByIDs(ctx context.Context, ids []string) (map[string]*entity.Product, error)
	// ListIDs devuelve los IDs de producto de la categoría y/o marca dadas (vacío = sin filtrar).
	ListIDs(ctx context.Context, categoryID, brandID string) ([]string, error)
}
