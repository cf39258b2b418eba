package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo catálogo mínimo de productos (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// Upsert crea o actualiza el producto por ID.
func (r *ProductRepo) Upsert(ctx context.Context, p *entity.Product) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO products (id, sku, name, category_id, brand_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			sku = EXCLUDED.sku, name = EXCLUDED.name,
			category_id = EXCLUDED.category_id, brand_id = EXCLUDED.brand_id`,
		p.ID, p.SKU, p.Name, p.CategoryID, p.BrandID)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// FindByIDs productos encontrados indexados por ID.
func (r *ProductRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*entity.Product, error) {
	out := make(map[string]*entity.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, sku, name, category_id, brand_id FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p entity.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.CategoryID, &p.BrandID); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = &p
	}
	return out, rows.Err()
}

// ListIDs IDs de la categoría y/o marca dadas, ordenados.
func (r *ProductRepo) ListIDs(ctx context.Context, categoryID, brandID string) ([]string, error) {
	var w whereBuilder
	if categoryID != "" {
		w.add("category_id = $%d", categoryID)
	}
	if brandID != "" {
		w.add("brand_id = $%d", brandID)
	}
	rows, err := r.q.Query(ctx, `SELECT id FROM products`+w.sql()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list product ids: %w", err)
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
