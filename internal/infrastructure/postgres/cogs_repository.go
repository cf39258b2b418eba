package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-wac/internal/domain"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/domain/repository"
)

var _ repository.CogsRepository = (*CogsRepo)(nil)

const cogsColumns = `id::text, sale_item_id, product_id, branch_id, warehouse_id, movement_id::text,
	quantity_sold, wac_at_sale, total_cogs, sale_price, revenue, gross_profit, profit_margin,
	warnings, occurred_at, actor, created_at`

// CogsRepo registros de costo de ventas sobre PostgreSQL.
type CogsRepo struct {
	q Querier
}

// NewCogsRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCogsRepository(q Querier) *CogsRepo {
	return &CogsRepo{q: q}
}

// Create inserta el registro. Una línea de venta repetida devuelve domain.ErrDuplicate.
func (r *CogsRepo) Create(ctx context.Context, c *entity.CogsRecord) error {
	warnings := c.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO cogs_records (id, sale_item_id, product_id, branch_id, warehouse_id, movement_id,
			quantity_sold, wac_at_sale, total_cogs, sale_price, revenue, gross_profit, profit_margin,
			warnings, occurred_at, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		c.ID, c.SaleItemID, c.Scope.ProductID, c.Scope.BranchID, c.Scope.WarehouseID, c.MovementID,
		c.QuantitySold, c.WacAtSale, c.TotalCogs, c.SalePrice, c.Revenue, c.GrossProfit, c.ProfitMargin,
		warnings, c.OccurredAt, c.Actor, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: la línea %s ya tiene costo de venta", domain.ErrDuplicate, c.SaleItemID)
		}
		return fmt.Errorf("insert cogs record: %w", err)
	}
	return nil
}

// GetBySaleItem devuelve el registro de la línea o nil.
func (r *CogsRepo) GetBySaleItem(ctx context.Context, saleItemID string) (*entity.CogsRecord, error) {
	query := `SELECT ` + cogsColumns + ` FROM cogs_records WHERE sale_item_id = $1`
	c, err := scanCogs(r.q.QueryRow(ctx, query, saleItemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cogs by sale item: %w", err)
	}
	return c, nil
}

// List registros por scope y rango [From, To) de occurred_at.
func (r *CogsRepo) List(ctx context.Context, filter repository.CogsFilter) ([]*entity.CogsRecord, error) {
	var w whereBuilder
	w.scope(filter.ScopeFilter)
	if filter.From != nil {
		w.add("occurred_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		w.add("occurred_at < $%d", *filter.To)
	}
	query := `SELECT ` + cogsColumns + ` FROM cogs_records` + w.sql() + ` ORDER BY occurred_at, id`

	rows, err := r.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list cogs records: %w", err)
	}
	defer rows.Close()

	var list []*entity.CogsRecord
	for rows.Next() {
		c, err := scanCogs(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cogs record: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func scanCogs(row pgx.Row) (*entity.CogsRecord, error) {
	var c entity.CogsRecord
	err := row.Scan(&c.ID, &c.SaleItemID, &c.Scope.ProductID, &c.Scope.BranchID, &c.Scope.WarehouseID, &c.MovementID,
		&c.QuantitySold, &c.WacAtSale, &c.TotalCogs, &c.SalePrice, &c.Revenue, &c.GrossProfit, &c.ProfitMargin,
		&c.Warnings, &c.OccurredAt, &c.Actor, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(c.Warnings) == 0 {
		c.Warnings = nil
	}
	c.OccurredAt = c.OccurredAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}
