package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-wac/internal/domain/entity"
)

// ReportQuery parámetros comunes de los reportes (query string).
type ReportQuery struct {
	ProductIDs  string `query:"product_ids"` // separados por coma
	CategoryID  string `query:"category_id"`
	BrandID     string `query:"brand_id"`
	BranchID    string `query:"branch_id"`
	WarehouseID string `query:"warehouse_id"`
	From        string `query:"from"` // RFC3339 o YYYY-MM-DD, inclusivo
	To          string `query:"to"`   // RFC3339 o YYYY-MM-DD, exclusivo
}

// ── Valorización ──────────────────────────────────────────────────────────────

// ValuationRowDTO valor actual del inventario de un scope.
type ValuationRowDTO struct {
	Scope       entity.ScopeKey `json:"scope"`
	SKU         string          `json:"sku,omitempty"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Wac         decimal.Decimal `json:"wac"`
	TotalValue  decimal.Decimal `json:"total_value"`
}

// ValuationReportDTO respuesta de GET /api/reports/valuation.
type ValuationReportDTO struct {
	GeneratedAt   time.Time         `json:"generated_at"`
	Rows          []ValuationRowDTO `json:"rows"`
	TotalQuantity decimal.Decimal   `json:"total_quantity"`
	TotalValue    decimal.Decimal   `json:"total_value"`
}

// ── Costo de ventas ───────────────────────────────────────────────────────────

// SalesFiguresDTO agregado de registros de costo de ventas.
type SalesFiguresDTO struct {
	QuantitySold  decimal.Decimal `json:"quantity_sold"`
	Revenue       decimal.Decimal `json:"revenue"`
	Cogs          decimal.Decimal `json:"cogs"`
	GrossProfit   decimal.Decimal `json:"gross_profit"`
	Margin        decimal.Decimal `json:"margin"`     // fracción, 0 si no hubo ingresos
	MarginPct     decimal.Decimal `json:"margin_pct"` // Margin * 100
	SalesCount    int             `json:"sales_count"`
	ZeroCostCount int             `json:"zero_cost_count"` // ventas con advertencia ZERO_COST
}

// CogsRowDTO agregado por scope.
type CogsRowDTO struct {
	Scope entity.ScopeKey `json:"scope"`
	SalesFiguresDTO
}

// CogsReportDTO respuesta de GET /api/reports/cogs.
type CogsReportDTO struct {
	Rows   []CogsRowDTO    `json:"rows"`
	Totals SalesFiguresDTO `json:"totals"`
}

// BucketDTO agregado de un período (día, mes o año) en la zona horaria de reportes.
type BucketDTO struct {
	BucketStart time.Time `json:"bucket_start"`
	Label       string    `json:"label"` // 2026-03-05 | 2026-03 | 2026
	SalesFiguresDTO
}

// PerformerDTO posición del ranking por producto, categoría o marca.
type PerformerDTO struct {
	Rank  int    `json:"rank"`
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
	SalesFiguresDTO
}

// SummaryDTO respuesta de GET /api/reports/summary: KPIs del día y del mes más el valor del inventario.
type SummaryDTO struct {
	InventoryValue decimal.Decimal `json:"inventory_value"`
	Today          SalesFiguresDTO `json:"today"`
	Month          SalesFiguresDTO `json:"month"`
	TopProducts    []PerformerDTO  `json:"top_products"`
	DateLabel      string          `json:"date_label"` // ej: "Marzo 2026"
}
