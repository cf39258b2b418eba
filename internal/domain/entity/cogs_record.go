package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Advertencias estructuradas adjuntas a un CogsRecord.
const (
	// WarningZeroCost el WAC era 0 al vender: casi siempre indica un costo no cargado,
	// no un producto gratuito. El margen del 100% no debe leerse como real.
	WarningZeroCost = "ZERO_COST"
)

// CogsRecord costo de ventas de una línea vendida, tomado del WAC vigente en el instante de la venta.
// Inmutable una vez creado.
type CogsRecord struct {
	ID           string
	SaleItemID   string
	Scope        ScopeKey
	MovementID   string
	QuantitySold decimal.Decimal
	WacAtSale    decimal.Decimal
	TotalCogs    decimal.Decimal // QuantitySold * WacAtSale
	SalePrice    decimal.Decimal
	Revenue      decimal.Decimal // QuantitySold * SalePrice
	GrossProfit  decimal.Decimal // Revenue - TotalCogs
	ProfitMargin decimal.Decimal // GrossProfit / Revenue (fracción), 0 si Revenue es 0
	Warnings     []string
	OccurredAt   time.Time
	Actor        string
	CreatedAt    time.Time
}

// HasWarning indica si el registro trae la advertencia dada.
func (r *CogsRecord) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w == code {
			return true
		}
	}
	return false
}
