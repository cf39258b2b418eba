package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-wac/internal/domain"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/domain/inventory"
	"github.com/jhoicas/inventario-wac/pkg/logger"
)

// ReferenceSaleItem tipo de referencia de los movimientos de venta.
const ReferenceSaleItem = "sale_item"

// SaleLine línea vendida que entrega el procesamiento de ventas.
type SaleLine struct {
	SaleItemID string
	Scope      entity.ScopeKey
	Quantity   decimal.Decimal // positiva; el motor registra la salida con signo negativo
	SalePrice  decimal.Decimal // precio unitario de venta
	OccurredAt time.Time
	Actor      string
}

// CogsTracker registra el costo de ventas de cada línea al WAC vigente en el instante de la venta.
type CogsTracker struct {
	engine *WacEngine
	log    *logger.Logger
}

// NewCogsTracker construye el tracker sobre el motor.
func NewCogsTracker(engine *WacEngine, log *logger.Logger) *CogsTracker {
	if log == nil {
		log = logger.Nop()
	}
	return &CogsTracker{engine: engine, log: log.Component("cogs_tracker")}
}

// RecordSale aplica la salida de la venta y crea su CogsRecord en la misma transacción.
// El WAC de la venta es el que existía justo antes de que esta venta redujera el inventario,
// leído bajo el lock del scope. Si no hay stock suficiente falla con ErrNegativeQuantity y no se crea registro.
// Una línea de venta solo puede registrarse una vez (ErrDuplicate).
func (t *CogsTracker) RecordSale(ctx context.Context, line SaleLine) (*entity.CogsRecord, error) {
	if line.SaleItemID == "" {
		return nil, fmt.Errorf("%w: sale_item_id requerido", domain.ErrInvalidInput)
	}
	qty := inventory.Round(line.Quantity)
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: la cantidad vendida debe ser positiva", domain.ErrInvalidMovement)
	}
	if line.SalePrice.IsNegative() {
		return nil, fmt.Errorf("%w: precio de venta negativo", domain.ErrInvalidInput)
	}

	existing, err := t.engine.reader.Cogs.GetBySaleItem(ctx, line.SaleItemID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: la línea %s ya tiene costo de venta", domain.ErrDuplicate, line.SaleItemID)
	}

	req := MovementRequest{
		Scope:         line.Scope,
		Type:          entity.MovementSale,
		QuantityDelta: qty.Neg(),
		Reference:     entity.Reference{Type: ReferenceSaleItem, ID: line.SaleItemID},
		Actor:         line.Actor,
		OccurredAt:    line.OccurredAt,
	}

	var record *entity.CogsRecord
	_, err = t.engine.apply(ctx, req, func(ctx context.Context, repos Repos, res *MovementResult) error {
		record = buildCogsRecord(line.SaleItemID, qty, line.SalePrice, res)
		return repos.Cogs.Create(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	if record.HasWarning(entity.WarningZeroCost) {
		t.log.Warn().
			Str("sale_item_id", record.SaleItemID).
			Str("scope", record.Scope.String()).
			Msg("venta registrada con WAC 0: revisar costo de entrada del producto")
	}
	return record, nil
}

// GetBySaleItem devuelve el registro de costo de ventas de una línea; ErrNotFound si no se ha registrado.
func (t *CogsTracker) GetBySaleItem(ctx context.Context, saleItemID string) (*entity.CogsRecord, error) {
	if saleItemID == "" {
		return nil, fmt.Errorf("%w: sale_item_id requerido", domain.ErrInvalidInput)
	}
	rec, err := t.engine.reader.Cogs.GetBySaleItem(ctx, saleItemID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: la línea %s no tiene costo de venta", domain.ErrNotFound, saleItemID)
	}
	return rec, nil
}

// buildCogsRecord el costo unitario del movimiento de salida es el WAC leído bajo lock antes de la venta.
func buildCogsRecord(saleItemID string, qty, salePrice decimal.Decimal, res *MovementResult) *entity.CogsRecord {
	wac := res.Movement.UnitCost
	price := inventory.Round(salePrice)
	f := inventory.ComputeCogs(qty, wac, price)

	var warnings []string
	if wac.IsZero() {
		warnings = append(warnings, entity.WarningZeroCost)
	}
	return &entity.CogsRecord{
		ID:           uuid.Must(uuid.NewV7()).String(),
		SaleItemID:   saleItemID,
		Scope:        res.Movement.Scope,
		MovementID:   res.Movement.ID,
		QuantitySold: qty,
		WacAtSale:    wac,
		TotalCogs:    f.TotalCogs,
		SalePrice:    price,
		Revenue:      f.Revenue,
		GrossProfit:  f.GrossProfit,
		ProfitMargin: f.ProfitMargin,
		Warnings:     warnings,
		OccurredAt:   res.Movement.OccurredAt,
		Actor:        res.Movement.Actor,
		CreatedAt:    res.Movement.CreatedAt,
	}
}
