package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType tipo de movimiento de inventario.
type MovementType string

// Tipos de movimiento soportados por el motor.
const (
	MovementPurchase    MovementType = "purchase"
	MovementSale        MovementType = "sale"
	MovementAdjustment  MovementType = "adjustment" // el signo decide la dirección
	MovementTransferIn  MovementType = "transfer_in"
	MovementTransferOut MovementType = "transfer_out"
	MovementReturn      MovementType = "return"
	MovementWastage     MovementType = "wastage"
)

// Direction dirección física de un movimiento.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionInbound
	DirectionOutbound
	DirectionEither
)

// Direction devuelve la dirección que exige el tipo de movimiento.
func (t MovementType) Direction() Direction {
	switch t {
	case MovementPurchase, MovementTransferIn, MovementReturn:
		return DirectionInbound
	case MovementSale, MovementTransferOut, MovementWastage:
		return DirectionOutbound
	case MovementAdjustment:
		return DirectionEither
	default:
		return DirectionUnknown
	}
}

// Valid indica si el tipo es uno de los conocidos.
func (t MovementType) Valid() bool { return t.Direction() != DirectionUnknown }

// Reference documento externo que originó el movimiento (ej. "purchase_order"/"42").
type Reference struct {
	Type string `json:"reference_type"`
	ID   string `json:"reference_id"`
}

// InventoryMovement fila inmutable del ledger de movimientos.
// Los campos Running* y WacAfterMovement son la foto del scope tras aplicar este movimiento;
// se escriben una vez y nunca se alteran. Las correcciones son movimientos compensatorios.
type InventoryMovement struct {
	ID               string
	Scope            ScopeKey
	Sequence         int64 // posición dentro del scope, 1..n, en orden de aplicación
	Type             MovementType
	QuantityDelta    decimal.Decimal // positivo entrada, negativo salida
	UnitCost         decimal.Decimal // salidas: WAC vigente justo antes del movimiento
	TotalCost        decimal.Decimal // QuantityDelta * UnitCost
	RunningQuantity  decimal.Decimal
	RunningValue     decimal.Decimal
	WacAfterMovement decimal.Decimal
	Reference        Reference
	OccurredAt       time.Time
	Actor            string
	CreatedAt        time.Time
}

// IsInbound indica si el movimiento suma cantidad.
func (m *InventoryMovement) IsInbound() bool { return m.QuantityDelta.IsPositive() }
