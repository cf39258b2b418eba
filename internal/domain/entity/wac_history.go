package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// WacHistoryEntry copia de auditoría de la transición de estado provocada por un movimiento.
// Solo se escribe; el cálculo en vivo nunca la lee.
type WacHistoryEntry struct {
	ID                 string
	Scope              ScopeKey
	MovementID         string
	PreviousWac        decimal.Decimal
	NewWac             decimal.Decimal
	PreviousQuantity   decimal.Decimal
	NewQuantity        decimal.Decimal
	PreviousValue      decimal.Decimal
	NewValue           decimal.Decimal
	TriggerType        MovementType
	TriggerReferenceID string
	CreatedAt          time.Time
}
