package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// WacState foto mutable (una fila por ScopeKey) de cantidad, valor y costo promedio ponderado.
// Se deriva del ledger: replay(scope) debe producir exactamente los mismos valores.
type WacState struct {
	Scope               ScopeKey
	CurrentQuantity     decimal.Decimal
	TotalValue          decimal.Decimal
	WeightedAverageCost decimal.Decimal
	LastSequence        int64
	LastMovementAt      time.Time // occurredAt del último movimiento aplicado
	LastUpdatedAt       time.Time
}

// NewWacState estado inicial (todo en cero) para un scope sin movimientos.
func NewWacState(scope ScopeKey) *WacState {
	return &WacState{
		Scope:               scope,
		CurrentQuantity:     decimal.Zero,
		TotalValue:          decimal.Zero,
		WeightedAverageCost: decimal.Zero,
	}
}

// SameTotals compara cantidad, valor, WAC y secuencia (lo que replay debe reproducir).
func (s *WacState) SameTotals(o *WacState) bool {
	return s.CurrentQuantity.Equal(o.CurrentQuantity) &&
		s.TotalValue.Equal(o.TotalValue) &&
		s.WeightedAverageCost.Equal(o.WeightedAverageCost) &&
		s.LastSequence == o.LastSequence
}
