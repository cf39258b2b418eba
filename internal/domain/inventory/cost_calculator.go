package inventory

import (
	"fmt"

	"github.com/jhoicas/inventario-wac/internal/domain"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Scale decimales fijos de cantidades e importes del motor.
const Scale int32 = 4

// Round redondeo bancario (half-even) a Scale decimales. Se aplica en cada frontera de applyMovement
// para que la actualización incremental y el replay produzcan exactamente los mismos dígitos.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(Scale)
}

// Totals foto aritmética de un scope: cantidad, valor total y costo promedio ponderado.
type Totals struct {
	Quantity decimal.Decimal
	Value    decimal.Decimal
	Wac      decimal.Decimal
}

// ZeroTotals scope vacío.
func ZeroTotals() Totals {
	return Totals{Quantity: decimal.Zero, Value: decimal.Zero, Wac: decimal.Zero}
}

// TotalsOf extrae la foto aritmética de un WacState.
func TotalsOf(s *entity.WacState) Totals {
	return Totals{Quantity: s.CurrentQuantity, Value: s.TotalValue, Wac: s.WeightedAverageCost}
}

// Step transición producida por un movimiento.
type Step struct {
	Before    Totals
	After     Totals
	Delta     decimal.Decimal
	UnitCost  decimal.Decimal // costo efectivo usado
	TotalCost decimal.Decimal // Delta * UnitCost
}

// ResolveDirection valida la cantidad contra el tipo de movimiento y devuelve la dirección efectiva.
// adjustment toma la dirección del signo; el resto exige el signo de su tipo.
func ResolveDirection(t entity.MovementType, delta decimal.Decimal) (entity.Direction, error) {
	if !t.Valid() {
		return entity.DirectionUnknown, fmt.Errorf("%w: tipo %q desconocido", domain.ErrInvalidMovement, t)
	}
	delta = Round(delta)
	if delta.IsZero() {
		return entity.DirectionUnknown, fmt.Errorf("%w: cantidad cero", domain.ErrInvalidMovement)
	}
	dir := t.Direction()
	switch {
	case dir == entity.DirectionEither && delta.IsPositive():
		return entity.DirectionInbound, nil
	case dir == entity.DirectionEither:
		return entity.DirectionOutbound, nil
	case dir == entity.DirectionInbound && !delta.IsPositive():
		return entity.DirectionUnknown, fmt.Errorf("%w: %s requiere cantidad positiva", domain.ErrInvalidMovement, t)
	case dir == entity.DirectionOutbound && !delta.IsNegative():
		return entity.DirectionUnknown, fmt.Errorf("%w: %s requiere cantidad negativa", domain.ErrInvalidMovement, t)
	}
	return dir, nil
}

// EffectiveUnitCost decide el costo unitario del movimiento.
// Salidas: siempre el WAC vigente (el costo recibido se ignora). Entradas: el costo recibido, obligatorio
// y no negativo; un ajuste positivo sin costo entra al WAC vigente y no altera el promedio.
func EffectiveUnitCost(t entity.MovementType, dir entity.Direction, supplied *decimal.Decimal, currentWac decimal.Decimal) (decimal.Decimal, error) {
	if dir == entity.DirectionOutbound {
		return currentWac, nil
	}
	if supplied == nil {
		if t == entity.MovementAdjustment {
			return currentWac, nil
		}
		return decimal.Zero, fmt.Errorf("%w: %s requiere costo unitario", domain.ErrInvalidMovement, t)
	}
	if supplied.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: costo unitario negativo", domain.ErrInvalidMovement)
	}
	return Round(*supplied), nil
}

// Apply aplica un movimiento ya validado a la foto actual.
//
//	newQty   = qty + delta
//	newValue = value + delta*unitCost
//	newWac   = newValue / newQty   (0 y valor 0 cuando newQty == 0)
//
// Con newQty < 0 devuelve ErrNegativeQuantity y ninguna transición.
func Apply(before Totals, delta, unitCost decimal.Decimal) (Step, error) {
	delta = Round(delta)
	unitCost = Round(unitCost)
	totalCost := Round(delta.Mul(unitCost))

	newQty := before.Quantity.Add(delta)
	if newQty.IsNegative() {
		return Step{}, fmt.Errorf("%w: disponible %s, solicitado %s",
			domain.ErrNegativeQuantity, before.Quantity.String(), delta.Neg().String())
	}

	after := ZeroTotals()
	if newQty.IsPositive() {
		newValue := before.Value.Add(totalCost)
		if newValue.IsNegative() {
			// residuo de redondeo al sacar casi todo el stock a un WAC redondeado
			newValue = decimal.Zero
		}
		after = Totals{
			Quantity: newQty,
			Value:    newValue,
			Wac:      Round(newValue.Div(newQty)),
		}
	}

	return Step{
		Before:    before,
		After:     after,
		Delta:     delta,
		UnitCost:  unitCost,
		TotalCost: totalCost,
	}, nil
}

// Fold recalcula la foto de un scope aplicando sus movimientos en orden de ledger.
// Las salidas se recalculan al WAC que el propio fold tiene en ese punto, las entradas usan el costo registrado.
func Fold(movements []*entity.InventoryMovement) (Totals, error) {
	t := ZeroTotals()
	for _, m := range movements {
		cost := m.UnitCost
		if m.QuantityDelta.IsNegative() {
			cost = t.Wac
		}
		step, err := Apply(t, m.QuantityDelta, cost)
		if err != nil {
			return t, fmt.Errorf("movimiento %s (secuencia %d): %w", m.ID, m.Sequence, err)
		}
		t = step.After
	}
	return t, nil
}

// CogsFigures cifras financieras de una línea vendida.
type CogsFigures struct {
	TotalCogs    decimal.Decimal
	Revenue      decimal.Decimal
	GrossProfit  decimal.Decimal
	ProfitMargin decimal.Decimal
}

// ComputeCogs calcula costo, ingreso, utilidad y margen (fracción) de una venta.
// GrossProfit es exactamente Revenue - TotalCogs; el margen es 0 cuando no hay ingreso.
func ComputeCogs(quantity, wacAtSale, salePrice decimal.Decimal) CogsFigures {
	totalCogs := Round(quantity.Mul(wacAtSale))
	revenue := Round(quantity.Mul(salePrice))
	gross := revenue.Sub(totalCogs)
	return CogsFigures{
		TotalCogs:    totalCogs,
		Revenue:      revenue,
		GrossProfit:  gross,
		ProfitMargin: Margin(gross, revenue),
	}
}

// Margin utilidad/ingreso redondeado a Scale; 0 si el ingreso es 0.
func Margin(gross, revenue decimal.Decimal) decimal.Decimal {
	if revenue.IsZero() {
		return decimal.Zero
	}
	return Round(gross.Div(revenue))
}
