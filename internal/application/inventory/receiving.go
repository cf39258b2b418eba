package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-wac/internal/domain"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
)

// ReferencePurchaseOrder tipo de referencia de las recepciones de compra.
const ReferencePurchaseOrder = "purchase_order"

// ReceiptBatch lote recibido físicamente. Una recepción parcial o con backorder
// llega como varios lotes, cada uno con su propio movimiento.
type ReceiptBatch struct {
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal // costo real o, si no se conoce, el de la orden
	OccurredAt time.Time
}

// PurchaseReceipt recepción de una línea de orden de compra.
type PurchaseReceipt struct {
	Scope           entity.ScopeKey
	PurchaseOrderID string
	Actor           string
	Batches         []ReceiptBatch
}

// ReceivingCoordinator traduce recepciones de compra en movimientos "purchase".
// Nunca escribe en las tablas del motor: todo pasa por ApplyMovement.
type ReceivingCoordinator struct {
	engine *WacEngine
}

// NewReceivingCoordinator construye el coordinador.
func NewReceivingCoordinator(engine *WacEngine) *ReceivingCoordinator {
	return &ReceivingCoordinator{engine: engine}
}

// ReceivePurchase aplica un movimiento por lote, en el orden recibido. Valida todos los lotes antes
// de aplicar el primero. Si un lote falla, los anteriores ya son recepciones reales y se conservan;
// se devuelven junto con el error del lote fallido.
func (c *ReceivingCoordinator) ReceivePurchase(ctx context.Context, r PurchaseReceipt) ([]*MovementResult, error) {
	if r.PurchaseOrderID == "" {
		return nil, fmt.Errorf("%w: purchase_order_id requerido", domain.ErrInvalidInput)
	}
	if len(r.Batches) == 0 {
		return nil, fmt.Errorf("%w: la recepción no trae lotes", domain.ErrInvalidMovement)
	}
	for i, b := range r.Batches {
		if !b.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: lote %d con cantidad no positiva", domain.ErrInvalidMovement, i+1)
		}
		if b.UnitCost.IsNegative() {
			return nil, fmt.Errorf("%w: lote %d con costo negativo", domain.ErrInvalidMovement, i+1)
		}
	}

	results := make([]*MovementResult, 0, len(r.Batches))
	for i, b := range r.Batches {
		cost := b.UnitCost
		res, err := c.engine.ApplyMovement(ctx, MovementRequest{
			Scope:         r.Scope,
			Type:          entity.MovementPurchase,
			QuantityDelta: b.Quantity,
			UnitCost:      &cost,
			Reference:     entity.Reference{Type: ReferencePurchaseOrder, ID: r.PurchaseOrderID},
			Actor:         r.Actor,
			OccurredAt:    b.OccurredAt,
		})
		if err != nil {
			return results, fmt.Errorf("lote %d de %d: %w", i+1, len(r.Batches), err)
		}
		results = append(results, res)
	}
	return results, nil
}
