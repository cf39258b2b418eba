package inventory

import (
	"fmt"
	"time"

	"github.com/jhoicas/inventario-wac/internal/application/dto"
	"github.com/jhoicas/inventario-wac/internal/domain"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
)

// Adaptadores de los bodies HTTP a las operaciones del motor. El actor siempre es el usuario del token.

// MovementFromDTO arma el MovementRequest de POST /api/inventory/movements.
func MovementFromDTO(in dto.RegisterMovementRequest, actor string) (MovementRequest, error) {
	t := entity.MovementType(in.Type)
	if !t.Valid() {
		return MovementRequest{}, fmt.Errorf("%w: tipo %q desconocido", domain.ErrInvalidMovement, in.Type)
	}
	return MovementRequest{
		Scope:         entity.ScopeKey{ProductID: in.ProductID, BranchID: in.BranchID, WarehouseID: in.WarehouseID},
		Type:          t,
		QuantityDelta: in.Quantity,
		UnitCost:      in.UnitCost,
		Reference:     entity.Reference{Type: in.ReferenceType, ID: in.ReferenceID},
		Actor:         actor,
		OccurredAt:    deref(in.OccurredAt),
	}, nil
}

// ReceiptFromDTO arma la recepción de POST /api/inventory/receipts.
func ReceiptFromDTO(in dto.ReceiptRequest, actor string) PurchaseReceipt {
	batches := make([]ReceiptBatch, len(in.Batches))
	for i, b := range in.Batches {
		batches[i] = ReceiptBatch{Quantity: b.Quantity, UnitCost: b.UnitCost, OccurredAt: deref(b.OccurredAt)}
	}
	return PurchaseReceipt{
		Scope:           entity.ScopeKey{ProductID: in.ProductID, BranchID: in.BranchID, WarehouseID: in.WarehouseID},
		PurchaseOrderID: in.PurchaseOrderID,
		Actor:           actor,
		Batches:         batches,
	}
}

// TransferFromDTO arma el traslado de POST /api/inventory/transfers.
func TransferFromDTO(in dto.TransferRequest, actor string) TransferRequest {
	return TransferRequest{
		From:       entity.ScopeKey{ProductID: in.ProductID, BranchID: in.FromBranchID, WarehouseID: in.FromWarehouseID},
		To:         entity.ScopeKey{ProductID: in.ProductID, BranchID: in.ToBranchID, WarehouseID: in.ToWarehouseID},
		Quantity:   in.Quantity,
		Reference:  entity.Reference{Type: "transfer", ID: in.ReferenceID},
		Actor:      actor,
		OccurredAt: deref(in.OccurredAt),
	}
}

// SaleFromDTO arma la línea de POST /api/inventory/sales.
func SaleFromDTO(in dto.RecordSaleRequest, actor string) SaleLine {
	return SaleLine{
		SaleItemID: in.SaleItemID,
		Scope:      entity.ScopeKey{ProductID: in.ProductID, BranchID: in.BranchID, WarehouseID: in.WarehouseID},
		Quantity:   in.Quantity,
		SalePrice:  in.SalePrice,
		OccurredAt: deref(in.OccurredAt),
		Actor:      actor,
	}
}

// NewMovementResultDTO respuesta de un movimiento aplicado.
func NewMovementResultDTO(r *MovementResult) dto.MovementResultDTO {
	return dto.MovementResultDTO{
		Movement:    dto.NewMovementDTO(r.Movement),
		State:       dto.NewWacStateDTO(r.State),
		PreviousWac: r.PreviousWac,
	}
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
