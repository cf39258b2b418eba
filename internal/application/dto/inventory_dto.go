package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-wac/internal/domain/entity"
)

// Los decimales se serializan como string de punto fijo (comportamiento por defecto de shopspring/decimal).

// ── Requests ──────────────────────────────────────────────────────────────────

// RegisterMovementRequest body para POST /api/inventory/movements.
type RegisterMovementRequest struct {
	ProductID     string           `json:"product_id"`
	BranchID      string           `json:"branch_id,omitempty"`
	WarehouseID   string           `json:"warehouse_id,omitempty"`
	Type          string           `json:"type"`     // purchase|sale|adjustment|transfer_in|transfer_out|return|wastage
	Quantity      decimal.Decimal  `json:"quantity"` // con signo
	UnitCost      *decimal.Decimal `json:"unit_cost,omitempty"`
	ReferenceType string           `json:"reference_type,omitempty"`
	ReferenceID   string           `json:"reference_id,omitempty"`
	OccurredAt    *time.Time       `json:"occurred_at,omitempty"`
}

// ReceiptBatchRequest lote físico recibido.
type ReceiptBatchRequest struct {
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	OccurredAt *time.Time      `json:"occurred_at,omitempty"`
}

// ReceiptRequest body para POST /api/inventory/receipts.
type ReceiptRequest struct {
	ProductID       string                `json:"product_id"`
	BranchID        string                `json:"branch_id,omitempty"`
	WarehouseID     string                `json:"warehouse_id,omitempty"`
	PurchaseOrderID string                `json:"purchase_order_id"`
	Batches         []ReceiptBatchRequest `json:"batches"`
}

// TransferRequest body para POST /api/inventory/transfers.
type TransferRequest struct {
	ProductID       string          `json:"product_id"`
	FromBranchID    string          `json:"from_branch_id,omitempty"`
	FromWarehouseID string          `json:"from_warehouse_id,omitempty"`
	ToBranchID      string          `json:"to_branch_id,omitempty"`
	ToWarehouseID   string          `json:"to_warehouse_id,omitempty"`
	Quantity        decimal.Decimal `json:"quantity"`
	ReferenceID     string          `json:"reference_id,omitempty"`
	OccurredAt      *time.Time      `json:"occurred_at,omitempty"`
}

// RecordSaleRequest body para POST /api/inventory/sales (una línea vendida).
type RecordSaleRequest struct {
	SaleItemID  string          `json:"sale_item_id"`
	ProductID   string          `json:"product_id"`
	BranchID    string          `json:"branch_id,omitempty"`
	WarehouseID string          `json:"warehouse_id,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	SalePrice   decimal.Decimal `json:"sale_price"`
	OccurredAt  *time.Time      `json:"occurred_at,omitempty"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// MovementDTO fila del ledger.
type MovementDTO struct {
	ID               string          `json:"id"`
	Scope            entity.ScopeKey `json:"scope"`
	Sequence         int64           `json:"sequence"`
	Type             string          `json:"type"`
	QuantityDelta    decimal.Decimal `json:"quantity_delta"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	RunningQuantity  decimal.Decimal `json:"running_quantity"`
	RunningValue     decimal.Decimal `json:"running_value"`
	WacAfterMovement decimal.Decimal `json:"wac_after_movement"`
	ReferenceType    string          `json:"reference_type,omitempty"`
	ReferenceID      string          `json:"reference_id,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	Actor            string          `json:"actor,omitempty"`
}

// WacStateDTO estado WAC de un scope.
type WacStateDTO struct {
	Scope               entity.ScopeKey `json:"scope"`
	CurrentQuantity     decimal.Decimal `json:"current_quantity"`
	TotalValue          decimal.Decimal `json:"total_value"`
	WeightedAverageCost decimal.Decimal `json:"weighted_average_cost"`
	LastSequence        int64           `json:"last_sequence"`
	LastMovementAt      *time.Time      `json:"last_movement_at,omitempty"`
	LastUpdatedAt       *time.Time      `json:"last_updated_at,omitempty"`
}

// WacHistoryDTO entrada del historial de auditoría.
type WacHistoryDTO struct {
	ID                 string          `json:"id"`
	MovementID         string          `json:"movement_id"`
	PreviousWac        decimal.Decimal `json:"previous_wac"`
	NewWac             decimal.Decimal `json:"new_wac"`
	PreviousQuantity   decimal.Decimal `json:"previous_quantity"`
	NewQuantity        decimal.Decimal `json:"new_quantity"`
	PreviousValue      decimal.Decimal `json:"previous_value"`
	NewValue           decimal.Decimal `json:"new_value"`
	TriggerType        string          `json:"trigger_type"`
	TriggerReferenceID string          `json:"trigger_reference_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// MovementResultDTO respuesta de un movimiento aplicado.
type MovementResultDTO struct {
	Movement    MovementDTO     `json:"movement"`
	State       WacStateDTO     `json:"state"`
	PreviousWac decimal.Decimal `json:"previous_wac"`
}

// TransferResultDTO respuesta de un traslado.
type TransferResultDTO struct {
	Out MovementResultDTO `json:"out"`
	In  MovementResultDTO `json:"in"`
}

// CogsRecordDTO costo de ventas de una línea.
type CogsRecordDTO struct {
	ID           string          `json:"id"`
	SaleItemID   string          `json:"sale_item_id"`
	Scope        entity.ScopeKey `json:"scope"`
	MovementID   string          `json:"movement_id"`
	QuantitySold decimal.Decimal `json:"quantity_sold"`
	WacAtSale    decimal.Decimal `json:"wac_at_sale"`
	TotalCogs    decimal.Decimal `json:"total_cogs"`
	SalePrice    decimal.Decimal `json:"sale_price"`
	Revenue      decimal.Decimal `json:"revenue"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
	ProfitMargin decimal.Decimal `json:"profit_margin"` // fracción
	MarginPct    decimal.Decimal `json:"margin_pct"`    // ProfitMargin * 100
	Warnings     []string        `json:"warnings"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// VerifyScopeDTO respuesta de GET /api/inventory/scopes/verify.
// Replayed se omite cuando el ledger no se pudo recalcular; ReplayError trae la causa.
type VerifyScopeDTO struct {
	Healthy     bool         `json:"healthy"`
	Live        WacStateDTO  `json:"live"`
	Replayed    *WacStateDTO `json:"replayed,omitempty"`
	ReplayError string       `json:"replay_error,omitempty"`
}

// RepairScopeDTO respuesta de POST /api/inventory/scopes/repair.
type RepairScopeDTO struct {
	Changed bool        `json:"changed"`
	State   WacStateDTO `json:"state"`
}

// ── Mappers ───────────────────────────────────────────────────────────────────

var hundred = decimal.NewFromInt(100)

// NewMovementDTO convierte una fila del ledger.
func NewMovementDTO(m *entity.InventoryMovement) MovementDTO {
	return MovementDTO{
		ID:               m.ID,
		Scope:            m.Scope,
		Sequence:         m.Sequence,
		Type:             string(m.Type),
		QuantityDelta:    m.QuantityDelta,
		UnitCost:         m.UnitCost,
		TotalCost:        m.TotalCost,
		RunningQuantity:  m.RunningQuantity,
		RunningValue:     m.RunningValue,
		WacAfterMovement: m.WacAfterMovement,
		ReferenceType:    m.Reference.Type,
		ReferenceID:      m.Reference.ID,
		OccurredAt:       m.OccurredAt,
		Actor:            m.Actor,
	}
}

// NewMovementDTOs convierte una página del ledger.
func NewMovementDTOs(ms []*entity.InventoryMovement) []MovementDTO {
	out := make([]MovementDTO, len(ms))
	for i, m := range ms {
		out[i] = NewMovementDTO(m)
	}
	return out
}

// NewWacStateDTO convierte un estado; las fechas cero se omiten.
func NewWacStateDTO(s *entity.WacState) WacStateDTO {
	out := WacStateDTO{
		Scope:               s.Scope,
		CurrentQuantity:     s.CurrentQuantity,
		TotalValue:          s.TotalValue,
		WeightedAverageCost: s.WeightedAverageCost,
		LastSequence:        s.LastSequence,
	}
	if !s.LastMovementAt.IsZero() {
		t := s.LastMovementAt
		out.LastMovementAt = &t
	}
	if !s.LastUpdatedAt.IsZero() {
		t := s.LastUpdatedAt
		out.LastUpdatedAt = &t
	}
	return out
}

// NewWacHistoryDTOs convierte entradas del historial.
func NewWacHistoryDTOs(hs []*entity.WacHistoryEntry) []WacHistoryDTO {
	out := make([]WacHistoryDTO, len(hs))
	for i, h := range hs {
		out[i] = WacHistoryDTO{
			ID:                 h.ID,
			MovementID:         h.MovementID,
			PreviousWac:        h.PreviousWac,
			NewWac:             h.NewWac,
			PreviousQuantity:   h.PreviousQuantity,
			NewQuantity:        h.NewQuantity,
			PreviousValue:      h.PreviousValue,
			NewValue:           h.NewValue,
			TriggerType:        string(h.TriggerType),
			TriggerReferenceID: h.TriggerReferenceID,
			CreatedAt:          h.CreatedAt,
		}
	}
	return out
}

// NewCogsRecordDTO convierte un registro de costo de ventas.
func NewCogsRecordDTO(r *entity.CogsRecord) CogsRecordDTO {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return CogsRecordDTO{
		ID:           r.ID,
		SaleItemID:   r.SaleItemID,
		Scope:        r.Scope,
		MovementID:   r.MovementID,
		QuantitySold: r.QuantitySold,
		WacAtSale:    r.WacAtSale,
		TotalCogs:    r.TotalCogs,
		SalePrice:    r.SalePrice,
		Revenue:      r.Revenue,
		GrossProfit:  r.GrossProfit,
		ProfitMargin: r.ProfitMargin,
		MarginPct:    r.ProfitMargin.Mul(hundred).Round(2),
		Warnings:     warnings,
		OccurredAt:   r.OccurredAt,
	}
}
