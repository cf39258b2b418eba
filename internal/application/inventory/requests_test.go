package inventory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-wac/internal/application/dto"
	"github.com/jhoicas/inventario-wac/internal/application/inventory"
	"github.com/jhoicas/inventario-wac/internal/domain"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
)

func TestMovementFromDTO(t *testing.T) {
	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	req, err := inventory.MovementFromDTO(dto.RegisterMovementRequest{
		ProductID: "p1", WarehouseID: "w1", Type: "wastage", Quantity: d("-2"),
		ReferenceType: "count", ReferenceID: "c-9", OccurredAt: &at,
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, entity.ScopeKey{ProductID: "p1", WarehouseID: "w1"}, req.Scope)
	assert.Equal(t, entity.MovementWastage, req.Type)
	assert.Equal(t, "user-1", req.Actor)
	assert.Equal(t, at, req.OccurredAt)

	_, err = inventory.MovementFromDTO(dto.RegisterMovementRequest{ProductID: "p1", Type: "IN"}, "u")
	require.ErrorIs(t, err, domain.ErrInvalidMovement)
}

func TestTransferFromDTO(t *testing.T) {
	tr := inventory.TransferFromDTO(dto.TransferRequest{
		ProductID: "p1", FromWarehouseID: "w1", ToWarehouseID: "w2", Quantity: d("3"), ReferenceID: "tr-1",
	}, "u")
	assert.Equal(t, entity.ScopeKey{ProductID: "p1", WarehouseID: "w1"}, tr.From)
	assert.Equal(t, entity.ScopeKey{ProductID: "p1", WarehouseID: "w2"}, tr.To)
	assert.True(t, tr.OccurredAt.IsZero())
}
