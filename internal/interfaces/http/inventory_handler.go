package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-wac/internal/application/dto"
	"github.com/jhoicas/inventario-wac/internal/application/inventory"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
)

// InventoryHandler movimientos, recepciones, traslados, ventas y consultas del ledger (protegido).
type InventoryHandler struct {
	engine    *inventory.WacEngine
	tracker   *inventory.CogsTracker
	receiving *inventory.ReceivingCoordinator
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(engine *inventory.WacEngine, tracker *inventory.CogsTracker, receiving *inventory.ReceivingCoordinator) *InventoryHandler {
	return &InventoryHandler{engine: engine, tracker: tracker, receiving: receiving}
}

// RegisterMovement godoc
// @Summary      Registrar movimiento de inventario
// @Description  Aplica el movimiento al scope y recalcula el costo promedio ponderado. Las salidas se costean al WAC vigente.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterMovementRequest  true  "product_id, branch_id, warehouse_id, type, quantity (con signo), unit_cost (entradas)"
// @Success      201   {object}  dto.MovementResultDTO
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/inventory/movements [post]
func (h *InventoryHandler) RegisterMovement(c *fiber.Ctx) error {
	var in dto.RegisterMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	req, err := inventory.MovementFromDTO(in, GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	res, err := h.engine.ApplyMovement(c.Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(inventory.NewMovementResultDTO(res))
}

// ReceivePurchase godoc
// @Summary      Recepción de orden de compra
// @Description  Un movimiento purchase por lote, en orden. Si un lote falla, los anteriores quedan registrados.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReceiptRequest  true  "scope, purchase_order_id y lotes"
// @Success      201   {array}   dto.MovementResultDTO
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/inventory/receipts [post]
func (h *InventoryHandler) ReceivePurchase(c *fiber.Ctx) error {
	var in dto.ReceiptRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	results, err := h.receiving.ReceivePurchase(c.Context(), inventory.ReceiptFromDTO(in, GetUserID(c)))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.MovementResultDTO, len(results))
	for i, r := range results {
		out[i] = inventory.NewMovementResultDTO(r)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// TransferStock godoc
// @Summary      Traslado entre scopes
// @Description  Sale del origen a su WAC y entra al destino a ese mismo costo, en una sola transacción.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.TransferRequest  true  "product_id, origen, destino y cantidad"
// @Success      201   {object}  dto.TransferResultDTO
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/inventory/transfers [post]
func (h *InventoryHandler) TransferStock(c *fiber.Ctx) error {
	var in dto.TransferRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	res, err := h.engine.TransferStock(c.Context(), inventory.TransferFromDTO(in, GetUserID(c)))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.TransferResultDTO{
		Out: inventory.NewMovementResultDTO(res.Out),
		In:  inventory.NewMovementResultDTO(res.In),
	})
}

// RecordSale godoc
// @Summary      Registrar venta (costo de ventas)
// @Description  Saca la cantidad vendida y crea el registro de costo de ventas al WAC vigente. Una línea solo se registra una vez.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RecordSaleRequest  true  "sale_item_id, scope, quantity y sale_price"
// @Success      201   {object}  dto.CogsRecordDTO
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/inventory/sales [post]
func (h *InventoryHandler) RecordSale(c *fiber.Ctx) error {
	var in dto.RecordSaleRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	rec, err := h.tracker.RecordSale(c.Context(), inventory.SaleFromDTO(in, GetUserID(c)))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewCogsRecordDTO(rec))
}

// GetSale godoc
// @Summary      Costo de ventas de una línea
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        sale_item_id  path  string  true  "Línea de venta"
// @Success      200  {object}  dto.CogsRecordDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/sales/{sale_item_id} [get]
func (h *InventoryHandler) GetSale(c *fiber.Ctx) error {
	rec, err := h.tracker.GetBySaleItem(c.Context(), c.Params("sale_item_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewCogsRecordDTO(rec))
}

// GetState godoc
// @Summary      Estado WAC de un scope
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id    query  string  true   "Producto"
// @Param        branch_id     query  string  false  "Sucursal"
// @Param        warehouse_id  query  string  false  "Bodega"
// @Success      200  {object}  dto.WacStateDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/inventory/scopes/state [get]
func (h *InventoryHandler) GetState(c *fiber.Ctx) error {
	st, err := h.engine.GetState(c.Context(), scopeFromQuery(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewWacStateDTO(st))
}

// ListMovements godoc
// @Summary      Ledger de un scope (paginado, en orden de ledger)
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id    query  string  true   "Producto"
// @Param        branch_id     query  string  false  "Sucursal"
// @Param        warehouse_id  query  string  false  "Bodega"
// @Param        limit         query  int     false  "Default 20, max 100"
// @Param        offset        query  int     false  "Default 0"
// @Success      200  {array}   dto.MovementDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/inventory/scopes/movements [get]
func (h *InventoryHandler) ListMovements(c *fiber.Ctx) error {
	page, err := pageFromQuery(c)
	if err != nil {
		return badParams(c, err.Error())
	}
	ms, err := h.engine.ListMovements(c.Context(), scopeFromQuery(c), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewMovementDTOs(ms))
}

// ListHistory godoc
// @Summary      Historial de auditoría WAC de un scope
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id    query  string  true   "Producto"
// @Param        branch_id     query  string  false  "Sucursal"
// @Param        warehouse_id  query  string  false  "Bodega"
// @Param        limit         query  int     false  "Default 20, max 100"
// @Param        offset        query  int     false  "Default 0"
// @Success      200  {array}   dto.WacHistoryDTO
// @Router       /api/inventory/scopes/history [get]
func (h *InventoryHandler) ListHistory(c *fiber.Ctx) error {
	page, err := pageFromQuery(c)
	if err != nil {
		return badParams(c, err.Error())
	}
	hs, err := h.engine.ListHistory(c.Context(), scopeFromQuery(c), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewWacHistoryDTOs(hs))
}

// VerifyScope godoc
// @Summary      Verificar estado contra replay del ledger
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id    query  string  true   "Producto"
// @Param        branch_id     query  string  false  "Sucursal"
// @Param        warehouse_id  query  string  false  "Bodega"
// @Success      200  {object}  dto.VerifyScopeDTO
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/inventory/scopes/verify [get]
func (h *InventoryHandler) VerifyScope(c *fiber.Ctx) error {
	res, err := h.engine.VerifyScope(c.Context(), scopeFromQuery(c))
	if err != nil {
		return writeError(c, err)
	}
	out := dto.VerifyScopeDTO{Healthy: res.Healthy, Live: dto.NewWacStateDTO(res.Live)}
	if res.Replayed != nil {
		replayed := dto.NewWacStateDTO(res.Replayed)
		out.Replayed = &replayed
	}
	if res.ReplayErr != nil {
		out.ReplayError = res.ReplayErr.Error()
	}
	return c.JSON(out)
}

// RepairScope godoc
// @Summary      Reparar estado desde el ledger (solo admin)
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id    query  string  true   "Producto"
// @Param        branch_id     query  string  false  "Sucursal"
// @Param        warehouse_id  query  string  false  "Bodega"
// @Success      200  {object}  dto.RepairScopeDTO
// @Failure      403  {object}  dto.ErrorResponse
// @Router       /api/inventory/scopes/repair [post]
func (h *InventoryHandler) RepairScope(c *fiber.Ctx) error {
	st, changed, err := h.engine.RepairScope(c.Context(), scopeFromQuery(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.RepairScopeDTO{Changed: changed, State: dto.NewWacStateDTO(st)})
}

func scopeFromQuery(c *fiber.Ctx) entity.ScopeKey {
	return entity.ScopeKey{
		ProductID:   c.Query("product_id"),
		BranchID:    c.Query("branch_id"),
		WarehouseID: c.Query("warehouse_id"),
	}
}
