package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-wac/internal/application/analytics"
	"github.com/jhoicas/inventario-wac/internal/application/inventory"
	"github.com/jhoicas/inventario-wac/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Engine    *inventory.WacEngine
	Tracker   *inventory.CogsTracker
	Receiving *inventory.ReceivingCoordinator
	Reports   *analytics.ValuationUseCase
	PDF       ValuationPDFGenerator
	Location  *time.Location
	Company   string
	JWTSecret string
}

// Router registra las rutas de la API. Todo bajo /api requiere Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	writers := RequireRole(jwt.RoleAdmin, jwt.RoleOperator)
	readers := RequireRole(jwt.RoleAdmin, jwt.RoleOperator, jwt.RoleAnalyst)

	// Inventario
	inv := api.Group("/inventory")
	invHandler := NewInventoryHandler(deps.Engine, deps.Tracker, deps.Receiving)
	inv.Post("/movements", writers, invHandler.RegisterMovement)
	inv.Post("/receipts", writers, invHandler.ReceivePurchase)
	inv.Post("/transfers", writers, invHandler.TransferStock)
	inv.Post("/sales", writers, invHandler.RecordSale)
	inv.Get("/sales/:sale_item_id", readers, invHandler.GetSale)

	scopes := inv.Group("/scopes")
	scopes.Get("/state", readers, invHandler.GetState)
	scopes.Get("/movements", readers, invHandler.ListMovements)
	scopes.Get("/history", readers, invHandler.ListHistory)
	scopes.Get("/verify", readers, invHandler.VerifyScope)
	scopes.Post("/repair", RequireRole(jwt.RoleAdmin), invHandler.RepairScope)

	// Reportes (solo lectura)
	reports := api.Group("/reports", readers)
	repHandler := NewValuationHandler(deps.Reports, deps.PDF, deps.Location, deps.Company)
	reports.Get("/valuation", repHandler.GetValuation)
	reports.Get("/valuation.pdf", repHandler.GetValuationPDF)
	reports.Get("/cogs", repHandler.GetCogs)
	reports.Get("/profitability", repHandler.GetProfitability)
	reports.Get("/top-performers", repHandler.GetTopPerformers)
	reports.Get("/summary", repHandler.GetSummary)
}
