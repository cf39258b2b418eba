package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-wac/internal/application/analytics"
	"github.com/jhoicas/inventario-wac/internal/application/dto"
	"github.com/jhoicas/inventario-wac/internal/infrastructure/pdf"
)

// ValuationPDFGenerator genera la versión imprimible de la valorización.
type ValuationPDFGenerator interface {
	GenerateValuationPDF(ctx context.Context, report *dto.ValuationReportDTO, h pdf.ValuationHeader) ([]byte, error)
}

// ValuationHandler reportes de valorización, costo de ventas y rentabilidad (solo lectura).
type ValuationHandler struct {
	uc      *analytics.ValuationUseCase
	pdf     ValuationPDFGenerator
	loc     *time.Location
	company string
}

// NewValuationHandler construye el handler. loc es la zona de los reportes.
func NewValuationHandler(uc *analytics.ValuationUseCase, gen ValuationPDFGenerator, loc *time.Location, company string) *ValuationHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ValuationHandler{uc: uc, pdf: gen, loc: loc, company: company}
}

// GetValuation godoc
// @Summary      Valorización del inventario
// @Description  Cantidad, WAC y valor por scope desde el estado actual.
// @Tags         reports
// @Security     Bearer
// @Produce      json
// @Param        product_ids   query  string  false  "IDs separados por coma"
// @Param        category_id   query  string  false  "Categoría"
// @Param        brand_id      query  string  false  "Marca"
// @Param        branch_id     query  string  false  "Sucursal"
// @Param        warehouse_id  query  string  false  "Bodega"
// @Success      200  {object}  dto.ValuationReportDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/reports/valuation [get]
func (h *ValuationHandler) GetValuation(c *fiber.Ctx) error {
	f, err := filterFromQuery(c, h.loc)
	if err != nil {
		return badParams(c, err.Error())
	}
	report, err := h.uc.ValuationSnapshot(c.Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(report)
}

// GetValuationPDF godoc
// @Summary      Valorización del inventario en PDF
// @Tags         reports
// @Security     Bearer
// @Produce      application/pdf
// @Param        branch_id     query  string  false  "Sucursal"
// @Param        warehouse_id  query  string  false  "Bodega"
// @Success      200  {file}    binary
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/reports/valuation.pdf [get]
func (h *ValuationHandler) GetValuationPDF(c *fiber.Ctx) error {
	f, err := filterFromQuery(c, h.loc)
	if err != nil {
		return badParams(c, err.Error())
	}
	report, err := h.uc.ValuationSnapshot(c.Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	doc, err := h.pdf.GenerateValuationPDF(c.Context(), report, pdf.ValuationHeader{
		Company:     h.company,
		BranchID:    f.BranchID,
		WarehouseID: f.WarehouseID,
		Location:    h.loc,
	})
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="valorizacion-`+report.GeneratedAt.In(h.loc).Format("20060102")+`.pdf"`)
	return c.Send(doc)
}

// GetCogs godoc
// @Summary      Costo de ventas por scope
// @Tags         reports
// @Security     Bearer
// @Produce      json
// @Param        from  query  string  false  "Inicio inclusivo (YYYY-MM-DD o RFC3339)"
// @Param        to    query  string  false  "Fin exclusivo (YYYY-MM-DD o RFC3339)"
// @Success      200  {object}  dto.CogsReportDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/reports/cogs [get]
func (h *ValuationHandler) GetCogs(c *fiber.Ctx) error {
	f, err := filterFromQuery(c, h.loc)
	if err != nil {
		return badParams(c, err.Error())
	}
	report, err := h.uc.CogsReport(c.Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(report)
}

// GetProfitability godoc
// @Summary      Rentabilidad por período
// @Tags         reports
// @Security     Bearer
// @Produce      json
// @Param        bucket  query  string  false  "day|month|year (default day)"
// @Param        from    query  string  false  "Inicio inclusivo"
// @Param        to      query  string  false  "Fin exclusivo"
// @Success      200  {array}   dto.BucketDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/reports/profitability [get]
func (h *ValuationHandler) GetProfitability(c *fiber.Ctx) error {
	f, err := filterFromQuery(c, h.loc)
	if err != nil {
		return badParams(c, err.Error())
	}
	buckets, err := h.uc.ProfitabilityByBucket(c.Context(), f, c.Query("bucket", analytics.BucketDay))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(buckets)
}

// GetTopPerformers godoc
// @Summary      Ranking por producto, categoría o marca
// @Tags         reports
// @Security     Bearer
// @Produce      json
// @Param        dimension  query  string  false  "product|category|brand (default product)"
// @Param        sort_by    query  string  false  "revenue|profit|margin (default revenue)"
// @Param        limit      query  int     false  "Default 10, max 100"
// @Success      200  {array}   dto.PerformerDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/reports/top-performers [get]
func (h *ValuationHandler) GetTopPerformers(c *fiber.Ctx) error {
	f, err := filterFromQuery(c, h.loc)
	if err != nil {
		return badParams(c, err.Error())
	}
	top, err := h.uc.TopPerformers(c.Context(), f,
		c.Query("dimension", analytics.DimensionProduct),
		c.Query("sort_by", analytics.SortByRevenue),
		c.QueryInt("limit", 0),
	)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(top)
}

// GetSummary devuelve los KPIs del día y del mes en curso más el valor del inventario.
// GET /api/reports/summary
//
// Las fechas se calculan en el servidor, en la zona de los reportes.
func (h *ValuationHandler) GetSummary(c *fiber.Ctx) error {
	f, err := filterFromQuery(c, h.loc)
	if err != nil {
		return badParams(c, err.Error())
	}
	summary, err := h.uc.Summary(c.Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(summary)
}
