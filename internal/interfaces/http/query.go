package http

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-wac/internal/application/analytics"
	"github.com/jhoicas/inventario-wac/internal/application/dto"
)

func pageFromQuery(c *fiber.Ctx) (dto.PageRequest, error) {
	var p dto.PageRequest
	if err := c.QueryParser(&p); err != nil {
		return p, errors.New("limit y offset deben ser enteros")
	}
	if p.Offset < 0 {
		return p, errors.New("offset no puede ser negativo")
	}
	p.Normalize()
	return p, nil
}

// filterFromQuery convierte los parámetros comunes de los reportes. Las fechas sin hora se
// interpretan como medianoche en loc.
func filterFromQuery(c *fiber.Ctx, loc *time.Location) (analytics.Filter, error) {
	var q dto.ReportQuery
	if err := c.QueryParser(&q); err != nil {
		return analytics.Filter{}, errors.New("parámetros de consulta inválidos")
	}
	f := analytics.Filter{
		CategoryID:  q.CategoryID,
		BrandID:     q.BrandID,
		BranchID:    q.BranchID,
		WarehouseID: q.WarehouseID,
	}
	if q.ProductIDs != "" {
		for _, id := range strings.Split(q.ProductIDs, ",") {
			if id = strings.TrimSpace(id); id != "" {
				f.ProductIDs = append(f.ProductIDs, id)
			}
		}
	}
	var err error
	if f.From, err = parseDate(q.From, loc); err != nil {
		return f, fmt.Errorf("from: %w", err)
	}
	if f.To, err = parseDate(q.To, loc); err != nil {
		return f, fmt.Errorf("to: %w", err)
	}
	return f, nil
}

func parseDate(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return nil, errors.New("formato esperado YYYY-MM-DD o RFC3339")
	}
	return &t, nil
}
