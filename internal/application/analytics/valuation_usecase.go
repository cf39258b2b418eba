// Package analytics contiene los reportes de valorización y rentabilidad.
// Solo lee WacState y CogsRecord; nunca toma locks ni modifica el ledger.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/inventario-wac/internal/application/dto"
	"github.com/jhoicas/inventario-wac/internal/domain"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/domain/inventory"
	"github.com/jhoicas/inventario-wac/internal/domain/repository"
)

// Granularidad de profitabilityByBucket.
const (
	BucketDay   = "day"
	BucketMonth = "month"
	BucketYear  = "year"
)

// Dimensiones y criterios de topPerformers.
const (
	DimensionProduct  = "product"
	DimensionCategory = "category"
	DimensionBrand    = "brand"

	SortByRevenue = "revenue"
	SortByProfit  = "profit"
	SortByMargin  = "margin"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 100
	summaryTop      = 5 // productos en el resumen
)

var hundred = decimal.NewFromInt(100)

// Filter filtro de los reportes. Campos vacíos no filtran; el rango es [From, To).
type Filter struct {
	ProductIDs  []string
	CategoryID  string
	BrandID     string
	BranchID    string
	WarehouseID string
	From        *time.Time
	To          *time.Time
}

// ValuationUseCase servicio de reportes de valorización y costo de ventas.
type ValuationUseCase struct {
	states   repository.WacStateRepository
	cogs     repository.CogsRepository
	products repository.ProductRepository
	loc      *time.Location
	now      func() time.Time
}

// NewValuationUseCase construye el servicio. loc es la zona en que se cortan días, meses y años.
func NewValuationUseCase(
	states repository.WacStateRepository,
	cogs repository.CogsRepository,
	products repository.ProductRepository,
	loc *time.Location,
) *ValuationUseCase {
	if loc == nil {
		loc = time.UTC
	}
	return &ValuationUseCase{states: states, cogs: cogs, products: products, loc: loc, now: time.Now}
}

// ValuationSnapshot valor actual del inventario por scope, desde WacState.
func (uc *ValuationUseCase) ValuationSnapshot(ctx context.Context, f Filter) (*dto.ValuationReportDTO, error) {
	sf, err := uc.scopeFilter(ctx, f)
	if err != nil {
		return nil, err
	}
	states, err := uc.states.List(ctx, sf)
	if err != nil {
		return nil, fmt.Errorf("valorización: %w", err)
	}
	catalog, err := uc.catalogFor(ctx, productIDsOfStates(states))
	if err != nil {
		return nil, err
	}

	report := &dto.ValuationReportDTO{
		GeneratedAt:   uc.now().UTC(),
		Rows:          make([]dto.ValuationRowDTO, 0, len(states)),
		TotalQuantity: decimal.Zero,
		TotalValue:    decimal.Zero,
	}
	for _, st := range states {
		row := dto.ValuationRowDTO{
			Scope:      st.Scope,
			Quantity:   st.CurrentQuantity,
			Wac:        st.WeightedAverageCost,
			TotalValue: st.TotalValue,
		}
		if p, ok := catalog[st.Scope.ProductID]; ok {
			row.SKU, row.ProductName = p.SKU, p.Name
		}
		report.Rows = append(report.Rows, row)
		report.TotalQuantity = report.TotalQuantity.Add(st.CurrentQuantity)
		report.TotalValue = report.TotalValue.Add(st.TotalValue)
	}
	return report, nil
}

// CogsReport agrega los registros de costo de ventas por scope, ordenados por scope.
func (uc *ValuationUseCase) CogsReport(ctx context.Context, f Filter) (*dto.CogsReportDTO, error) {
	records, err := uc.records(ctx, f)
	if err != nil {
		return nil, err
	}

	byScope := make(map[entity.ScopeKey]*figures)
	total := newFigures()
	for _, r := range records {
		a, ok := byScope[r.Scope]
		if !ok {
			a = newFigures()
			byScope[r.Scope] = a
		}
		a.add(r)
		total.add(r)
	}

	keys := make([]entity.ScopeKey, 0, len(byScope))
	for k := range byScope {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	out := &dto.CogsReportDTO{Rows: make([]dto.CogsRowDTO, 0, len(keys)), Totals: total.dto()}
	for _, k := range keys {
		out.Rows = append(out.Rows, dto.CogsRowDTO{Scope: k, SalesFiguresDTO: byScope[k].dto()})
	}
	return out, nil
}

// ProfitabilityByBucket agrega por día, mes o año según occurredAt en la zona de reportes,
// en orden cronológico. Los períodos sin ventas no aparecen.
func (uc *ValuationUseCase) ProfitabilityByBucket(ctx context.Context, f Filter, bucket string) ([]dto.BucketDTO, error) {
	if bucket != BucketDay && bucket != BucketMonth && bucket != BucketYear {
		return nil, fmt.Errorf("%w: bucket %q (day|month|year)", domain.ErrInvalidInput, bucket)
	}
	records, err := uc.records(ctx, f)
	if err != nil {
		return nil, err
	}

	byStart := make(map[int64]*figures)
	starts := make([]time.Time, 0)
	for _, r := range records {
		start := truncate(r.OccurredAt.In(uc.loc), bucket)
		a, ok := byStart[start.Unix()]
		if !ok {
			a = newFigures()
			byStart[start.Unix()] = a
			starts = append(starts, start)
		}
		a.add(r)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	out := make([]dto.BucketDTO, 0, len(starts))
	for _, s := range starts {
		out = append(out, dto.BucketDTO{
			BucketStart:     s,
			Label:           bucketLabel(s, bucket),
			SalesFiguresDTO: byStart[s.Unix()].dto(),
		})
	}
	return out, nil
}

// TopPerformers ordena el agregado de la dimensión de mayor a menor según sortBy y corta en limit.
// Empates por clave ascendente. Productos sin catálogo quedan bajo la clave vacía en category/brand.
func (uc *ValuationUseCase) TopPerformers(ctx context.Context, f Filter, dimension, sortBy string, limit int) ([]dto.PerformerDTO, error) {
	switch dimension {
	case DimensionProduct, DimensionCategory, DimensionBrand:
	default:
		return nil, fmt.Errorf("%w: dimensión %q (product|category|brand)", domain.ErrInvalidInput, dimension)
	}
	switch sortBy {
	case SortByRevenue, SortByProfit, SortByMargin:
	default:
		return nil, fmt.Errorf("%w: sort_by %q (revenue|profit|margin)", domain.ErrInvalidInput, sortBy)
	}
	if limit <= 0 {
		limit = defaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}

	records, err := uc.records(ctx, f)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.Scope.ProductID)
	}
	catalog, err := uc.catalogFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*figures)
	labels := make(map[string]string)
	for _, r := range records {
		key, label := dimensionKey(dimension, r.Scope.ProductID, catalog)
		a, ok := byKey[key]
		if !ok {
			a = newFigures()
			byKey[key] = a
			labels[key] = label
		}
		a.add(r)
	}

	type ranked struct {
		key    string
		metric decimal.Decimal
		fig    dto.SalesFiguresDTO
	}
	rows := make([]ranked, 0, len(byKey))
	for k, a := range byKey {
		fig := a.dto()
		rows = append(rows, ranked{key: k, metric: metricOf(fig, sortBy), fig: fig})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].metric.Cmp(rows[j].metric); c != 0 {
			return c > 0
		}
		return rows[i].key < rows[j].key
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]dto.PerformerDTO, len(rows))
	for i, r := range rows {
		out[i] = dto.PerformerDTO{Rank: i + 1, Key: r.key, Label: labels[r.key], SalesFiguresDTO: r.fig}
	}
	return out, nil
}

// Summary KPIs de hoy y del mes en curso, valor del inventario y top de productos por ingreso del mes.
//
// Cuatro consultas en paralelo:
//  1. CogsReport(hoy)                 → Today
//  2. CogsReport(mes)                 → Month
//  3. TopPerformers(mes, product)     → TopProducts
//  4. ValuationSnapshot               → InventoryValue
func (uc *ValuationUseCase) Summary(ctx context.Context, f Filter) (*dto.SummaryDTO, error) {
	now := uc.now().In(uc.loc)
	todayStart := truncate(now, BucketDay)
	tomorrow := todayStart.AddDate(0, 0, 1)
	monthStart := truncate(now, BucketMonth)

	today, month := f, f
	today.From, today.To = &todayStart, &tomorrow
	month.From, month.To = &monthStart, &tomorrow

	var out dto.SummaryDTO
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := uc.CogsReport(gctx, today)
		if err != nil {
			return fmt.Errorf("resumen: ventas de hoy: %w", err)
		}
		out.Today = r.Totals
		return nil
	})
	g.Go(func() error {
		r, err := uc.CogsReport(gctx, month)
		if err != nil {
			return fmt.Errorf("resumen: ventas del mes: %w", err)
		}
		out.Month = r.Totals
		return nil
	})
	g.Go(func() error {
		top, err := uc.TopPerformers(gctx, month, DimensionProduct, SortByRevenue, summaryTop)
		if err != nil {
			return fmt.Errorf("resumen: top productos: %w", err)
		}
		out.TopProducts = top
		return nil
	})
	g.Go(func() error {
		v, err := uc.ValuationSnapshot(gctx, Filter{
			ProductIDs: f.ProductIDs, CategoryID: f.CategoryID, BrandID: f.BrandID,
			BranchID: f.BranchID, WarehouseID: f.WarehouseID,
		})
		if err != nil {
			return fmt.Errorf("resumen: valorización: %w", err)
		}
		out.InventoryValue = v.TotalValue
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out.DateLabel = monthLabel(now)
	return &out, nil
}

// ── Internos ──────────────────────────────────────────────────────────────────

// scopeFilter resuelve categoría y marca a IDs de producto e intersecta con ProductIDs.
func (uc *ValuationUseCase) scopeFilter(ctx context.Context, f Filter) (repository.ScopeFilter, error) {
	sf := repository.ScopeFilter{ProductIDs: f.ProductIDs, BranchID: f.BranchID, WarehouseID: f.WarehouseID}
	if f.CategoryID == "" && f.BrandID == "" {
		return sf, nil
	}
	ids, err := uc.products.ListIDs(ctx, f.CategoryID, f.BrandID)
	if err != nil {
		return sf, fmt.Errorf("catálogo: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	if f.ProductIDs != nil {
		keep := make([]string, 0, len(ids))
		for _, id := range ids {
			if sf.MatchesProduct(id) {
				keep = append(keep, id)
			}
		}
		ids = keep
	}
	sf.ProductIDs = ids
	return sf, nil
}

func (uc *ValuationUseCase) records(ctx context.Context, f Filter) ([]*entity.CogsRecord, error) {
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, fmt.Errorf("%w: el rango debe cumplir from < to", domain.ErrInvalidInput)
	}
	sf, err := uc.scopeFilter(ctx, f)
	if err != nil {
		return nil, err
	}
	records, err := uc.cogs.List(ctx, repository.CogsFilter{ScopeFilter: sf, From: f.From, To: f.To})
	if err != nil {
		return nil, fmt.Errorf("costo de ventas: %w", err)
	}
	return records, nil
}

func (uc *ValuationUseCase) catalogFor(ctx context.Context, ids []string) (map[string]*entity.Product, error) {
	if len(ids) == 0 {
		return map[string]*entity.Product{}, nil
	}
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	catalog, err := uc.products.FindByIDs(ctx, uniq)
	if err != nil {
		return nil, fmt.Errorf("catálogo: %w", err)
	}
	return catalog, nil
}

func productIDsOfStates(states []*entity.WacState) []string {
	ids := make([]string, len(states))
	for i, s := range states {
		ids[i] = s.Scope.ProductID
	}
	return ids
}

func dimensionKey(dimension, productID string, catalog map[string]*entity.Product) (key, label string) {
	p := catalog[productID]
	switch dimension {
	case DimensionCategory:
		if p == nil {
			return "", ""
		}
		return p.CategoryID, p.CategoryID
	case DimensionBrand:
		if p == nil {
			return "", ""
		}
		return p.BrandID, p.BrandID
	default:
		if p == nil {
			return productID, ""
		}
		return productID, strings.TrimSpace(p.SKU + " " + p.Name)
	}
}

func metricOf(f dto.SalesFiguresDTO, sortBy string) decimal.Decimal {
	switch sortBy {
	case SortByProfit:
		return f.GrossProfit
	case SortByMargin:
		return f.Margin
	default:
		return f.Revenue
	}
}

func truncate(t time.Time, bucket string) time.Time {
	switch bucket {
	case BucketYear:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	case BucketMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

func bucketLabel(t time.Time, bucket string) string {
	switch bucket {
	case BucketYear:
		return t.Format("2006")
	case BucketMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// monthLabel devuelve una etiqueta legible del mes, ej: "Febrero 2026".
func monthLabel(t time.Time) string {
	months := [...]string{
		"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
		"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
	}
	return fmt.Sprintf("%s %d", months[t.Month()-1], t.Year())
}

// figures acumulador de registros de costo de ventas.
type figures struct {
	qty, revenue, cogs decimal.Decimal
	count, zeroCost    int
}

func newFigures() *figures {
	return &figures{qty: decimal.Zero, revenue: decimal.Zero, cogs: decimal.Zero}
}

func (a *figures) add(r *entity.CogsRecord) {
	a.qty = a.qty.Add(r.QuantitySold)
	a.revenue = a.revenue.Add(r.Revenue)
	a.cogs = a.cogs.Add(r.TotalCogs)
	a.count++
	if r.HasWarning(entity.WarningZeroCost) {
		a.zeroCost++
	}
}

func (a *figures) dto() dto.SalesFiguresDTO {
	gross := a.revenue.Sub(a.cogs)
	margin := inventory.Margin(gross, a.revenue)
	return dto.SalesFiguresDTO{
		QuantitySold:  a.qty,
		Revenue:       a.revenue,
		Cogs:          a.cogs,
		GrossProfit:   gross,
		Margin:        margin,
		MarginPct:     margin.Mul(hundred).Round(2),
		SalesCount:    a.count,
		ZeroCostCount: a.zeroCost,
	}
}
