package repository

import "time"

// ScopeFilter acota consultas de lectura a un subconjunto de scopes.
// Campos vacíos no filtran.
type ScopeFilter struct {
	ProductIDs  []string // nil = todos; slice vacío no nil = ninguno
	BranchID    string
	WarehouseID string
}

// CogsFilter filtro de registros de costo de ventas por scope y rango de occurredAt [From, To).
type CogsFilter struct {
	ScopeFilter
	From *time.Time
	To   *time.Time
}

// MatchesProduct indica si el producto pasa el filtro.
func (f ScopeFilter) MatchesProduct(productID string) bool {
	if f.ProductIDs == nil {
		return true
	}
	for _, id := range f.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// InRange indica si t cae en [From, To).
func (f CogsFilter) InRange(t time.Time) bool {
	if f.From != nil && t.Before(*f.From) {
		return false
	}
	if f.To != nil && !t.Before(*f.To) {
		return false
	}
	return true
}
