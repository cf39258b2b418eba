package entity

import "strings"

// ScopeKey identifica un pool de inventario valorizado de forma independiente:
// un producto, opcionalmente acotado a sucursal y/o bodega. Vacío significa "sin acotar".
type ScopeKey struct {
	ProductID   string `json:"product_id"`
	BranchID    string `json:"branch_id,omitempty"`
	WarehouseID string `json:"warehouse_id,omitempty"`
}

// segmentEscaper escapa el separador dentro de cada ID: scopes distintos nunca comparten clave.
var segmentEscaper = strings.NewReplacer("%", "%25", "/", "%2F")

// String devuelve la forma canónica "producto/sucursal/bodega", usada como clave de lock.
// Un "/" o "%" dentro de un ID se escapa (%2F, %25).
func (k ScopeKey) String() string {
	var b strings.Builder
	b.Grow(len(k.ProductID) + len(k.BranchID) + len(k.WarehouseID) + 2)
	segmentEscaper.WriteString(&b, k.ProductID)
	b.WriteByte('/')
	segmentEscaper.WriteString(&b, k.BranchID)
	b.WriteByte('/')
	segmentEscaper.WriteString(&b, k.WarehouseID)
	return b.String()
}

// IsZero indica si la clave no tiene producto.
func (k ScopeKey) IsZero() bool { return k.ProductID == "" }

// Less ordena claves por (producto, sucursal, bodega). Determina el orden de adquisición
// de locks cuando una operación toca dos scopes y el desempate de los reportes.
func (k ScopeKey) Less(o ScopeKey) bool {
	if k.ProductID != o.ProductID {
		return k.ProductID < o.ProductID
	}
	if k.BranchID != o.BranchID {
		return k.BranchID < o.BranchID
	}
	return k.WarehouseID < o.WarehouseID
}
