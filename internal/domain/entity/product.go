package entity

// Product entrada del catálogo usada por los reportes para agrupar por categoría y marca.
// El motor WAC no depende del catálogo; un scope puede existir sin producto catalogado.
type Product struct {
	ID         string
	SKU        string
	Name       string
	CategoryID string
	BrandID    string
}
