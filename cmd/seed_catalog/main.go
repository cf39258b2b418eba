// seed_catalog carga el catálogo de productos (sku, categoría, marca) que usan los reportes.
//
// Entrada: CSV con encabezado id,sku,name,category_id,brand_id. Las exportaciones del ERP
// vienen en ISO-8859-1; usar -latin1 para decodificarlas.
// Sin -apply imprime SQL idempotente por stdout; con -apply hace upsert directo en PostgreSQL.
//
// Uso: go run ./cmd/seed_catalog -file productos.csv [-latin1] [-apply]
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/infrastructure/postgres"
	"github.com/jhoicas/inventario-wac/pkg/config"
	"github.com/jhoicas/inventario-wac/pkg/logger"
)

var columns = []string{"id", "sku", "name", "category_id", "brand_id"}

func main() {
	file := flag.String("file", "", "Ruta del CSV de productos")
	latin1 := flag.Bool("latin1", false, "El CSV está en ISO-8859-1")
	apply := flag.Bool("apply", false, "Hace upsert en la BD en lugar de imprimir SQL")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Uso: go run ./cmd/seed_catalog -file productos.csv [-latin1] [-apply]")
		os.Exit(1)
	}

	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "abrir %s: %v\n", *file, err)
		os.Exit(1)
	}
	defer f.Close()

	var r io.Reader = f
	if *latin1 {
		r = transform.NewReader(f, charmap.ISO8859_1.NewDecoder())
	}
	products, err := parseCatalog(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "leer catálogo: %v\n", err)
		os.Exit(1)
	}

	if !*apply {
		fmt.Print(catalogSQL(products))
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "seed_catalog"})

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	repo := postgres.NewProductRepository(pool)
	for _, p := range products {
		if err := repo.Upsert(ctx, p); err != nil {
			log.Fatal().Err(err).Str("product_id", p.ID).Msg("upsert producto")
		}
	}
	log.Info().Int("products", len(products)).Msg("catálogo cargado")
}

// parseCatalog lee el CSV validando el encabezado. Filas sin id o sku son un error con su número de línea.
func parseCatalog(r io.Reader) ([]*entity.Product, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("archivo vacío")
		}
		return nil, err
	}
	// BOM de Excel en la primera columna
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if len(header) != len(columns) {
		return nil, fmt.Errorf("encabezado: se esperaban %d columnas, hay %d", len(columns), len(header))
	}
	for i, col := range columns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), col) {
			return nil, fmt.Errorf("encabezado: columna %d debe ser %q", i+1, col)
		}
	}

	var out []*entity.Product
	seen := make(map[string]int)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		p := &entity.Product{
			ID:         strings.TrimSpace(rec[0]),
			SKU:        strings.TrimSpace(rec[1]),
			Name:       strings.TrimSpace(rec[2]),
			CategoryID: strings.TrimSpace(rec[3]),
			BrandID:    strings.TrimSpace(rec[4]),
		}
		if p.ID == "" || p.SKU == "" {
			return nil, fmt.Errorf("línea %d: id y sku son obligatorios", line)
		}
		if prev, ok := seen[p.ID]; ok {
			return nil, fmt.Errorf("línea %d: id %s repetido (línea %d)", line, p.ID, prev)
		}
		seen[p.ID] = line
		out = append(out, p)
	}
	return out, nil
}

func catalogSQL(products []*entity.Product) string {
	var b strings.Builder
	b.WriteString("-- Generado por seed_catalog\nBEGIN;\n")
	for _, p := range products {
		fmt.Fprintf(&b,
			"INSERT INTO products (id, sku, name, category_id, brand_id) VALUES (%s, %s, %s, %s, %s)\n"+
				"  ON CONFLICT (id) DO UPDATE SET sku = EXCLUDED.sku, name = EXCLUDED.name, category_id = EXCLUDED.category_id, brand_id = EXCLUDED.brand_id;\n",
			quote(p.ID), quote(p.SKU), quote(p.Name), quote(p.CategoryID), quote(p.BrandID))
	}
	b.WriteString("COMMIT;\n")
	return b.String()
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
