// migrate aplica (o revierte) las migraciones embebidas del esquema WAC.
//
// Uso: go run ./cmd/migrate [-down]
// La conexión sale de DATABASE_URL o DB_* (mismo origen que el API).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jhoicas/inventario-wac/internal/infrastructure/postgres"
	"github.com/jhoicas/inventario-wac/pkg/config"
	"github.com/jhoicas/inventario-wac/pkg/logger"
)

func main() {
	down := flag.Bool("down", false, "Revierte todas las migraciones")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "migrate"})

	dsn := cfg.DB.ConnectionString()
	if *down {
		if err := postgres.MigrateDown(dsn); err != nil {
			log.Fatal().Err(err).Msg("revertir migraciones")
		}
		log.Info().Msg("migraciones revertidas")
		return
	}

	version, err := postgres.Migrate(dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("aplicar migraciones")
	}
	log.Info().Uint("version", version).Msg("esquema al día")
}
