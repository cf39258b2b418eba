package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/inventario-wac/internal/application/analytics"
	"github.com/jhoicas/inventario-wac/internal/application/inventory"
	"github.com/jhoicas/inventario-wac/internal/domain/repository"
	"github.com/jhoicas/inventario-wac/internal/infrastructure/lock"
	"github.com/jhoicas/inventario-wac/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-wac/internal/infrastructure/metrics"
	infrapdf "github.com/jhoicas/inventario-wac/internal/infrastructure/pdf"
	"github.com/jhoicas/inventario-wac/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/inventario-wac/internal/interfaces/http"
	"github.com/jhoicas/inventario-wac/pkg/config"
	"github.com/jhoicas/inventario-wac/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Engine.Store).
		Str("lock_backend", cfg.Engine.LockBackend).
		Msg("iniciando aplicación")

	ctx := context.Background()

	// Persistencia: PostgreSQL en producción; memoria para desarrollo local.
	var (
		txRunner inventory.TxRunner
		reader   inventory.Repos
		products repository.ProductRepository
	)
	switch cfg.Engine.Store {
	case config.StoreMemory:
		store := memory.NewStore()
		txRunner, reader, products = store, store.Repos(), store.Products()
		log.Warn().Msg("ENGINE_STORE=memory: los datos se pierden al reiniciar")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		txRunner, reader, products = postgres.NewTxRunner(pool), postgres.NewRepos(pool), postgres.NewProductRepository(pool)
	}

	// Lock por scope: local (un proceso) o Redis (varias réplicas).
	var locker inventory.ScopeLocker
	switch cfg.Engine.LockBackend {
	case config.LockBackendRedis:
		rdb, err := lock.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		locker = lock.NewRedisScopeLocker(rdb, cfg.Engine, log)
	default:
		locker = lock.NewLocalScopeLocker(cfg.Engine.LockWait)
	}

	m := metrics.New()
	engine := inventory.NewWacEngine(txRunner, reader, locker,
		inventory.WithLogger(log),
		inventory.WithMetrics(m),
		inventory.WithTxTimeout(cfg.Engine.TxTimeout),
	)
	tracker := inventory.NewCogsTracker(engine, log)
	receiving := inventory.NewReceivingCoordinator(engine)
	reports := analytics.NewValuationUseCase(reader.States, reader.Cogs, products, cfg.Report.Location())

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(httpRouter.RequestLogger(log))
	app.Use(httpRouter.MetricsMiddleware(m))

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "Inventario WAC API",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Engine:    engine,
		Tracker:   tracker,
		Receiving: receiving,
		Reports:   reports,
		PDF:       infrapdf.NewMarotoPDFGenerator(),
		Location:  cfg.Report.Location(),
		Company:   cfg.App.Name,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	// Los movimientos en curso terminan su transacción: el motor no los aborta por cancelación.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second+cfg.Engine.TxTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
