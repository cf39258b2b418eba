// wac_verify recalcula cada scope desde el ledger y reporta los que divergen del estado cacheado.
// Con -repair reescribe el estado de los scopes divergentes (el ledger no se toca).
//
// Uso: go run ./cmd/wac_verify [-product-id p] [-branch-id b] [-warehouse-id w] [-repair] [-workers 4]
// Termina con código 2 si quedó algún scope divergente sin reparar o que no se pudo verificar.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/inventario-wac/internal/application/inventory"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/domain/repository"
	"github.com/jhoicas/inventario-wac/internal/infrastructure/lock"
	"github.com/jhoicas/inventario-wac/internal/infrastructure/postgres"
	"github.com/jhoicas/inventario-wac/pkg/config"
	"github.com/jhoicas/inventario-wac/pkg/logger"
)

func main() {
	productID := flag.String("product-id", "", "Opcional: solo este producto")
	branchID := flag.String("branch-id", "", "Opcional: solo esta sucursal")
	warehouseID := flag.String("warehouse-id", "", "Opcional: solo esta bodega")
	repair := flag.Bool("repair", false, "Reescribe el estado de los scopes divergentes desde el ledger")
	workers := flag.Int("workers", 4, "Scopes verificados en paralelo")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "wac_verify"})

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	// Con varias réplicas del API corriendo, el lock debe ser el mismo que usan ellas.
	var locker inventory.ScopeLocker = lock.NewLocalScopeLocker(cfg.Engine.LockWait)
	if cfg.Engine.LockBackend == config.LockBackendRedis {
		rdb, err := lock.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		locker = lock.NewRedisScopeLocker(rdb, cfg.Engine, log)
	}

	reader := postgres.NewRepos(pool)
	engine := inventory.NewWacEngine(postgres.NewTxRunner(pool), reader, locker,
		inventory.WithLogger(log), inventory.WithTxTimeout(cfg.Engine.TxTimeout))

	filter := repository.ScopeFilter{BranchID: strings.TrimSpace(*branchID), WarehouseID: strings.TrimSpace(*warehouseID)}
	if p := strings.TrimSpace(*productID); p != "" {
		filter.ProductIDs = []string{p}
	}
	states, err := reader.States.List(ctx, filter)
	if err != nil {
		log.Fatal().Err(err).Msg("listar scopes")
	}

	start := time.Now()
	sum, err := run(ctx, engine, scopesOf(states), *repair, *workers, log)
	if err != nil {
		log.Fatal().Err(err).Msg("verificación interrumpida")
	}
	log.Info().
		Int("scopes", sum.checked).
		Int("divergent", sum.divergent).
		Int("repaired", sum.repaired).
		Int("failed", sum.failed).
		Dur("elapsed", time.Since(start)).
		Msg("verificación terminada")

	if code := exitCode(sum); code != 0 {
		os.Exit(code)
	}
}

// exitCode es 2 si quedó algún scope divergente sin reparar o sin verificar.
func exitCode(sum summary) int {
	if sum.divergent > sum.repaired || sum.failed > 0 {
		return 2
	}
	return 0
}

type summary struct {
	checked   int
	divergent int
	repaired  int
	failed    int // errores al verificar o reparar
}

type verifier interface {
	VerifyScope(ctx context.Context, scope entity.ScopeKey) (*inventory.VerifyResult, error)
	RepairScope(ctx context.Context, scope entity.ScopeKey) (*entity.WacState, bool, error)
}

// run verifica los scopes con a lo sumo workers en paralelo. Un scope que falla se reporta,
// se cuenta en failed y no detiene a los demás.
func run(ctx context.Context, v verifier, scopes []entity.ScopeKey, repair bool, workers int, log *logger.Logger) (summary, error) {
	var (
		mu  sync.Mutex
		sum summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, sc := range scopes {
		scopeLog := log.Scope(sc.String())
		g.Go(func() error {
			res, err := v.VerifyScope(gctx, sc)
			if err != nil {
				scopeLog.Error().Err(err).Msg("no se pudo verificar")
				mu.Lock()
				sum.failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			sum.checked++
			mu.Unlock()
			if res.Healthy {
				return nil
			}
			if res.ReplayErr != nil {
				scopeLog.Warn().Err(res.ReplayErr).Msg("ledger no se puede recalcular")
			}
			mu.Lock()
			sum.divergent++
			mu.Unlock()
			if !repair {
				return nil
			}
			if _, _, err := v.RepairScope(gctx, sc); err != nil {
				scopeLog.Error().Err(err).Msg("no se pudo reparar")
				mu.Lock()
				sum.failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			sum.repaired++
			mu.Unlock()
			return nil
		})
	}
	return sum, g.Wait()
}

func scopesOf(states []*entity.WacState) []entity.ScopeKey {
	out := make([]entity.ScopeKey, len(states))
	for i, st := range states {
		out[i] = st.Scope
	}
	return out
}
