package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/domain/repository"
)

// Repos repositorios atados a una misma transacción (o al pool, para lecturas).
type Repos struct {
	Movements repository.InventoryMovementRepository
	States    repository.WacStateRepository
	History   repository.WacHistoryRepository
	Cogs      repository.CogsRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error, o el commit falla, nada de lo escrito queda visible.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos Repos) error) error
}

// ScopeLocker exclusión mutua por clave de scope. No hay lock global.
type ScopeLocker interface {
	// Lock espera hasta obtener el lock, con espera acotada; al agotarla devuelve domain.ErrEngineBusy.
	// unlock es idempotente.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Metrics observador del motor (Prometheus en producción, no-op en tests).
type Metrics interface {
	MovementApplied(t entity.MovementType)
	MovementRejected(t entity.MovementType, reason string)
	LockWait(d time.Duration, acquired bool)
	ReplayDivergence()
}

type noopMetrics struct{}

func (noopMetrics) MovementApplied(entity.MovementType)          {}
func (noopMetrics) MovementRejected(entity.MovementType, string) {}
func (noopMetrics) LockWait(time.Duration, bool)                 {}
func (noopMetrics) ReplayDivergence()                            {}
