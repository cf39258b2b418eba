package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/inventario-wac/internal/application/inventory"
	"github.com/jhoicas/inventario-wac/internal/domain"
)

var _ inventory.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL (READ COMMITTED).
// La serialización por scope la da el SELECT ... FOR UPDATE sobre wac_state.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run ejecuta fn con repos atados a la tx y hace Commit; ante cualquier error revierte.
// Si ctx tiene plazo, la espera por locks de fila queda acotada a ese plazo (lock_timeout).
// Un lock_timeout o un deadlock se devuelven como domain.ErrEngineBusy: reintentar es seguro.
func (r *TxRunner) Run(ctx context.Context, fn func(repos inventory.Repos) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if deadline, ok := ctx.Deadline(); ok {
		ms := max(time.Until(deadline).Milliseconds(), 1)
		// SET no acepta parámetros posicionales
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", ms)); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}

	if err := fn(NewRepos(tx)); err != nil {
		return busyOr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return busyOr(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func busyOr(err error) error {
	if isContention(err) {
		return fmt.Errorf("%w: %w", domain.ErrEngineBusy, err)
	}
	return err
}

// NewRepos repositorios del motor sobre q (pool para lecturas, tx para escrituras).
func NewRepos(q Querier) inventory.Repos {
	return inventory.Repos{
		Movements: NewInventoryMovementRepository(q),
		States:    NewWacStateRepository(q),
		History:   NewWacHistoryRepository(q),
		Cogs:      NewCogsRepository(q),
	}
}
