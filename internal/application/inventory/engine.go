package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-wac/internal/domain"
	"github.com/jhoicas/inventario-wac/internal/domain/entity"
	"github.com/jhoicas/inventario-wac/internal/domain/inventory"
	"github.com/jhoicas/inventario-wac/pkg/logger"
)

// DefaultTxTimeout tiempo máximo de la transacción mientras se sostiene el lock del scope.
const DefaultTxTimeout = 5 * time.Second

// WacEngine motor de costo promedio ponderado. Es el único escritor del ledger de movimientos,
// del estado WAC y del historial: los tres se actualizan en una sola transacción bajo el lock del scope.
type WacEngine struct {
	tx        TxRunner
	reader    Repos
	locker    ScopeLocker
	log       *logger.Logger
	metrics   Metrics
	txTimeout time.Duration
	now       func() time.Time
}

// EngineOption configura el motor.
type EngineOption func(*WacEngine)

// WithLogger inyecta el logger.
func WithLogger(l *logger.Logger) EngineOption {
	return func(e *WacEngine) { e.log = l.Component("wac_engine") }
}

// WithMetrics inyecta el observador de métricas.
func WithMetrics(m Metrics) EngineOption {
	return func(e *WacEngine) { e.metrics = m }
}

// WithTxTimeout fija el plazo de la transacción; al vencer la operación se revierte con ErrEngineBusy.
func WithTxTimeout(d time.Duration) EngineOption {
	return func(e *WacEngine) {
		if d > 0 {
			e.txTimeout = d
		}
	}
}

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) EngineOption {
	return func(e *WacEngine) { e.now = now }
}

// NewWacEngine construye el motor. reader son repositorios sobre el pool, usados solo para lecturas.
func NewWacEngine(tx TxRunner, reader Repos, locker ScopeLocker, opts ...EngineOption) *WacEngine {
	e := &WacEngine{
		tx:        tx,
		reader:    reader,
		locker:    locker,
		log:       logger.Nop(),
		metrics:   noopMetrics{},
		txTimeout: DefaultTxTimeout,
		now:       time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// MovementRequest descriptor de un movimiento, tal como lo envían recepción de compras,
// procesamiento de ventas o ajustes manuales.
type MovementRequest struct {
	Scope         entity.ScopeKey
	Type          entity.MovementType
	QuantityDelta decimal.Decimal  // con signo: positivo entrada, negativo salida
	UnitCost      *decimal.Decimal // obligatorio en entradas; ignorado en salidas
	Reference     entity.Reference
	Actor         string
	OccurredAt    time.Time // cero = ahora, asignado bajo el lock
}

// MovementResult resultado de un movimiento aplicado.
type MovementResult struct {
	Movement    *entity.InventoryMovement
	History     *entity.WacHistoryEntry
	State       *entity.WacState
	PreviousWac decimal.Decimal
}

// afterApplyFunc se ejecuta dentro de la misma transacción, después de escribir el movimiento.
// Si devuelve error, toda la operación se revierte.
type afterApplyFunc func(ctx context.Context, repos Repos, res *MovementResult) error

// ApplyMovement aplica un movimiento a su scope:
// valida, toma el lock del scope, lee el estado, calcula los nuevos totales y escribe
// movimiento + historial + estado en una sola transacción. Todo o nada.
func (e *WacEngine) ApplyMovement(ctx context.Context, req MovementRequest) (*MovementResult, error) {
	return e.apply(ctx, req, nil)
}

func (e *WacEngine) apply(ctx context.Context, req MovementRequest, after afterApplyFunc) (*MovementResult, error) {
	if err := e.validate(&req); err != nil {
		e.metrics.MovementRejected(req.Type, "invalid")
		return nil, err
	}

	unlock, err := e.lockScopes(ctx, req.Scope)
	if err != nil {
		e.metrics.MovementRejected(req.Type, "busy")
		return nil, err
	}
	defer unlock()

	var result *MovementResult
	err = e.runTx(ctx, func(txCtx context.Context, repos Repos) error {
		res, err := e.applyInTx(txCtx, repos, req)
		if err != nil {
			return err
		}
		if after != nil {
			if err := after(txCtx, repos, res); err != nil {
				return err
			}
		}
		result = res
		return nil
	})
	if err != nil {
		e.reject(req, err)
		return nil, err
	}

	e.metrics.MovementApplied(req.Type)
	e.log.Debug().
		Str("scope", req.Scope.String()).
		Str("type", string(req.Type)).
		Str("delta", result.Movement.QuantityDelta.String()).
		Str("wac", result.State.WeightedAverageCost.String()).
		Str("quantity", result.State.CurrentQuantity.String()).
		Int64("sequence", result.Movement.Sequence).
		Msg("movimiento aplicado")
	return result, nil
}

// TransferRequest traslado entre dos scopes del mismo producto (o de distinto pool).
type TransferRequest struct {
	From       entity.ScopeKey
	To         entity.ScopeKey
	Quantity   decimal.Decimal // positivo
	Reference  entity.Reference
	Actor      string
	OccurredAt time.Time
}

// TransferResult par de movimientos del traslado.
type TransferResult struct {
	Out *MovementResult
	In  *MovementResult
}

// TransferStock saca del origen al WAC del origen y entra al destino a ese mismo costo.
// Bloquea ambos scopes en orden canónico (evita deadlocks) y escribe todo en una transacción.
func (e *WacEngine) TransferStock(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.From == req.To {
		return nil, fmt.Errorf("%w: origen y destino iguales", domain.ErrInvalidMovement)
	}
	qty := inventory.Round(req.Quantity)
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: la cantidad a trasladar debe ser positiva", domain.ErrInvalidMovement)
	}
	zero := decimal.Zero
	out := MovementRequest{
		Scope: req.From, Type: entity.MovementTransferOut, QuantityDelta: qty.Neg(),
		Reference: req.Reference, Actor: req.Actor, OccurredAt: req.OccurredAt,
	}
	in := MovementRequest{
		Scope: req.To, Type: entity.MovementTransferIn, QuantityDelta: qty,
		Reference: req.Reference, Actor: req.Actor, OccurredAt: req.OccurredAt,
		UnitCost: &zero, // se reemplaza por el WAC de salida dentro de la tx
	}
	if err := e.validate(&out); err != nil {
		return nil, err
	}
	if err := e.validate(&in); err != nil {
		return nil, err
	}

	unlock, err := e.lockScopes(ctx, req.From, req.To)
	if err != nil {
		e.metrics.MovementRejected(entity.MovementTransferOut, "busy")
		return nil, err
	}
	defer unlock()

	var result TransferResult
	err = e.runTx(ctx, func(txCtx context.Context, repos Repos) error {
		if out.OccurredAt.IsZero() {
			// ambas patas llevan la misma fecha, no anterior al último movimiento de ninguno de los dos scopes
			ts, err := e.stamp(txCtx, repos, req.From, req.To)
			if err != nil {
				return err
			}
			out.OccurredAt, in.OccurredAt = ts, ts
		}
		outRes, err := e.applyInTx(txCtx, repos, out)
		if err != nil {
			return err
		}
		cost := outRes.Movement.UnitCost
		in.UnitCost = &cost
		inRes, err := e.applyInTx(txCtx, repos, in)
		if err != nil {
			return err
		}
		result = TransferResult{Out: outRes, In: inRes}
		return nil
	})
	if err != nil {
		e.reject(out, err)
		return nil, err
	}
	e.metrics.MovementApplied(entity.MovementTransferOut)
	e.metrics.MovementApplied(entity.MovementTransferIn)
	return &result, nil
}

// GetState devuelve el estado cacheado del scope (en cero si nunca tuvo movimientos). No toma lock.
func (e *WacEngine) GetState(ctx context.Context, scope entity.ScopeKey) (*entity.WacState, error) {
	if scope.IsZero() {
		return nil, fmt.Errorf("%w: scope sin producto", domain.ErrInvalidInput)
	}
	st, err := e.reader.States.Get(ctx, scope)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return entity.NewWacState(scope), nil
	}
	return st, nil
}

// ListMovements página del ledger de un scope, en orden de ledger.
func (e *WacEngine) ListMovements(ctx context.Context, scope entity.ScopeKey, limit, offset int) ([]*entity.InventoryMovement, error) {
	if scope.IsZero() {
		return nil, fmt.Errorf("%w: scope sin producto", domain.ErrInvalidInput)
	}
	return e.reader.Movements.ListByScope(ctx, scope, limit, offset)
}

// ListHistory página del historial de auditoría de un scope.
func (e *WacEngine) ListHistory(ctx context.Context, scope entity.ScopeKey, limit, offset int) ([]*entity.WacHistoryEntry, error) {
	if scope.IsZero() {
		return nil, fmt.Errorf("%w: scope sin producto", domain.ErrInvalidInput)
	}
	return e.reader.History.ListByScope(ctx, scope, limit, offset)
}

// ── Internos ──────────────────────────────────────────────────────────────────

// validate rechaza sincrónicamente lo que no depende del estado (antes de tomar el lock).
func (e *WacEngine) validate(req *MovementRequest) error {
	if req.Scope.IsZero() {
		return fmt.Errorf("%w: scope sin producto", domain.ErrInvalidMovement)
	}
	req.QuantityDelta = inventory.Round(req.QuantityDelta)
	if _, err := inventory.ResolveDirection(req.Type, req.QuantityDelta); err != nil {
		return err
	}
	// precisión de timestamptz: el orden del ledger debe sobrevivir al ida y vuelta por la BD.
	// Sin fecha, se asigna bajo el lock (ver applyInTx) para que escritores concurrentes no se adelanten.
	if !req.OccurredAt.IsZero() {
		req.OccurredAt = req.OccurredAt.UTC().Truncate(time.Microsecond)
	}
	return nil
}

// stamp fecha para un movimiento sin occurredAt: ahora, o el último movimiento de los scopes si el reloj quedó atrás.
func (e *WacEngine) stamp(ctx context.Context, repos Repos, scopes ...entity.ScopeKey) (time.Time, error) {
	ts := e.now().UTC().Truncate(time.Microsecond)
	for _, sc := range scopes {
		st, err := repos.States.GetForUpdate(ctx, sc)
		if err != nil {
			return time.Time{}, err
		}
		if st.LastMovementAt.After(ts) {
			ts = st.LastMovementAt
		}
	}
	return ts, nil
}

// applyInTx lee el estado con bloqueo de fila, calcula la transición y escribe las tres tablas.
func (e *WacEngine) applyInTx(ctx context.Context, repos Repos, req MovementRequest) (*MovementResult, error) {
	state, err := repos.States.GetForUpdate(ctx, req.Scope)
	if err != nil {
		return nil, err
	}
	if req.OccurredAt.IsZero() {
		req.OccurredAt = e.now().UTC().Truncate(time.Microsecond)
		if req.OccurredAt.Before(state.LastMovementAt) {
			req.OccurredAt = state.LastMovementAt
		}
	}
	if !state.LastMovementAt.IsZero() && req.OccurredAt.Before(state.LastMovementAt) {
		return nil, fmt.Errorf("%w: occurred_at %s anterior al último movimiento del scope (%s)",
			domain.ErrInvalidMovement, req.OccurredAt.Format(time.RFC3339Nano), state.LastMovementAt.Format(time.RFC3339Nano))
	}

	dir, err := inventory.ResolveDirection(req.Type, req.QuantityDelta)
	if err != nil {
		return nil, err
	}
	cost, err := inventory.EffectiveUnitCost(req.Type, dir, req.UnitCost, state.WeightedAverageCost)
	if err != nil {
		return nil, err
	}
	step, err := inventory.Apply(inventory.TotalsOf(state), req.QuantityDelta, cost)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	seq := state.LastSequence + 1
	mov := &entity.InventoryMovement{
		ID:               uuid.Must(uuid.NewV7()).String(),
		Scope:            req.Scope,
		Sequence:         seq,
		Type:             req.Type,
		QuantityDelta:    step.Delta,
		UnitCost:         step.UnitCost,
		TotalCost:        step.TotalCost,
		RunningQuantity:  step.After.Quantity,
		RunningValue:     step.After.Value,
		WacAfterMovement: step.After.Wac,
		Reference:        req.Reference,
		OccurredAt:       req.OccurredAt,
		Actor:            req.Actor,
		CreatedAt:        now,
	}
	hist := &entity.WacHistoryEntry{
		ID:                 uuid.Must(uuid.NewV7()).String(),
		Scope:              req.Scope,
		MovementID:         mov.ID,
		PreviousWac:        step.Before.Wac,
		NewWac:             step.After.Wac,
		PreviousQuantity:   step.Before.Quantity,
		NewQuantity:        step.After.Quantity,
		PreviousValue:      step.Before.Value,
		NewValue:           step.After.Value,
		TriggerType:        req.Type,
		TriggerReferenceID: req.Reference.ID,
		CreatedAt:          now,
	}
	next := &entity.WacState{
		Scope:               req.Scope,
		CurrentQuantity:     step.After.Quantity,
		TotalValue:          step.After.Value,
		WeightedAverageCost: step.After.Wac,
		LastSequence:        seq,
		LastMovementAt:      req.OccurredAt,
		LastUpdatedAt:       now,
	}

	if err := repos.Movements.Append(ctx, mov); err != nil {
		return nil, err
	}
	if err := repos.History.Append(ctx, hist); err != nil {
		return nil, err
	}
	if err := repos.States.Put(ctx, next); err != nil {
		return nil, err
	}

	return &MovementResult{
		Movement:    mov,
		History:     hist,
		State:       next,
		PreviousWac: step.Before.Wac,
	}, nil
}

// runTx ejecuta fn en una transacción desacoplada de la cancelación del llamador:
// una vez iniciada la escritura termina o se revierte completa. Solo el plazo propio la corta.
func (e *WacEngine) runTx(ctx context.Context, fn func(txCtx context.Context, repos Repos) error) error {
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.txTimeout)
	defer cancel()

	err := e.tx.Run(txCtx, func(repos Repos) error {
		return fn(txCtx, repos)
	})
	if err == nil {
		return nil
	}
	return classifyTxError(txCtx, err)
}

// classifyTxError conserva los errores de negocio y convierte el resto en ErrPersistence
// (o ErrEngineBusy si venció el plazo de la transacción).
func classifyTxError(txCtx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidMovement),
		errors.Is(err, domain.ErrNegativeQuantity),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrDuplicate),
		errors.Is(err, domain.ErrEngineBusy),
		errors.Is(err, domain.ErrPersistence):
		return err
	case errors.Is(txCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: la transacción excedió su plazo y fue revertida: %w", domain.ErrEngineBusy, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
}

// lockScopes toma los locks de los scopes en orden canónico. Devuelve una función que los libera todos.
func (e *WacEngine) lockScopes(ctx context.Context, scopes ...entity.ScopeKey) (func(), error) {
	keys := make([]string, 0, len(scopes))
	seen := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		k := s.String()
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	unlocks := make([]func(), 0, len(keys))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, k := range keys {
		start := time.Now()
		unlock, err := e.locker.Lock(ctx, k)
		e.metrics.LockWait(time.Since(start), err == nil)
		if err != nil {
			release()
			e.log.Scope(k).Warn().Err(err).Msg("no se obtuvo el lock del scope")
			if !errors.Is(err, domain.ErrEngineBusy) {
				err = fmt.Errorf("%w: %w", domain.ErrEngineBusy, err)
			}
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

func (e *WacEngine) reject(req MovementRequest, err error) {
	reason := "persistence"
	switch {
	case errors.Is(err, domain.ErrNegativeQuantity):
		reason = "negative_quantity"
	case errors.Is(err, domain.ErrInvalidMovement), errors.Is(err, domain.ErrInvalidInput):
		reason = "invalid"
	case errors.Is(err, domain.ErrDuplicate):
		reason = "duplicate"
	case errors.Is(err, domain.ErrEngineBusy):
		reason = "busy"
	}
	e.metrics.MovementRejected(req.Type, reason)
	if reason == "persistence" || reason == "busy" {
		e.log.Scope(req.Scope.String()).Error().Err(err).
			Str("type", string(req.Type)).
			Msg("movimiento revertido")
	}
}
