package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
)

// Errores del motor de costo promedio ponderado.
// Los llamadores los comparan con errors.Is; el motor siempre los envuelve con contexto.
var (
	// ErrInvalidMovement cantidad cero, signo incompatible con el tipo, costo faltante
	// o fecha anterior al último movimiento del scope. Se rechaza antes de tocar el estado.
	ErrInvalidMovement = errors.New("movimiento inválido")
	// ErrNegativeQuantity la salida excede la cantidad disponible. Nunca se recorta a cero.
	ErrNegativeQuantity = errors.New("stock insuficiente")
	// ErrEngineBusy no se obtuvo el lock del scope (o la persistencia excedió su tiempo) dentro del plazo.
	ErrEngineBusy = errors.New("motor ocupado, reintente")
	// ErrPersistence falló una escritura (ledger, estado o historial); la operación completa se revirtió.
	ErrPersistence = errors.New("falla de persistencia")
)
