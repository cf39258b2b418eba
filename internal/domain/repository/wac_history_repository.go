package repository

import (
	"context"

	"github.com/jhoicas/inventario-wac/internal/domain/entity"
)

// WacHistoryRepository puerto del historial de auditoría (append-only).
type WacHistoryRepository interface {
	Append(ctx context.Context, entry *entity.WacHistoryEntry) error
	ListByScope(ctx context.Context, scope entity.ScopeKey, limit, offset int) ([]*entity.WacHistoryEntry, error)
}
