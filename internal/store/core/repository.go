package core

import (
	"context"
	"time"
)

// Tx abstrae la transacción del backend.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TokenRepository define operaciones sobre rotation tokens.
//
// Dentro de un unit of work, las escrituras quedan staged y se aplican
// recién en SaveChanges; las lecturas van directo contra la transacción.
type TokenRepository interface {
	// Insert persiste un token nuevo.
	// Retorna ErrConflict solo si Secret colisiona (reintento de generación,
	// nunca error de cara al caller).
	Insert(ctx context.Context, t *RotationToken) error

	// MarkUsed marca used=true. Idempotente: si ya estaba en true es no-op.
	MarkUsed(ctx context.Context, id string) error

	// MarkRevoked marca revoked=true. Idempotente.
	MarkRevoked(ctx context.Context, id string) error

	// GetBySecret busca un token por su secreto opaco.
	// Retorna ErrNotFound si no existe. Dentro de una rotación la lectura
	// es consistente frente a rotaciones concurrentes (lock de fila o
	// serialización del backend).
	GetBySecret(ctx context.Context, secret string) (*RotationToken, error)

	// ListByOwner retorna todos los tokens del owner (usados y revocados
	// incluidos). Distingue "owner sin tokens" de "cero activos".
	ListByOwner(ctx context.Context, ownerID string) ([]RotationToken, error)

	// ListActiveByOwner retorna los tokens vigentes (ni usados, ni
	// revocados, ni expirados) del owner.
	ListActiveByOwner(ctx context.Context, ownerID string) ([]RotationToken, error)

	// SweepExpiredOrUsed borra filas con expiresAt < now OR used = true.
	// Retorna la cantidad eliminada.
	SweepExpiredOrUsed(ctx context.Context, now time.Time) (int64, error)
}

// AccountRepository es el colaborador de identidad mínimo del core.
type AccountRepository interface {
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, a *Account) error
}

// Repository es la fachada del backend de persistencia.
type Repository interface {
	Ping(ctx context.Context) error
	Close()

	// NewUnitOfWork crea un coordinador de transacción nuevo. Cada
	// operación lógica usa el suyo; no hay transacciones anidadas.
	NewUnitOfWork() UnitOfWork
}
