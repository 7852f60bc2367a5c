package pg

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/renovo/internal/store/core"
	"github.com/jackc/pgx/v5"
)

const tokenCols = `id, created_at, created_by, is_active, is_deleted,
	owner_id, credential_id, secret, expires_at, used, revoked, owner_display_name`

type tokenRepo struct{ u *unitOfWork }

func (r *tokenRepo) Insert(_ context.Context, t *core.RotationToken) error {
	r.u.Stage(&core.Change{Op: core.OpInsert, Entity: t, Apply: func(ctx context.Context, tx core.Tx) error {
		const q = `
			INSERT INTO rotation_tokens (` + tokenCols + `)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
		_, err := tx.(*pgTx).tx.Exec(ctx, q,
			t.ID, t.CreatedAt, t.CreatedBy, t.IsActive, t.IsDeleted,
			t.OwnerID, t.CredentialID, t.Secret, t.ExpiresAt, t.Used, t.Revoked, t.OwnerDisplayName)
		if isUniqueViolation(err) {
			return core.ErrConflict
		}
		return err
	}})
	return nil
}

func (r *tokenRepo) MarkUsed(_ context.Context, id string) error {
	return r.markFlag(id, "used")
}

func (r *tokenRepo) MarkRevoked(_ context.Context, id string) error {
	return r.markFlag(id, "revoked")
}

// markFlag stagea la transición false→true de un flag monotónico.
// El WHERE con el flag en false hace el update idempotente; cero filas
// afectadas con el flag ya en true no es error.
func (r *tokenRepo) markFlag(id, col string) error {
	marker := &core.RotationToken{}
	marker.ID = id
	r.u.Stage(&core.Change{Op: core.OpUpdate, Entity: marker, Apply: func(ctx context.Context, tx core.Tx) error {
		q := `UPDATE rotation_tokens SET ` + col + ` = TRUE WHERE id = $1 AND ` + col + ` = FALSE`
		_, err := tx.(*pgTx).tx.Exec(ctx, q, id)
		return err
	}})
	return nil
}

// GetBySecret lee el token por secreto. Dentro de una transacción toma
// lock de fila (FOR UPDATE): una rotación concurrente sobre el mismo
// secreto bloquea hasta el commit y ve el flag used consistente.
func (r *tokenRepo) GetBySecret(ctx context.Context, secret string) (*core.RotationToken, error) {
	q := `SELECT ` + tokenCols + ` FROM rotation_tokens WHERE secret = $1`
	if r.u.inTx() {
		q += ` FOR UPDATE`
	}
	t, err := scanToken(r.u.q().QueryRow(ctx, q, secret))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *tokenRepo) ListByOwner(ctx context.Context, ownerID string) ([]core.RotationToken, error) {
	const q = `SELECT ` + tokenCols + ` FROM rotation_tokens WHERE owner_id = $1 ORDER BY created_at`
	return r.list(ctx, q, ownerID)
}

func (r *tokenRepo) ListActiveByOwner(ctx context.Context, ownerID string) ([]core.RotationToken, error) {
	const q = `SELECT ` + tokenCols + ` FROM rotation_tokens
		WHERE owner_id = $1 AND NOT used AND NOT revoked AND expires_at > NOW()
		ORDER BY created_at`
	return r.list(ctx, q, ownerID)
}

func (r *tokenRepo) list(ctx context.Context, q string, args ...any) ([]core.RotationToken, error) {
	rows, err := r.u.q().Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.RotationToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *tokenRepo) SweepExpiredOrUsed(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM rotation_tokens WHERE expires_at < $1 OR used`
	ct, err := r.u.q().Exec(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func scanToken(row pgx.Row) (*core.RotationToken, error) {
	var t core.RotationToken
	err := row.Scan(
		&t.ID, &t.CreatedAt, &t.CreatedBy, &t.IsActive, &t.IsDeleted,
		&t.OwnerID, &t.CredentialID, &t.Secret, &t.ExpiresAt, &t.Used, &t.Revoked, &t.OwnerDisplayName)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
