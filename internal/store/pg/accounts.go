package pg

import (
	"context"
	"errors"

	"github.com/dropDatabas3/renovo/internal/store/core"
	"github.com/jackc/pgx/v5"
)

const accountCols = `id, created_at, created_by, is_active, is_deleted,
	username, secret_hash, security_stamp, display_name, role`

type accountRepo struct{ u *unitOfWork }

func (r *accountRepo) GetByUsername(ctx context.Context, username string) (*core.Account, error) {
	const q = `SELECT ` + accountCols + ` FROM accounts WHERE username = $1 AND NOT is_deleted`
	return scanAccount(r.u.q().QueryRow(ctx, q, username))
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*core.Account, error) {
	const q = `SELECT ` + accountCols + ` FROM accounts WHERE id = $1 AND NOT is_deleted`
	return scanAccount(r.u.q().QueryRow(ctx, q, id))
}

func (r *accountRepo) Create(_ context.Context, a *core.Account) error {
	r.u.Stage(&core.Change{Op: core.OpInsert, Entity: a, Apply: func(ctx context.Context, tx core.Tx) error {
		const q = `
			INSERT INTO accounts (` + accountCols + `)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
		_, err := tx.(*pgTx).tx.Exec(ctx, q,
			a.ID, a.CreatedAt, a.CreatedBy, a.IsActive, a.IsDeleted,
			a.Username, a.SecretHash, a.SecurityStamp, a.DisplayName, a.Role)
		if isUniqueViolation(err) {
			return core.ErrConflict
		}
		return err
	}})
	return nil
}

func scanAccount(row pgx.Row) (*core.Account, error) {
	var a core.Account
	err := row.Scan(
		&a.ID, &a.CreatedAt, &a.CreatedBy, &a.IsActive, &a.IsDeleted,
		&a.Username, &a.SecretHash, &a.SecurityStamp, &a.DisplayName, &a.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
