// Package memory implementa el store en memoria para tests y desarrollo.
//
// Concurrencia: cada transacción toma el lock global del store en Begin
// y lo suelta en Commit/Rollback, así que las transacciones quedan
// serializadas (más fuerte que read-committed). El rollback rebobina un
// journal de undos.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/renovo/internal/store/core"
)

type Store struct {
	mu         sync.Mutex
	tokens     map[string]*core.RotationToken // por ID
	bySecret   map[string]string              // secret → ID
	accounts   map[string]*core.Account       // por ID
	byUsername map[string]string              // username → ID
	hooks      []core.Hook
}

func New() *Store {
	return &Store{
		tokens:     map[string]*core.RotationToken{},
		bySecret:   map[string]string{},
		accounts:   map[string]*core.Account{},
		byUsername: map[string]string{},
		hooks:      core.DefaultHooks(),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close()                     {}

func (s *Store) NewUnitOfWork() core.UnitOfWork {
	u := &unitOfWork{store: s}
	u.Coordinator = core.NewCoordinator(func(context.Context) (core.Tx, error) {
		s.mu.Lock()
		tx := &memTx{store: s}
		u.tx = tx
		return tx, nil
	}, s.hooks)
	return u
}

// memTx sostiene el lock del store y el journal de undos.
type memTx struct {
	store *Store
	undo  []func()
	done  bool
}

func (t *memTx) record(fn func()) { t.undo = append(t.undo, fn) }

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.undo = nil
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.store.mu.Unlock()
	return nil
}

type unitOfWork struct {
	*core.Coordinator
	store *Store
	tx    *memTx
}

func (u *unitOfWork) Tokens() core.TokenRepository     { return &tokenRepo{u: u} }
func (u *unitOfWork) Accounts() core.AccountRepository { return &accountRepo{u: u} }

// withRead ejecuta fn con el lock tomado. Si la transacción propia ya lo
// tiene, accede directo.
func (u *unitOfWork) withRead(fn func()) {
	if u.CurrentTx() != nil {
		fn()
		return
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	fn()
}

// activeTx retorna la memTx activa (nil fuera de transacción).
func (u *unitOfWork) activeTx() *memTx {
	if u.CurrentTx() == nil {
		return nil
	}
	return u.tx
}

type tokenRepo struct{ u *unitOfWork }

func (r *tokenRepo) Insert(_ context.Context, t *core.RotationToken) error {
	r.u.Stage(&core.Change{Op: core.OpInsert, Entity: t, Apply: func(_ context.Context, tx core.Tx) error {
		m := tx.(*memTx)
		s := m.store
		if _, dup := s.bySecret[t.Secret]; dup {
			return core.ErrConflict
		}
		cp := *t
		s.tokens[cp.ID] = &cp
		s.bySecret[cp.Secret] = cp.ID
		m.record(func() {
			delete(s.tokens, cp.ID)
			delete(s.bySecret, cp.Secret)
		})
		return nil
	}})
	return nil
}

func (r *tokenRepo) MarkUsed(_ context.Context, id string) error {
	return r.markFlag(id, func(t *core.RotationToken) *bool { return &t.Used })
}

func (r *tokenRepo) MarkRevoked(_ context.Context, id string) error {
	return r.markFlag(id, func(t *core.RotationToken) *bool { return &t.Revoked })
}

// markFlag stagea la transición false→true de un flag monotónico.
// Idempotente: flag ya en true es no-op.
func (r *tokenRepo) markFlag(id string, field func(*core.RotationToken) *bool) error {
	marker := &core.RotationToken{}
	marker.ID = id
	r.u.Stage(&core.Change{Op: core.OpUpdate, Entity: marker, Apply: func(_ context.Context, tx core.Tx) error {
		m := tx.(*memTx)
		t, ok := m.store.tokens[id]
		if !ok {
			return core.ErrNotFound
		}
		f := field(t)
		if *f {
			return nil
		}
		*f = true
		m.record(func() { *f = false })
		return nil
	}})
	return nil
}

func (r *tokenRepo) GetBySecret(_ context.Context, secret string) (*core.RotationToken, error) {
	var out *core.RotationToken
	r.u.withRead(func() {
		if id, ok := r.u.store.bySecret[secret]; ok {
			cp := *r.u.store.tokens[id]
			out = &cp
		}
	})
	if out == nil {
		return nil, core.ErrNotFound
	}
	return out, nil
}

func (r *tokenRepo) ListByOwner(_ context.Context, ownerID string) ([]core.RotationToken, error) {
	var out []core.RotationToken
	r.u.withRead(func() {
		for _, t := range r.u.store.tokens {
			if t.OwnerID == ownerID {
				out = append(out, *t)
			}
		}
	})
	return out, nil
}

func (r *tokenRepo) ListActiveByOwner(ctx context.Context, ownerID string) ([]core.RotationToken, error) {
	all, err := r.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var out []core.RotationToken
	for _, t := range all {
		if !t.Used && !t.Revoked && t.ExpiresAt.After(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *tokenRepo) SweepExpiredOrUsed(_ context.Context, now time.Time) (int64, error) {
	var n int64
	tx := r.u.activeTx()
	r.u.withRead(func() {
		s := r.u.store
		for id, t := range s.tokens {
			if !t.Used && !t.ExpiresAt.Before(now) {
				continue
			}
			victim := t
			delete(s.tokens, id)
			delete(s.bySecret, victim.Secret)
			if tx != nil {
				tx.record(func() {
					s.tokens[victim.ID] = victim
					s.bySecret[victim.Secret] = victim.ID
				})
			}
			n++
		}
	})
	return n, nil
}

type accountRepo struct{ u *unitOfWork }

func (r *accountRepo) GetByUsername(_ context.Context, username string) (*core.Account, error) {
	var out *core.Account
	r.u.withRead(func() {
		if id, ok := r.u.store.byUsername[username]; ok {
			cp := *r.u.store.accounts[id]
			out = &cp
		}
	})
	if out == nil {
		return nil, core.ErrNotFound
	}
	return out, nil
}

func (r *accountRepo) GetByID(_ context.Context, id string) (*core.Account, error) {
	var out *core.Account
	r.u.withRead(func() {
		if a, ok := r.u.store.accounts[id]; ok {
			cp := *a
			out = &cp
		}
	})
	if out == nil {
		return nil, core.ErrNotFound
	}
	return out, nil
}

func (r *accountRepo) Create(_ context.Context, a *core.Account) error {
	r.u.Stage(&core.Change{Op: core.OpInsert, Entity: a, Apply: func(_ context.Context, tx core.Tx) error {
		m := tx.(*memTx)
		s := m.store
		if _, dup := s.byUsername[a.Username]; dup {
			return core.ErrConflict
		}
		cp := *a
		s.accounts[cp.ID] = &cp
		s.byUsername[cp.Username] = cp.ID
		m.record(func() {
			delete(s.accounts, cp.ID)
			delete(s.byUsername, cp.Username)
		})
		return nil
	}})
	return nil
}
