package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/renovo/internal/store/core"
)

type fakeTx struct {
	commitErr error
	commits   int
	rollbacks int
}

func (t *fakeTx) Commit(context.Context) error   { t.commits++; return t.commitErr }
func (t *fakeTx) Rollback(context.Context) error { t.rollbacks++; return nil }

func newCoordinator(tx *fakeTx, hooks []core.Hook) (*core.Coordinator, *int) {
	begins := 0
	c := core.NewCoordinator(func(context.Context) (core.Tx, error) {
		begins++
		return tx, nil
	}, hooks)
	return c, &begins
}

func noopChange() *core.Change {
	return &core.Change{Op: core.OpUpdate, Entity: struct{}{}, Apply: func(context.Context, core.Tx) error { return nil }}
}

func TestCoordinator_StateTransitions(t *testing.T) {
	tx := &fakeTx{}
	c, begins := newCoordinator(tx, nil)

	if c.State() != core.TxIdle {
		t.Fatalf("initial state: %v", c.State())
	}
	if err := c.Begin(context.Background()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if c.State() != core.TxInTransaction {
		t.Fatalf("after begin: %v", c.State())
	}

	// Begin con transacción abierta es no-op: una sola activa, sin anidar.
	if err := c.Begin(context.Background()); err != nil {
		t.Fatalf("re-begin: %v", err)
	}
	if *begins != 1 {
		t.Fatalf("beginFn called %d times, want 1", *begins)
	}

	if err := c.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if c.State() != core.TxCommitted || tx.commits != 1 {
		t.Fatalf("after commit: state=%v commits=%d", c.State(), tx.commits)
	}

	// Rollback después de commit es no-op.
	if err := c.Rollback(context.Background()); err != nil {
		t.Fatalf("rollback after commit: %v", err)
	}
	if tx.rollbacks != 0 {
		t.Fatalf("rollback reached the tx after commit")
	}
}

func TestSaveChanges_ImplicitTransaction(t *testing.T) {
	tx := &fakeTx{}
	c, _ := newCoordinator(tx, nil)

	applied := 0
	c.Stage(&core.Change{Op: core.OpUpdate, Entity: struct{}{}, Apply: func(context.Context, core.Tx) error {
		applied++
		return nil
	}})

	n, err := c.SaveChanges(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if n != 1 || applied != 1 {
		t.Fatalf("n=%d applied=%d", n, applied)
	}
	// Sin Begin previo, SaveChanges comitea su transacción implícita.
	if tx.commits != 1 || c.State() != core.TxCommitted {
		t.Fatalf("implicit commit missing: commits=%d state=%v", tx.commits, c.State())
	}
	if c.Pending() != 0 {
		t.Fatalf("pending not drained: %d", c.Pending())
	}
}

func TestSaveChanges_ExplicitTransactionDefersCommit(t *testing.T) {
	tx := &fakeTx{}
	c, _ := newCoordinator(tx, nil)

	if err := c.Begin(context.Background()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.Stage(noopChange())
	if _, err := c.SaveChanges(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Con Begin explícito, la durabilidad espera al Commit del caller.
	if tx.commits != 0 || c.State() != core.TxInTransaction {
		t.Fatalf("committed early: commits=%d state=%v", tx.commits, c.State())
	}
	if err := c.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if tx.commits != 1 {
		t.Fatalf("commits=%d", tx.commits)
	}
}

func TestSaveChanges_HookAbortsWithoutFlush(t *testing.T) {
	tx := &fakeTx{}
	boom := errors.New("hook rejected")
	c, begins := newCoordinator(tx, []core.Hook{
		func(context.Context, *core.Change, string) error { return boom },
	})

	applied := 0
	c.Stage(&core.Change{Op: core.OpInsert, Entity: struct{}{}, Apply: func(context.Context, core.Tx) error {
		applied++
		return nil
	}})

	_, err := c.SaveChanges(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("want hook error, got %v", err)
	}
	if applied != 0 {
		t.Fatal("change flushed despite hook abort")
	}
	if *begins != 0 {
		t.Fatal("transaction opened despite hook abort")
	}
}

func TestCommit_ErrorTriggersRollback(t *testing.T) {
	tx := &fakeTx{commitErr: errors.New("disk full")}
	c, _ := newCoordinator(tx, nil)

	if err := c.Begin(context.Background()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	err := c.Commit(context.Background())
	if err == nil {
		t.Fatal("commit error swallowed")
	}
	if c.State() != core.TxRolledBack {
		t.Fatalf("state after failed commit: %v", c.State())
	}
	if tx.rollbacks != 1 {
		t.Fatalf("rollbacks=%d, want 1", tx.rollbacks)
	}
}

func TestRollback_IdempotentAndClearsPending(t *testing.T) {
	tx := &fakeTx{}
	c, _ := newCoordinator(tx, nil)

	if err := c.Begin(context.Background()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.Stage(noopChange())

	if err := c.Rollback(context.Background()); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if c.State() != core.TxRolledBack || c.Pending() != 0 {
		t.Fatalf("state=%v pending=%d", c.State(), c.Pending())
	}
	// Segunda llamada: no-op, no vuelve a tocar la tx.
	if err := c.Rollback(context.Background()); err != nil {
		t.Fatalf("second rollback: %v", err)
	}
	if tx.rollbacks != 1 {
		t.Fatalf("rollbacks=%d, want 1", tx.rollbacks)
	}
}

func TestDefaultHooks_StampInsert(t *testing.T) {
	tx := &fakeTx{}
	c, _ := newCoordinator(tx, nil) // nil → DefaultHooks

	tok := &core.RotationToken{
		OwnerID:      "owner-1",
		CredentialID: "cred-1",
		Secret:       "s3cret",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	c.UseActor("owner-1")
	c.Stage(&core.Change{Op: core.OpInsert, Entity: tok, Apply: func(context.Context, core.Tx) error { return nil }})

	if _, err := c.SaveChanges(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if tok.ID == "" {
		t.Fatal("surrogate key not stamped")
	}
	if tok.CreatedAt.IsZero() {
		t.Fatal("created_at not stamped")
	}
	if tok.CreatedBy != "owner-1" {
		t.Fatalf("created_by=%q, want actor", tok.CreatedBy)
	}
	if !tok.IsActive {
		t.Fatal("is_active not set")
	}
}

// Los updates viajan con solo la clave y el flag a flipear: el pipeline
// no debe exigirles la validación de entidad completa, o todo
// MarkUsed/MarkRevoked abortaría el SaveChanges que acompaña una rotación.
func TestDefaultHooks_UpdateMarkerBypassesValidation(t *testing.T) {
	tx := &fakeTx{}
	c, _ := newCoordinator(tx, nil)

	applied := 0
	marker := &core.RotationToken{}
	marker.ID = "tok-1"
	c.Stage(&core.Change{Op: core.OpUpdate, Entity: marker, Apply: func(context.Context, core.Tx) error {
		applied++
		return nil
	}})

	n, err := c.SaveChanges(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if n != 1 || applied != 1 {
		t.Fatalf("n=%d applied=%d", n, applied)
	}
	// El marker no se stampea como insert: sin CreatedAt ni IsActive.
	if marker.CreatedBy != "" || marker.IsActive {
		t.Fatalf("update marker stamped as insert: %+v", marker.Entity)
	}
}

func TestDefaultHooks_ValidationRejectsInvalidEntity(t *testing.T) {
	tx := &fakeTx{}
	c, _ := newCoordinator(tx, nil)

	// Sin OwnerID: inválido por contrato de la entidad.
	bad := &core.RotationToken{CredentialID: "c", Secret: "s", ExpiresAt: time.Now().Add(time.Hour)}
	c.Stage(&core.Change{Op: core.OpInsert, Entity: bad, Apply: func(context.Context, core.Tx) error { return nil }})

	if _, err := c.SaveChanges(context.Background()); !errors.Is(err, core.ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
}
