package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/renovo/internal/store/core"
	"github.com/dropDatabas3/renovo/internal/store/memory"
)

func mkToken(owner, cred, secret string, exp time.Time) *core.RotationToken {
	return &core.RotationToken{
		OwnerID:      owner,
		CredentialID: cred,
		Secret:       secret,
		ExpiresAt:    exp,
	}
}

func mustInsert(t *testing.T, s *memory.Store, tok *core.RotationToken) {
	t.Helper()
	uow := s.NewUnitOfWork()
	if err := uow.Tokens().Insert(context.Background(), tok); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := uow.SaveChanges(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func TestInsertAndGetBySecret(t *testing.T) {
	s := memory.New()
	tok := mkToken("owner-1", "cred-1", "secret-1", time.Now().Add(time.Hour))
	mustInsert(t, s, tok)

	uow := s.NewUnitOfWork()
	got, err := uow.Tokens().GetBySecret(context.Background(), "secret-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != tok.ID || got.OwnerID != "owner-1" || got.CredentialID != "cred-1" {
		t.Fatalf("mismatch: %+v", got)
	}
	if got.ID == "" {
		t.Fatal("stamping did not assign an ID")
	}

	if _, err := uow.Tokens().GetBySecret(context.Background(), "no-such"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestInsert_DuplicateSecret(t *testing.T) {
	s := memory.New()
	mustInsert(t, s, mkToken("owner-1", "cred-1", "dup", time.Now().Add(time.Hour)))

	uow := s.NewUnitOfWork()
	_ = uow.Tokens().Insert(context.Background(), mkToken("owner-2", "cred-2", "dup", time.Now().Add(time.Hour)))
	if _, err := uow.SaveChanges(context.Background()); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestMarkUsed_IdempotentMonotonic(t *testing.T) {
	s := memory.New()
	tok := mkToken("owner-1", "cred-1", "s1", time.Now().Add(time.Hour))
	mustInsert(t, s, tok)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		uow := s.NewUnitOfWork()
		if err := uow.Tokens().MarkUsed(ctx, tok.ID); err != nil {
			t.Fatalf("mark used: %v", err)
		}
		if _, err := uow.SaveChanges(ctx); err != nil {
			t.Fatalf("save (round %d): %v", i, err)
		}
	}

	uow := s.NewUnitOfWork()
	got, err := uow.Tokens().GetBySecret(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Used {
		t.Fatal("used flag not set")
	}
}

func TestMarkUsed_UnknownID(t *testing.T) {
	s := memory.New()
	uow := s.NewUnitOfWork()
	_ = uow.Tokens().MarkUsed(context.Background(), "nope")
	if _, err := uow.SaveChanges(context.Background()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRollback_UndoesInsertAndFlags(t *testing.T) {
	s := memory.New()
	tok := mkToken("owner-1", "cred-1", "persisted", time.Now().Add(time.Hour))
	mustInsert(t, s, tok)

	ctx := context.Background()
	uow := s.NewUnitOfWork()
	if err := uow.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	_ = uow.Tokens().Insert(ctx, mkToken("owner-1", "cred-2", "transient", time.Now().Add(time.Hour)))
	_ = uow.Tokens().MarkUsed(ctx, tok.ID)
	if _, err := uow.SaveChanges(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := uow.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	check := s.NewUnitOfWork()
	if _, err := check.Tokens().GetBySecret(ctx, "transient"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("insert survived rollback: %v", err)
	}
	got, err := check.Tokens().GetBySecret(ctx, "persisted")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Used {
		t.Fatal("used flag survived rollback")
	}
}

func TestSweepExpiredOrUsed_ExactSet(t *testing.T) {
	s := memory.New()
	now := time.Now().UTC()

	expired := mkToken("owner-1", "c1", "expired", now.Add(-time.Minute))
	used := mkToken("owner-1", "c2", "used", now.Add(time.Hour))
	active := mkToken("owner-1", "c3", "active", now.Add(time.Hour))
	for _, tok := range []*core.RotationToken{expired, used, active} {
		mustInsert(t, s, tok)
	}

	ctx := context.Background()
	{
		uow := s.NewUnitOfWork()
		_ = uow.Tokens().MarkUsed(ctx, used.ID)
		if _, err := uow.SaveChanges(ctx); err != nil {
			t.Fatalf("mark used: %v", err)
		}
	}

	uow := s.NewUnitOfWork()
	n, err := uow.Tokens().SweepExpiredOrUsed(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 2 {
		t.Fatalf("swept %d, want 2", n)
	}

	check := s.NewUnitOfWork()
	if _, err := check.Tokens().GetBySecret(ctx, "active"); err != nil {
		t.Fatalf("active token swept: %v", err)
	}
	for _, secret := range []string{"expired", "used"} {
		if _, err := check.Tokens().GetBySecret(ctx, secret); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("%s token survived sweep", secret)
		}
	}
}

func TestListActiveByOwner(t *testing.T) {
	s := memory.New()
	now := time.Now().UTC()

	activeTok := mkToken("owner-1", "c1", "a", now.Add(time.Hour))
	usedTok := mkToken("owner-1", "c2", "b", now.Add(time.Hour))
	revokedTok := mkToken("owner-1", "c3", "c", now.Add(time.Hour))
	expiredTok := mkToken("owner-1", "c4", "d", now.Add(-time.Hour))
	otherOwner := mkToken("owner-2", "c5", "e", now.Add(time.Hour))
	for _, tok := range []*core.RotationToken{activeTok, usedTok, revokedTok, expiredTok, otherOwner} {
		mustInsert(t, s, tok)
	}

	ctx := context.Background()
	{
		uow := s.NewUnitOfWork()
		_ = uow.Tokens().MarkUsed(ctx, usedTok.ID)
		_ = uow.Tokens().MarkRevoked(ctx, revokedTok.ID)
		if _, err := uow.SaveChanges(ctx); err != nil {
			t.Fatalf("flags: %v", err)
		}
	}

	uow := s.NewUnitOfWork()
	all, err := uow.Tokens().ListByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("ListByOwner: %d, want 4", len(all))
	}

	act, err := uow.Tokens().ListActiveByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(act) != 1 || act[0].ID != activeTok.ID {
		t.Fatalf("ListActiveByOwner: %+v", act)
	}
}

func TestAccounts_RoundTripAndConflict(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	a := &core.Account{Username: "ana", SecretHash: "h", DisplayName: "Ana"}
	uow := s.NewUnitOfWork()
	_ = uow.Accounts().Create(ctx, a)
	if _, err := uow.SaveChanges(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.NewUnitOfWork().Accounts().GetByUsername(ctx, "ana")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if got.ID != a.ID {
		t.Fatalf("id mismatch: %q vs %q", got.ID, a.ID)
	}
	if _, err := s.NewUnitOfWork().Accounts().GetByID(ctx, a.ID); err != nil {
		t.Fatalf("get by id: %v", err)
	}

	dup := &core.Account{Username: "ana", SecretHash: "h2"}
	uow2 := s.NewUnitOfWork()
	_ = uow2.Accounts().Create(ctx, dup)
	if _, err := uow2.SaveChanges(ctx); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}
