package core

import (
	"context"
	"fmt"
)

// TxState es el estado del coordinador: Idle → InTransaction →
// (Committed | RolledBack) → Idle.
type TxState int

const (
	TxIdle TxState = iota
	TxInTransaction
	TxCommitted
	TxRolledBack
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxInTransaction:
		return "in_transaction"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// ChangeOp distingue el tipo de escritura staged.
type ChangeOp int

const (
	OpInsert ChangeOp = iota
	OpUpdate
)

// Change es una escritura pendiente dentro del unit of work.
// Apply la ejecuta contra la transacción del backend; se setea al stagear.
type Change struct {
	Op     ChangeOp
	Entity any
	Apply  func(ctx context.Context, tx Tx) error
}

// Hook corre sobre cada Change antes del flush (validación, stamping).
// Si retorna error, SaveChanges aborta sin flushear nada.
type Hook func(ctx context.Context, ch *Change, actor string) error

// UnitOfWork coordina una operación lógica multi-paso contra el store.
// Es el único camino a durabilidad para operaciones de varios pasos:
// "crear A y luego B" commitea entero o se deshace entero.
type UnitOfWork interface {
	// Begin abre la transacción. No-op si ya hay una abierta
	// (una sola transacción activa por operación lógica, sin anidar).
	Begin(ctx context.Context) error

	// Tokens y Accounts retornan repositorios ligados a esta transacción.
	Tokens() TokenRepository
	Accounts() AccountRepository

	// UseActor fija la identidad del actor para el stamping de auditoría.
	// Reemplaza al acceso ambiente por request: el actor viaja explícito.
	UseActor(id string)

	// SaveChanges corre el pipeline de hooks sobre lo staged y flushea.
	// Sin Begin previo, envuelve el flush en una transacción implícita
	// propia (commit inmediato). Retorna la cantidad de cambios aplicados.
	SaveChanges(ctx context.Context) (int, error)

	// Commit flushea la transacción y la libera. Cualquier error de
	// commit dispara Rollback automático antes de propagar.
	Commit(ctx context.Context) error

	// Rollback deshace la transacción. Idempotente.
	Rollback(ctx context.Context) error

	// State expone el estado actual del coordinador.
	State() TxState
}

// Coordinator implementa la disciplina transaccional común a todos los
// backends. Cada backend lo embebe y aporta beginFn + repos ligados.
type Coordinator struct {
	beginFn func(ctx context.Context) (Tx, error)
	hooks   []Hook
	actor   string
	tx      Tx
	state   TxState
	pending []*Change
}

// NewCoordinator arma un coordinador con el pipeline de hooks dado.
// Si hooks es nil usa DefaultHooks().
func NewCoordinator(beginFn func(ctx context.Context) (Tx, error), hooks []Hook) *Coordinator {
	if hooks == nil {
		hooks = DefaultHooks()
	}
	return &Coordinator{beginFn: beginFn, hooks: hooks}
}

func (c *Coordinator) State() TxState { return c.state }

// CurrentTx expone la transacción activa (nil si no hay).
// Lo usan los repos del backend para lecturas dentro de la transacción.
func (c *Coordinator) CurrentTx() Tx { return c.tx }

func (c *Coordinator) UseActor(id string) { c.actor = id }

// Actor retorna el actor fijado (vacío si no se fijó).
func (c *Coordinator) Actor() string { return c.actor }

// Stage encola una escritura pendiente.
func (c *Coordinator) Stage(ch *Change) { c.pending = append(c.pending, ch) }

// Pending retorna la cantidad de cambios staged sin flushear.
func (c *Coordinator) Pending() int { return len(c.pending) }

func (c *Coordinator) Begin(ctx context.Context) error {
	if c.state == TxInTransaction {
		return nil
	}
	tx, err := c.beginFn(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	c.tx = tx
	c.state = TxInTransaction
	return nil
}

func (c *Coordinator) SaveChanges(ctx context.Context) (int, error) {
	// Hooks primero: si algo falla, nada se flushea.
	for _, ch := range c.pending {
		for _, h := range c.hooks {
			if err := h(ctx, ch, c.actor); err != nil {
				return 0, fmt.Errorf("save aborted by hook: %w", err)
			}
		}
	}

	implicit := c.state != TxInTransaction
	if implicit {
		if err := c.Begin(ctx); err != nil {
			return 0, err
		}
	}

	for _, ch := range c.pending {
		if err := ch.Apply(ctx, c.tx); err != nil {
			if implicit {
				_ = c.Rollback(ctx)
			}
			return 0, fmt.Errorf("flush: %w", err)
		}
	}
	n := len(c.pending)
	c.pending = nil

	if implicit {
		if err := c.Commit(ctx); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (c *Coordinator) Commit(ctx context.Context) error {
	if c.state != TxInTransaction {
		return nil
	}
	if err := c.tx.Commit(ctx); err != nil {
		_ = c.Rollback(ctx)
		return fmt.Errorf("commit: %w", err)
	}
	c.tx = nil
	c.state = TxCommitted
	return nil
}

func (c *Coordinator) Rollback(ctx context.Context) error {
	if c.state != TxInTransaction {
		return nil
	}
	err := c.tx.Rollback(ctx)
	c.tx = nil
	c.pending = nil
	c.state = TxRolledBack
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
