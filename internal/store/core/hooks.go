package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record lo implementa toda entidad que embebe Entity.
type Record interface {
	Base() *Entity
}

// Base retorna los campos comunes; hace que cualquier entidad que
// embebe Entity satisfaga Record.
func (e *Entity) Base() *Entity { return e }

// Validatable lo implementan las entidades con validación propia.
type Validatable interface {
	Validate() error
}

// ValidationHook corta el SaveChanges si alguna entidad staged es inválida.
// Solo valida inserts: los updates viajan con la clave y el delta (flag
// flip), no como entidades completas re-hidratadas.
func ValidationHook(_ context.Context, ch *Change, _ string) error {
	if ch.Op != OpInsert {
		return nil
	}
	v, ok := ch.Entity.(Validatable)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("entity validation: %w", err)
	}
	return nil
}

// StampHook fija los campos derivados/auditables antes del flush:
// surrogate key, timestamp de creación y defaults del registro.
// Corre después de la validación y antes de cualquier escritura durable.
func StampHook(_ context.Context, ch *Change, actor string) error {
	r, ok := ch.Entity.(Record)
	if !ok {
		return nil
	}
	e := r.Base()
	if ch.Op == OpInsert {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		if e.CreatedBy == "" {
			e.CreatedBy = actor
		}
		e.IsActive = true
	}
	return nil
}

// DefaultHooks es el pipeline estándar: validación y luego stamping.
func DefaultHooks() []Hook {
	return []Hook{ValidationHook, StampHook}
}
