package session

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/renovo/internal/jwt"
	"github.com/dropDatabas3/renovo/internal/metrics"
	"github.com/dropDatabas3/renovo/internal/observability/logger"
	"github.com/dropDatabas3/renovo/internal/store/core"
)

// Verifier adjudica cada intento de rotación. Los resultados salen como
// códigos opacos: a propósito no se diferencia replay, revocación,
// binding roto o secreto inexistente (todos InvalidToken).
//
// Precedencia de estados del token: Active → Expired → Used → Revoked.
type Verifier struct {
	issuer *jwt.Issuer
}

func NewVerifier(issuer *jwt.Issuer) *Verifier {
	return &Verifier{issuer: issuer}
}

// Verify corre la máquina de estados sobre el par presentado. Las
// lecturas y la marca used=true van por el unit of work del caller:
// la mutación queda staged en la misma transacción que el resto de la
// rotación. Retorna error solo ante fallas de store (el caller las
// convierte en Failed).
func (v *Verifier) Verify(ctx context.Context, uow core.UnitOfWork, accessToken, rotationSecret string) (Status, *core.RotationToken, error) {
	start := time.Now()
	defer func() {
		metrics.VerifyDuration.Observe(float64(time.Since(start).Milliseconds()))
	}()
	log := logger.From(ctx).With(logger.Component("session.verifier"))

	// 1) Parsear la credencial SIN exigir vigencia: que esté vencida es
	// el disparador normal de la rotación. Firma/algoritmo inválidos sí
	// cortan acá.
	claims, err := v.issuer.Parse(accessToken, jwt.ParseOptions{AllowExpired: true})
	if err != nil {
		log.Debug("credential rejected", logger.Err(err))
		return StatusInvalidToken, nil, nil
	}

	rec, err := uow.Tokens().GetBySecret(ctx, rotationSecret)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return StatusFailed, nil, err
	}

	now := time.Now().UTC()

	// 2) Credencial todavía vigente y registro no revocado → el caller
	// ya tiene una sesión viva; rotar no hace falta y no es un error.
	//
	// Este early-exit corre antes de confirmar que el registro exista:
	// contrato observable del sistema original (dos rotaciones en
	// carrera con una credencial aún válida reciben RefreshNotRequired,
	// no InvalidToken). No autoriza nada: por este camino no se emite
	// ningún par.
	if claims.ExpiresAt.After(now) && (rec == nil || !rec.Revoked) {
		return StatusRefreshNotRequired, nil, nil
	}

	// 3) Secreto inexistente.
	if rec == nil {
		return StatusInvalidToken, nil, nil
	}

	// 4) Replay: un rotation token consumido no se reutiliza jamás,
	// sin importar la credencial que lo acompañe.
	if rec.Used {
		log.Warn("rotation replay attempt", logger.TokenID(rec.ID), logger.OwnerID(rec.OwnerID))
		return StatusInvalidToken, nil, nil
	}

	// 5) Revocado explícitamente.
	if rec.Revoked {
		return StatusInvalidToken, nil, nil
	}

	// 6) Binding: el jti de la credencial tiene que ser el credentialId
	// del registro. Evita mezclar un secreto con una credencial ajena.
	if claims.CredentialID == "" || claims.CredentialID != rec.CredentialID {
		return StatusInvalidToken, nil, nil
	}

	// 7) Token de rotación vencido: acá sí se distingue, porque el
	// caller necesita saber que corresponde re-autenticar, no rotar.
	if rec.ExpiresAt.Before(now) {
		return StatusExpiredToken, nil, nil
	}

	// 8) Consumir: used false→true, staged en la transacción en curso.
	if err := uow.Tokens().MarkUsed(ctx, rec.ID); err != nil {
		return StatusFailed, nil, err
	}
	return StatusSuccessful, rec, nil
}
