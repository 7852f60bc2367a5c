package audit

import (
	"context"

	"github.com/dropDatabas3/renovo/internal/observability/logger"
	"go.uber.org/zap"
)

// Eventos del ciclo de vida de credenciales. El sink es el logger
// estructurado; a futuro puede cablearse a DB o a un sink externo.
const (
	EventPairIssued   = "credential.pair_issued"
	EventPairRotated  = "credential.pair_rotated"
	EventTokenRevoked = "credential.token_revoked"
	EventOwnerRevoked = "credential.owner_revoked"
	EventSweep        = "credential.sweep"
)

// Log escribe un evento de auditoría estructurado.
func Log(ctx context.Context, event, actor string, fields ...zap.Field) {
	l := logger.From(ctx).Named("audit")
	fields = append(fields, zap.String("event", event))
	if actor != "" {
		fields = append(fields, zap.String("actor", actor))
	}
	l.Info(event, fields...)
}
