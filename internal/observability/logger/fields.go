package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar del dominio. Mantener los nombres estables: dashboards
// y alertas filtran por estas keys.

// OwnerID crea un campo para la identidad dueña de un token.
func OwnerID(v string) zap.Field {
	return zap.String("owner_id", v)
}

// CredentialID crea un campo para el jti que liga el par credencial/token.
func CredentialID(v string) zap.Field {
	return zap.String("credential_id", v)
}

// TokenID crea un campo para el surrogate key de un rotation token.
func TokenID(v string) zap.Field {
	return zap.String("token_id", v)
}

// Username crea un campo para el username (cuidado en prod).
func Username(v string) zap.Field {
	return zap.String("username", v)
}

// Outcome crea un campo para el resultado de una verificación/rotación.
func Outcome(v string) zap.Field {
	return zap.String("outcome", v)
}

// Component crea un campo para el componente que origina el log.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación en curso.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Swept crea un campo para la cantidad de filas barridas.
func Swept(v int64) zap.Field {
	return zap.Int64("swept", v)
}

// Duration crea un campo para la duración de una operación.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// Err crea un campo de error.
func Err(err error) zap.Field {
	return zap.Error(err)
}
