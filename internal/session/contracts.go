// Package session implementa el core del ciclo de vida de credenciales:
// emisión del par (credencial de acceso, rotation token), la máquina de
// estados de rotación y la revocación/barrido.
//
// Contrato de errores: ningún error interno cruza la frontera pública.
// Todo error de store o de firma se loguea acá y sale como StatusFailed.
package session

import "time"

// Status es el código de resultado que ven los colaboradores inbound.
type Status int

const (
	StatusSuccessful Status = iota
	StatusFailed
	StatusIncorrectIdentity
	StatusInvalidToken
	StatusExpiredToken
	StatusRefreshNotRequired
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusSuccessful:
		return "successful"
	case StatusFailed:
		return "failed"
	case StatusIncorrectIdentity:
		return "incorrect_identity"
	case StatusInvalidToken:
		return "invalid_token"
	case StatusExpiredToken:
		return "expired_token"
	case StatusRefreshNotRequired:
		return "refresh_not_required"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// CredentialPair es el par emitido al caller. El caller es dueño del
// par en memoria; el store solo conoce el rotation token persistido.
type CredentialPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RotationSecret   string
	OwnerDisplayName string
}

// Result es Status + payload opcional.
type Result struct {
	Status Status
	Pair   *CredentialPair // solo en SignIn/Rotate exitosos
	Swept  int64           // solo en Sweep
}

func failed() Result { return Result{Status: StatusFailed} }
