package core

import "time"

// Entity contiene los campos comunes de toda fila persistida.
// Se embebe por valor en cada entidad (sin herencia ni dispatch virtual).
type Entity struct {
	ID        string
	CreatedAt time.Time
	CreatedBy string // actor que originó la escritura (stamping de auditoría)
	IsActive  bool
	IsDeleted bool
}

// RotationToken es una fila por secreto de rotación emitido.
//
// Invariantes:
//   - Secret es único entre filas no borradas.
//   - Used y Revoked son monotónicos: nunca vuelven a false.
//   - ExpiresAt se fija al crear y no se muta.
type RotationToken struct {
	Entity
	OwnerID          string    // identidad dueña del token (FK por valor)
	CredentialID     string    // jti de la credencial emitida junto a este token
	Secret           string    // secreto opaco, único
	ExpiresAt        time.Time
	Used             bool // one-shot: false→true exactamente una vez
	Revoked          bool
	OwnerDisplayName string // desnormalizado para armar respuestas
}

// Account es el registro mínimo de identidad que necesita el core:
// lookup por username para sign-in y por ID para rotación.
type Account struct {
	Entity
	Username      string
	SecretHash    string
	SecurityStamp string // salt/stamp que acompaña al hash (esquemas legacy)
	DisplayName   string
	Role          string
}

// Validate implementa Validatable para el pipeline de hooks del unit of work.
func (t *RotationToken) Validate() error {
	if t.OwnerID == "" {
		return ErrInvalid
	}
	if t.CredentialID == "" || t.Secret == "" {
		return ErrInvalid
	}
	if t.ExpiresAt.IsZero() {
		return ErrInvalid
	}
	return nil
}

// Validate implementa Validatable.
func (a *Account) Validate() error {
	if a.Username == "" || a.SecretHash == "" {
		return ErrInvalid
	}
	return nil
}
