package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// MinKeyBytes es el piso de la clave de firma HS256: 256 bits.
// Se rechaza en el arranque, no por llamada.
const MinKeyBytes = 32

var (
	// ErrWeakKey: la clave de firma no llega al mínimo requerido.
	ErrWeakKey = errors.New("jwt: signing key shorter than 32 bytes")
)

// Issuer firma credenciales de acceso de corta vida con clave simétrica.
// Es puro: función de los inputs y de la clave de proceso (read-only
// después del arranque).
type Issuer struct {
	key       []byte
	accessTTL time.Duration
}

// NewIssuer valida la fuerza de la clave y arma el issuer.
func NewIssuer(key []byte, accessTTL time.Duration) (*Issuer, error) {
	if len(key) < MinKeyBytes {
		return nil, ErrWeakKey
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &Issuer{key: key, accessTTL: accessTTL}, nil
}

// AccessTTL expone el TTL configurado.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// Issue emite una credencial firmada con los claims de identidad y el
// credentialID (jti) que la liga a su rotation token. exp = now + TTL.
func (i *Issuer) Issue(sub, displayName, role, credentialID string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.accessTTL)

	claims := jwtv5.MapClaims{
		"sub":  sub,
		"name": displayName,
		"role": role,
		"jti":  credentialID,
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"exp":  exp.Unix(),
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
