package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed: el token no es estructuralmente un JWT válido.
	ErrMalformed = errors.New("jwt: malformed credential")
	// ErrSignatureInvalid: firma inválida o algoritmo distinto al esperado.
	ErrSignatureInvalid = errors.New("jwt: signature invalid")
	// ErrExpired: firma válida pero credencial vencida (y el caller no
	// pidió AllowExpired).
	ErrExpired = errors.New("jwt: credential expired")
)

// Claims son los claims de identidad embebidos en una credencial.
type Claims struct {
	Subject      string // identidad (sub)
	DisplayName  string // name
	Role         string // role
	CredentialID string // jti: liga la credencial a su rotation token
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// ParseOptions controla la validación al parsear.
type ParseOptions struct {
	// AllowExpired acepta credenciales vencidas. Solo lo usa el camino
	// de rotación, que necesita leer claims de una credencial expirada
	// (expirar es el disparador normal de la rotación).
	AllowExpired bool
}

// Parse verifica firma y estructura y devuelve los claims.
// El método de firma tiene que ser exactamente HS256: defensa contra
// sustitución de algoritmo.
func (i *Issuer) Parse(token string, opts ParseOptions) (*Claims, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok || t.Method.Alg() != jwtv5.SigningMethodHS256.Alg() {
			return nil, ErrSignatureInvalid
		}
		return i.key, nil
	}

	tok, err := jwtv5.Parse(token, keyfunc, jwtv5.WithValidMethods([]string{"HS256"}))
	if err != nil {
		switch {
		case errors.Is(err, jwtv5.ErrTokenMalformed):
			return nil, ErrMalformed
		case errors.Is(err, jwtv5.ErrTokenExpired) && opts.AllowExpired:
			// La firma ya se verificó (se chequea antes que los claims);
			// seguimos con el token vencido.
		case errors.Is(err, jwtv5.ErrTokenExpired):
			return nil, ErrExpired
		default:
			return nil, ErrSignatureInvalid
		}
	}

	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrMalformed
	}

	out := &Claims{}
	out.Subject, _ = mc["sub"].(string)
	out.DisplayName, _ = mc["name"].(string)
	out.Role, _ = mc["role"].(string)
	out.CredentialID, _ = mc["jti"].(string)
	if v, ok := mc["iat"].(float64); ok {
		out.IssuedAt = time.Unix(int64(v), 0).UTC()
	}
	if v, ok := mc["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(v), 0).UTC()
	}
	return out, nil
}
