package tokens

import (
	"crypto/rand"
	"encoding/base64"
)

// SecretBytes son los bytes crudos de cada secreto de rotación.
// 32 bytes → 43 caracteres base64url (alfabeto de 64 símbolos), bien
// por encima del piso de 23 caracteres / 128 bits. Constante de
// seguridad, no de estilo: no bajar sin revisar el análisis de entropía.
const SecretBytes = 32

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin
// padding) a partir de una fuente criptográfica. Nunca usar un PRNG
// de propósito general acá.
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateRotationSecret genera un secreto de rotación con el tamaño
// estándar del sistema.
func GenerateRotationSecret() (string, error) {
	return GenerateOpaqueToken(SecretBytes)
}
