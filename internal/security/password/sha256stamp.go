package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// SHA256Stamp es el esquema legacy: sha256(plain || stamp || pepper),
// con el stamp (salt base64) guardado junto al hash. Existe para poder
// verificar cuentas migradas; las altas nuevas usan Argon2id.
type SHA256Stamp struct {
	Pepper string
}

func NewSHA256Stamp(pepper string) *SHA256Stamp {
	return &SHA256Stamp{Pepper: pepper}
}

func (s *SHA256Stamp) Hash(plain string) (string, string, error) {
	if plain == "" {
		return "", "", fmt.Errorf("empty secret")
	}
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	stamp := base64.StdEncoding.EncodeToString(raw)
	return s.digest(plain, stamp), stamp, nil
}

func (s *SHA256Stamp) Verify(plain, storedHash, stamp string) bool {
	got := s.digest(plain, stamp)
	return subtle.ConstantTimeCompare([]byte(got), []byte(storedHash)) == 1
}

func (s *SHA256Stamp) digest(plain, stamp string) string {
	sum := sha256.Sum256([]byte(plain + stamp + s.Pepper))
	return base64.StdEncoding.EncodeToString(sum[:])
}
