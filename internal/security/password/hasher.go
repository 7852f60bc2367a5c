// Package password provee el colaborador de hashing de secretos.
// El algoritmo es un primitivo intercambiable: el core solo conoce
// esta interfaz.
package password

// Hasher hashea y verifica secretos de identidad.
//
// El salt/stamp viaja al lado del hash porque los esquemas legacy lo
// guardan por separado; las implementaciones que lo embeben en el hash
// (argon2id/PHC) lo retornan vacío y lo ignoran al verificar.
type Hasher interface {
	Hash(plain string) (hash, salt string, err error)
	Verify(plain, storedHash, salt string) bool
}
