// Package memory implementa cache.Cache en proceso sobre go-cache.
// Mismo contrato que el backend redis: TTL por entrada y prefijo de
// namespace, para poder intercambiarlos por configuración.
package memory

import (
	"time"

	"github.com/dropDatabas3/renovo/internal/cache"
	gocache "github.com/patrickmn/go-cache"
)

type Mem struct {
	c      *gocache.Cache
	prefix string
}

// New arma el cache con el TTL default para Set sin TTL explícito.
// La limpieza de vencidos corre cada minuto.
func New(defaultTTL time.Duration, prefix string) cache.Cache {
	return &Mem{c: gocache.New(defaultTTL, time.Minute), prefix: prefix}
}

func (m *Mem) key(k string) string { return m.prefix + k }

func (m *Mem) Get(k string) ([]byte, bool) {
	v, ok := m.c.Get(m.key(k))
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (m *Mem) Set(k string, v []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(m.key(k), v, ttl)
}

func (m *Mem) Delete(k string) { m.c.Delete(m.key(k)) }
