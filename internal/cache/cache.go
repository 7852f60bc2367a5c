// Package cache abstrae un cache de bytes con TTL.
// Backends: memory (in-process) y redis (distribuido).
package cache

import "time"

// Cache es la interfaz mínima que consume el core.
type Cache interface {
	Get(k string) ([]byte, bool)
	Set(k string, v []byte, ttl time.Duration)
	Delete(k string)
}
