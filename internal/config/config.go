// Package config carga la configuración del servicio: YAML + overrides
// por variables de entorno. La clave de firma NUNCA viaja en el YAML:
// solo RENOVO_JWT_KEY (ver Load).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfiguration cubre toda config inválida detectada en el arranque.
var ErrConfiguration = errors.New("configuration error")

// MinSigningKeyBytes es el piso de la clave HS256. Tiene que coincidir
// con lo que exige el signer en su constructor.
const MinSigningKeyBytes = 32

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// off | memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
			Prefix     string `yaml:"prefix"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		Issuer      string `yaml:"issuer"`
		AccessTTL   string `yaml:"access_ttl"`
		RotationTTL string `yaml:"rotation_ttl"`
		// Key se llena solo desde RENOVO_JWT_KEY. Sin tag yaml a
		// propósito: un secreto en el YAML es un secreto en git.
		Key string `yaml:"-"`
	} `yaml:"jwt"`

	Sweep struct {
		Interval string `yaml:"interval"`
	} `yaml:"sweep"`

	Security struct {
		// argon2id | sha256stamp (compat con hashes legados)
		Hasher string `yaml:"hasher"`
		// Pepper del esquema sha256stamp. Irrelevante para argon2id.
		Pepper string `yaml:"pepper"`
	} `yaml:"security"`
}

// Load lee el YAML (path puede ser "" si todo viene por env), aplica
// defaults, pisa con env y valida. Falla rápido: un servicio con clave
// corta o TTL ilegible no debe arrancar.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrConfiguration, path, err)
		}
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "5m"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "renovo"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "10m"
	}
	if c.JWT.RotationTTL == "" {
		c.JWT.RotationTTL = "720h" // 30d
	}
	if c.Sweep.Interval == "" {
		c.Sweep.Interval = "1h"
	}
	if c.Security.Hasher == "" {
		c.Security.Hasher = "argon2id"
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno. Prefijo
// RENOVO_ para todo lo propio del servicio.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("RENOVO_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("RENOVO_SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("RENOVO_LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}

	// STORAGE
	if v, ok := getEnvStr("RENOVO_STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("RENOVO_STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("RENOVO_POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("RENOVO_POSTGRES_MAX_IDLE_CONNS"); ok {
		c.Storage.Postgres.MaxIdleConns = v
	}
	if v, ok := getEnvStr("RENOVO_POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("RENOVO_CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("RENOVO_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("RENOVO_REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("RENOVO_REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("RENOVO_CACHE_MEMORY_PREFIX"); ok {
		c.Cache.Memory.Prefix = v
	}

	// JWT
	if v, ok := getEnvStr("RENOVO_JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("RENOVO_JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("RENOVO_JWT_ROTATION_TTL"); ok {
		c.JWT.RotationTTL = v
	}
	// Clave de firma: env-only, sin fallback.
	if v, ok := getEnvStr("RENOVO_JWT_KEY"); ok {
		c.JWT.Key = v
	}

	// SWEEP
	if v, ok := getEnvStr("RENOVO_SWEEP_INTERVAL"); ok {
		c.Sweep.Interval = v
	}

	// SECURITY
	if v, ok := getEnvStr("RENOVO_HASHER"); ok {
		c.Security.Hasher = strings.ToLower(v)
	}
	if v, ok := getEnvStr("RENOVO_PEPPER"); ok {
		c.Security.Pepper = v
	}
}

// Validate chequea lo crítico. Todo error sale envuelto en
// ErrConfiguration para que main lo reporte como tal.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrConfiguration, c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		return fmt.Errorf("%w: storage.dsn is required for the postgres driver", ErrConfiguration)
	}

	switch c.Cache.Kind {
	case "off", "memory", "redis":
	default:
		return fmt.Errorf("%w: unknown cache kind %q", ErrConfiguration, c.Cache.Kind)
	}
	if c.Cache.Kind == "redis" && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		return fmt.Errorf("%w: cache.redis.addr is required for the redis cache", ErrConfiguration)
	}

	if len(c.JWT.Key) < MinSigningKeyBytes {
		return fmt.Errorf("%w: RENOVO_JWT_KEY must be at least %d bytes (got %d)",
			ErrConfiguration, MinSigningKeyBytes, len(c.JWT.Key))
	}

	for name, s := range map[string]string{
		"jwt.access_ttl":                    c.JWT.AccessTTL,
		"jwt.rotation_ttl":                  c.JWT.RotationTTL,
		"sweep.interval":                    c.Sweep.Interval,
		"cache.memory.default_ttl":          c.Cache.Memory.DefaultTTL,
		"storage.postgres.conn_max_lifetime": c.Storage.Postgres.ConnMaxLifetime,
	} {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrConfiguration, name, err)
		}
	}

	switch c.Security.Hasher {
	case "argon2id", "sha256stamp":
	default:
		return fmt.Errorf("%w: unknown hasher %q", ErrConfiguration, c.Security.Hasher)
	}
	return nil
}

// AccessTTL retorna la duración parseada (Validate ya garantizó que parsea).
func (c *Config) AccessTTL() time.Duration { return mustDur(c.JWT.AccessTTL) }

// RotationTTL retorna la duración parseada del rotation token.
func (c *Config) RotationTTL() time.Duration { return mustDur(c.JWT.RotationTTL) }

// SweepInterval retorna el intervalo parseado del barrido.
func (c *Config) SweepInterval() time.Duration { return mustDur(c.Sweep.Interval) }

// CacheMemoryTTL retorna el TTL default del cache en memoria.
func (c *Config) CacheMemoryTTL() time.Duration { return mustDur(c.Cache.Memory.DefaultTTL) }

func mustDur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
