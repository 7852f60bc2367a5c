package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testKey = "0123456789abcdef0123456789abcdef"

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return p
}

func TestLoad_DefaultsAndKey(t *testing.T) {
	t.Setenv("RENOVO_JWT_KEY", testKey)

	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Storage.Driver != "memory" || c.Cache.Kind != "memory" {
		t.Fatalf("defaults: driver=%q cache=%q", c.Storage.Driver, c.Cache.Kind)
	}
	if c.AccessTTL() != 10*time.Minute {
		t.Fatalf("access ttl default: %v", c.AccessTTL())
	}
	if c.RotationTTL() != 720*time.Hour {
		t.Fatalf("rotation ttl default: %v", c.RotationTTL())
	}
	if c.SweepInterval() != time.Hour {
		t.Fatalf("sweep interval default: %v", c.SweepInterval())
	}
}

func TestLoad_RejectsShortKey(t *testing.T) {
	t.Setenv("RENOVO_JWT_KEY", "short")
	if _, err := Load(""); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("want ErrConfiguration, got %v", err)
	}
}

func TestLoad_RejectsMissingKey(t *testing.T) {
	os.Unsetenv("RENOVO_JWT_KEY")
	if _, err := Load(""); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("want ErrConfiguration, got %v", err)
	}
}

func TestLoad_YAMLPlusEnvOverride(t *testing.T) {
	p := writeYAML(t, `
app:
  env: prod
server:
  addr: ":9000"
storage:
  driver: postgres
  dsn: postgres://localhost/renovo
jwt:
  access_ttl: 5m
`)
	t.Setenv("RENOVO_JWT_KEY", testKey)
	t.Setenv("RENOVO_SERVER_ADDR", ":9999") // env pisa al YAML

	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.App.Env != "prod" || c.Storage.Driver != "postgres" {
		t.Fatalf("yaml values: %+v", c)
	}
	if c.Server.Addr != ":9999" {
		t.Fatalf("env override lost: %q", c.Server.Addr)
	}
	if c.AccessTTL() != 5*time.Minute {
		t.Fatalf("access ttl: %v", c.AccessTTL())
	}
}

func TestLoad_KeyNeverFromYAML(t *testing.T) {
	// Un "key" en el YAML se ignora: la clave solo entra por env.
	p := writeYAML(t, `
jwt:
  key: "0123456789abcdef0123456789abcdef"
`)
	os.Unsetenv("RENOVO_JWT_KEY")
	if _, err := Load(p); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("yaml key accepted: %v", err)
	}
}

func TestValidate_BadDriverAndTTL(t *testing.T) {
	t.Setenv("RENOVO_JWT_KEY", testKey)

	t.Setenv("RENOVO_STORAGE_DRIVER", "oracle")
	if _, err := Load(""); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("bad driver accepted: %v", err)
	}
	t.Setenv("RENOVO_STORAGE_DRIVER", "memory")

	t.Setenv("RENOVO_JWT_ACCESS_TTL", "not-a-duration")
	if _, err := Load(""); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("bad ttl accepted: %v", err)
	}
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("RENOVO_JWT_KEY", testKey)
	t.Setenv("RENOVO_STORAGE_DRIVER", "postgres")
	if _, err := Load(""); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("postgres without dsn accepted: %v", err)
	}
}
