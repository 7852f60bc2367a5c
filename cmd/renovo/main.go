// renovo: servicio de ciclo de vida de credenciales (emisión, rotación,
// revocación y barrido). El wiring es explícito y vive acá: config →
// logger → store → cache → hasher → signer → service. Nada de registro
// mágico de componentes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/renovo/internal/cache"
	memcache "github.com/dropDatabas3/renovo/internal/cache/memory"
	redcache "github.com/dropDatabas3/renovo/internal/cache/redis"
	"github.com/dropDatabas3/renovo/internal/config"
	"github.com/dropDatabas3/renovo/internal/jwt"
	"github.com/dropDatabas3/renovo/internal/metrics"
	"github.com/dropDatabas3/renovo/internal/observability/logger"
	"github.com/dropDatabas3/renovo/internal/security/password"
	"github.com/dropDatabas3/renovo/internal/session"
	"github.com/dropDatabas3/renovo/internal/store/core"
	memstore "github.com/dropDatabas3/renovo/internal/store/memory"
	pgstore "github.com/dropDatabas3/renovo/internal/store/pg"
	migrations "github.com/dropDatabas3/renovo/migrations/postgres"
)

func main() {
	// .env es best-effort: en prod las vars vienen del entorno real.
	_ = godotenv.Load()

	var cfgPath string

	root := &cobra.Command{
		Use:   "renovo",
		Short: "Servicio de emisión y rotación de credenciales",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", envOr("RENOVO_CONFIG", ""), "Ruta al YAML de configuración (env RENOVO_CONFIG)")

	root.AddCommand(serveCmd(&cfgPath))
	root.AddCommand(sweepCmd(&cfgPath))
	root.AddCommand(migrateCmd(&cfgPath))
	root.AddCommand(hashCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levantar el servicio: surface de ops + sweeper periódico",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "renovo"})
			defer func() { _ = logger.Sync() }()
			log := logger.Named("main")

			if err := metrics.RegisterSession(nil); err != nil {
				return fmt.Errorf("register metrics: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			repo, err := buildRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			svc, err := buildService(cfg, repo)
			if err != nil {
				return err
			}
			sweeper := session.NewSweeper(svc, cfg.SweepInterval())

			r := chi.NewRouter()
			r.Use(middleware.Recoverer)
			r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})
			r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
				if err := repo.Ping(req.Context()); err != nil {
					http.Error(w, "store unavailable", http.StatusServiceUnavailable)
					return
				}
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ready"))
			})
			r.Handle("/metrics", promhttp.Handler())

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           r,
				ReadHeaderTimeout: 5 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("ops server listening", zap.String("addr", cfg.Server.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				if err := sweeper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shCtx)
			})

			if err := g.Wait(); err != nil {
				log.Error("shutdown with error", zap.Error(err))
				return err
			}
			log.Info("shutdown complete")
			return nil
		},
	}
}

func sweepCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Barrido one-shot de rotation tokens vencidos o usados",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "renovo"})
			defer func() { _ = logger.Sync() }()

			ctx := context.Background()
			repo, err := buildRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			svc, err := buildService(cfg, repo)
			if err != nil {
				return err
			}
			res := svc.Sweep(ctx)
			if res.Status != session.StatusSuccessful {
				return fmt.Errorf("sweep failed")
			}
			fmt.Printf("swept=%d\n", res.Swept)
			return nil
		},
	}
}

func migrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplicar el esquema embebido sobre postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("migrate requires the postgres driver (got %q)", cfg.Storage.Driver)
			}

			ctx := context.Background()
			conn, err := pgx.Connect(ctx, cfg.Storage.DSN)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer func() { _ = conn.Close(ctx) }()

			names, err := migrationNames()
			if err != nil {
				return err
			}
			for _, name := range names {
				b, err := fs.ReadFile(migrations.FS, name)
				if err != nil {
					return err
				}
				if _, err := conn.Exec(ctx, string(b)); err != nil {
					return fmt.Errorf("apply %s: %w", name, err)
				}
				fmt.Printf("applied %s\n", name)
			}
			return nil
		},
	}
}

func hashCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <secret>",
		Short: "Hashear un secreto con el hasher configurado (para seed de cuentas)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			h := buildHasher(cfg)
			hash, salt, err := h.Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("hash=%s\n", hash)
			if salt != "" {
				fmt.Printf("salt=%s\n", salt)
			}
			return nil
		},
	}
}

// ---- Wiring ----

func buildRepository(ctx context.Context, cfg *config.Config) (core.Repository, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return pgstore.New(ctx, cfg.Storage.DSN, pgstore.Config{
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
	case "memory":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func buildCache(cfg *config.Config) cache.Cache {
	switch cfg.Cache.Kind {
	case "redis":
		return redcache.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix)
	case "memory":
		return memcache.New(cfg.CacheMemoryTTL(), cfg.Cache.Memory.Prefix)
	default: // off
		return nil
	}
}

func buildHasher(cfg *config.Config) password.Hasher {
	if cfg.Security.Hasher == "sha256stamp" {
		return password.NewSHA256Stamp(cfg.Security.Pepper)
	}
	return password.NewArgon2id()
}

func buildService(cfg *config.Config, repo core.Repository) (*session.Service, error) {
	issuer, err := jwt.NewIssuer([]byte(cfg.JWT.Key), cfg.AccessTTL())
	if err != nil {
		return nil, err
	}
	return session.NewService(session.Deps{
		Repo:        repo,
		Issuer:      issuer,
		Hasher:      buildHasher(cfg),
		Cache:       buildCache(cfg),
		RotationTTL: cfg.RotationTTL(),
	}), nil
}

func migrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
