// Command seed fills the local user directory mirror with demo accounts and
// prints a bearer token for each, so the review API can be exercised without
// the user service.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/folio/internal/auth"
	"github.com/utafrali/folio/internal/config"
	"github.com/utafrali/folio/internal/domain"
	"github.com/utafrali/folio/migrations"
	"github.com/utafrali/folio/pkg/database"
	"github.com/utafrali/folio/pkg/logger"
)

const tokenTTL = 24 * time.Hour

var demoUsers = []domain.User{
	{ID: "5f0c3a52-6a0e-4c1b-9d2f-0a1b2c3d4e01", Name: "Ursula Author", Email: "author@folio.local", Role: domain.RoleAuthor},
	{ID: "5f0c3a52-6a0e-4c1b-9d2f-0a1b2c3d4e02", Name: "Rosa Reader", Email: "reader@folio.local", Role: domain.RoleCustomer},
	{ID: "5f0c3a52-6a0e-4c1b-9d2f-0a1b2c3d4e03", Name: "Tom Reader", Email: "", Role: domain.RoleCustomer},
	{ID: "5f0c3a52-6a0e-4c1b-9d2f-0a1b2c3d4e04", Name: "Ada Admin", Email: "admin@folio.local", Role: domain.RoleAdmin},
}

const upsertUserSQL = `
INSERT INTO users (id, name, email, role)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name, email = EXCLUDED.email, role = EXCLUDED.role`

func main() {
	if err := run(); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return fmt.Errorf("seed supports the %q store only, got %q", config.StoreDriverPostgres, cfg.StoreDriver)
	}

	log := logger.New("review-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if err := seedUsers(ctx, pool, demoUsers); err != nil {
		return err
	}
	log.Info("demo users seeded", slog.Int("count", len(demoUsers)))

	return printTokens(os.Stdout, auth.NewJWTManager(cfg.JWTSecret, tokenTTL), demoUsers)
}

// seedUsers upserts users in a single transaction.
func seedUsers(ctx context.Context, db database.DBTX, users []domain.User) error {
	return database.WithTx(ctx, db, func(tx pgx.Tx) error {
		for _, u := range users {
			if _, err := tx.Exec(ctx, upsertUserSQL, u.ID, u.Name, u.Email, u.Role); err != nil {
				return fmt.Errorf("upsert user %s: %w", u.ID, err)
			}
		}
		return nil
	})
}

func printTokens(w io.Writer, jwt *auth.JWTManager, users []domain.User) error {
	for _, u := range users {
		token, err := jwt.Generate(u.ID, u.Email, u.Role)
		if err != nil {
			return fmt.Errorf("generate token for %s: %w", u.ID, err)
		}
		fmt.Fprintf(w, "%-8s %-14s %s\n  Bearer %s\n", u.Role, u.Name, u.ID, token)
	}
	return nil
}
