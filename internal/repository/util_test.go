package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/Alturino/storefront/internal/infra"
)

var migrations = []string{
	"20250110090000_create_table_products.up.sql",
	"20250110090100_create_table_carts.up.sql",
	"20250110090200_create_table_shipping_rates.up.sql",
	"20250110090300_create_table_quote_requests.up.sql",
	"20250110090400_seed_catalog.up.sql",
}

func setupStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	c := context.Background()

	scripts := make([]string, 0, len(migrations))
	for _, m := range migrations {
		scripts = append(scripts, filepath.Join("..", "..", "migrations", m))
	}

	pgContainer, err := postgres.Run(
		c,
		"postgres:16.6-alpine3.21",
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.WithDatabase("postgres"),
		postgres.BasicWaitStrategies(),
		postgres.WithInitScripts(scripts...),
	)
	if err != nil {
		t.Fatalf("failed running postgres container with error: %s", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Errorf("failed to terminate container: %s", err)
		}
	})

	pgConnStr, err := pgContainer.ConnectionString(c, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed getting postgres connection string with error: %s", err)
	}

	pgConfig, err := pgxpool.ParseConfig(pgConnStr)
	if err != nil {
		t.Fatalf("failed parsing pgx config with error: %s", err)
	}
	pgConfig.AfterConnect = infra.RegisterTypes

	pool, err := pgxpool.NewWithConfig(c, pgConfig)
	if err != nil {
		t.Fatalf("failed creating postgres pool with error: %s", err)
	}
	t.Cleanup(pool.Close)

	if err = pool.Ping(c); err != nil {
		t.Fatalf("failed ping postgres pool with error: %s", err)
	}

	return NewStore(pool), pool
}
