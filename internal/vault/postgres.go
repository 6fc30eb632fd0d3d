package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBackend(ctx context.Context, dsn string) (*PostgresBackend, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	backend := &PostgresBackend{pool: pool}
	if err := backend.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return backend, nil
}

func (b *PostgresBackend) Name() string {
	return "postgres"
}

func (b *PostgresBackend) Close() {
	b.pool.Close()
}

func (b *PostgresBackend) Put(ctx context.Context, domain string, sealed map[string]string) error {
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM vault_credentials WHERE domain = $1`, domain); err != nil {
			return fmt.Errorf("clear domain credentials: %w", err)
		}
		now := time.Now().UTC()
		for label, ciphertext := range sealed {
			_, err := tx.Exec(ctx, `
INSERT INTO vault_credentials (domain, label, ciphertext, updated_at)
VALUES ($1, $2, $3, $4)
`, domain, label, ciphertext, now)
			if err != nil {
				return fmt.Errorf("insert credential %s: %w", label, err)
			}
		}
		return nil
	})
}

func (b *PostgresBackend) Fetch(ctx context.Context, domain string) (map[string]string, bool, error) {
	rows, err := b.pool.Query(ctx, `SELECT label, ciphertext FROM vault_credentials WHERE domain = $1`, domain)
	if err != nil {
		return nil, false, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var label, ciphertext string
		if err := rows.Scan(&label, &ciphertext); err != nil {
			return nil, false, fmt.Errorf("scan credential: %w", err)
		}
		out[label] = ciphertext
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate credentials: %w", err)
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out, true, nil
}

func (b *PostgresBackend) initSchema(ctx context.Context) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS vault_credentials (
	domain TEXT NOT NULL,
	label TEXT NOT NULL,
	ciphertext TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (domain, label)
);
`,
		`CREATE INDEX IF NOT EXISTS idx_vault_credentials_updated_at ON vault_credentials (updated_at DESC);`,
	}

	for _, stmt := range statements {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("initialize vault schema: %w", err)
		}
	}
	return nil
}
