package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/paulexconde/camperportal/internal/config"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
)

//go:embed schema.sql
var schema string

// Connect opens the portal database and applies the schema. Every statement is
// idempotent, so this is safe on every start.
func Connect(ctx context.Context, cfg config.PostgresConfig, log *logger.Logger) (*sqlx.DB, error) {
	log.Info("connecting to postgres",
		"host", cfg.Host,
		"port", cfg.Port,
		"user", cfg.Username,
		"dbname", cfg.DBname,
		"password", cfg.Password,
	)

	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if err := ApplySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info("postgres ready", "dbname", cfg.DBname)
	return db, nil
}

// ApplySchema runs the embedded schema statement by statement.
func ApplySchema(ctx context.Context, db *sqlx.DB) error {
	for i, statement := range Statements() {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to execute schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// Statements splits the embedded schema into executable statements.
func Statements() []string {
	var out []string
	for _, statement := range strings.Split(schema, ";") {
		if statement = strings.TrimSpace(statement); statement != "" {
			out = append(out, statement)
		}
	}
	return out
}
