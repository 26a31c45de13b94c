package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Schemas shipped with the binaries.
const (
	SchemaIAM     = "iam"
	SchemaCatalog = "catalog"
)

type schemaExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ApplySchema runs the idempotent DDL for the named schema.
func ApplySchema(ctx context.Context, db schemaExecer, name string, log *zap.Logger) error {
	ddl, err := schemaFS.ReadFile("schema/" + name + ".sql")
	if err != nil {
		return fmt.Errorf("read %s schema: %w", name, err)
	}

	if _, err := db.Exec(ctx, string(ddl)); err != nil {
		return fmt.Errorf("apply %s schema: %w", name, err)
	}

	log.Info("schema applied", zap.String("schema", name))
	return nil
}
