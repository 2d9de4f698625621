package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"posledger/pkg/logger"
)

//go:embed schema/schema.sql
var schemaSQL string

// Schema returns the embedded DDL.
func Schema() string {
	return schemaSQL
}

// Migrate applies the embedded schema in one transaction.
// Statements are idempotent, so running it twice is harmless.
func Migrate(ctx context.Context, txManager *TxManager) error {
	err := txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := txManager.GetTx(ctx).Exec(ctx, schemaSQL)
		return err
	})
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	logger.Info(ctx, "schema applied")
	return nil
}
