package store

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaDDL string

// EnsureSchema creates the ledger tables if they do not exist yet. Used by
// the seeder and integration tests; production deployments run migrations
// out of band.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("schema apply failed: %w", err)
	}
	return nil
}
