package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/odyssey-erp/itasset/internal/platform/migrate"
	"github.com/odyssey-erp/itasset/migrations"
)

// Migrate applies pending schema migrations to dsn and reports the version.
func Migrate(ctx context.Context, dsn string, out io.Writer) error {
	db, err := migrate.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("migrate: ping: %w", err)
	}
	version, err := migrate.Up(db, migrations.FS)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "schema at version %d\n", version)
	return err
}
