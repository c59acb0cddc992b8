package queries

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool and by db.Pool.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CountVisibleTables returns the number of tables visible to the connected
// user. It is the smoke-test statement.
func CountVisibleTables(ctx context.Context, q Querier) (int64, error) {
	var count int64
	query := "SELECT count(*) FROM information_schema.tables"

	if err := q.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tables: %w", err)
	}
	return count, nil
}

// TableExists reports whether a table with the given name is visible in any
// schema on the search path.
func TableExists(ctx context.Context, q Querier, name string) (bool, error) {
	var exists bool
	query := `
SELECT EXISTS (
    SELECT 1
    FROM information_schema.tables
    WHERE table_name = $1
      AND table_schema = ANY (current_schemas(false))
)`

	if err := q.QueryRow(ctx, query, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return exists, nil
}

// CreateIAMUser creates a login role and grants it rds_iam so it can
// authenticate with issued tokens instead of a password.
func CreateIAMUser(ctx context.Context, q Querier, name string) error {
	ident := pgx.Identifier{name}.Sanitize()

	if _, err := q.Exec(ctx, "CREATE USER "+ident+" WITH LOGIN"); err != nil {
		return fmt.Errorf("create user %s: %w", name, err)
	}
	if _, err := q.Exec(ctx, "GRANT rds_iam TO "+ident); err != nil {
		return fmt.Errorf("grant rds_iam to %s: %w", name, err)
	}
	return nil
}
