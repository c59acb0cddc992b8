package invoke

import (
	"context"
	"fmt"

	"github.com/willibrandon/rdsprobe/internal/config"
	"github.com/willibrandon/rdsprobe/internal/db/queries"
)

// Operation is the single statement an invocation runs on its connection.
type Operation struct {
	Name string
	Run  func(ctx context.Context, q queries.Querier) (string, error)
}

// Smoke counts visible tables.
func Smoke() Operation {
	return Operation{
		Name: config.OperationSmoke,
		Run: func(ctx context.Context, q queries.Querier) (string, error) {
			n, err := queries.CountVisibleTables(ctx, q)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("ok: %d tables visible", n), nil
		},
	}
}

// HasTable checks for a table by name.
func HasTable(name string) Operation {
	return Operation{
		Name: config.OperationHasTable,
		Run: func(ctx context.Context, q queries.Querier) (string, error) {
			exists, err := queries.TableExists(ctx, q, name)
			if err != nil {
				return "", err
			}
			if exists {
				return fmt.Sprintf("table %s exists", name), nil
			}
			return fmt.Sprintf("table %s does not exist", name), nil
		},
	}
}

// CreateUser creates a login role that authenticates with IAM tokens.
func CreateUser(name string) Operation {
	return Operation{
		Name: config.OperationCreateUser,
		Run: func(ctx context.Context, q queries.Querier) (string, error) {
			if err := queries.CreateIAMUser(ctx, q, name); err != nil {
				return "", err
			}
			return fmt.Sprintf("user %s created", name), nil
		},
	}
}

// OperationFromConfig returns the operation named by the probe config.
func OperationFromConfig(cfg config.ProbeConfig) (Operation, error) {
	switch cfg.Operation {
	case config.OperationSmoke, "":
		return Smoke(), nil
	case config.OperationHasTable:
		return HasTable(cfg.TableName), nil
	case config.OperationCreateUser:
		return CreateUser(cfg.UserName), nil
	default:
		return Operation{}, fmt.Errorf("unknown operation %q", cfg.Operation)
	}
}
