package queries

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	value any
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	switch d := dest[0].(type) {
	case *int64:
		*d = r.value.(int64)
	case *bool:
		*d = r.value.(bool)
	}
	return nil
}

type fakeQuerier struct {
	row      fakeRow
	execErrs map[int]error
	queries  []string
	args     [][]any
	execs    []string
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.queries = append(q.queries, sql)
	q.args = append(q.args, args)
	return q.row
}

func (q *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.execs = append(q.execs, sql)
	if err := q.execErrs[len(q.execs)-1]; err != nil {
		return pgconn.CommandTag{}, err
	}
	return pgconn.NewCommandTag("OK"), nil
}

func TestCountVisibleTables(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{value: int64(212)}}

	n, err := CountVisibleTables(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(212), n)
	assert.Equal(t, []string{"SELECT count(*) FROM information_schema.tables"}, q.queries)
}

func TestCountVisibleTables_Error(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: errors.New("permission denied for schema")}}

	_, err := CountVisibleTables(context.Background(), q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count tables: permission denied")
}

func TestTableExists(t *testing.T) {
	for _, want := range []bool{true, false} {
		q := &fakeQuerier{row: fakeRow{value: want}}

		got, err := TableExists(context.Background(), q, "test_table")
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, []any{"test_table"}, q.args[0])
	}
}

func TestCreateIAMUser(t *testing.T) {
	q := &fakeQuerier{}

	require.NoError(t, CreateIAMUser(context.Background(), q, "test_user"))
	assert.Equal(t, []string{
		`CREATE USER "test_user" WITH LOGIN`,
		`GRANT rds_iam TO "test_user"`,
	}, q.execs)
}

func TestCreateIAMUser_QuotesIdentifier(t *testing.T) {
	q := &fakeQuerier{}

	require.NoError(t, CreateIAMUser(context.Background(), q, `bad"; DROP TABLE x; --`))
	assert.Equal(t, `CREATE USER "bad""; DROP TABLE x; --" WITH LOGIN`, q.execs[0])
}

func TestCreateIAMUser_StopsAfterCreateFailure(t *testing.T) {
	q := &fakeQuerier{execErrs: map[int]error{0: errors.New(`role "test_user" already exists`)}}

	err := CreateIAMUser(context.Background(), q, "test_user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create user test_user")
	assert.Len(t, q.execs, 1)
}

func TestCreateIAMUser_GrantFailure(t *testing.T) {
	q := &fakeQuerier{execErrs: map[int]error{1: errors.New(`role "rds_iam" does not exist`)}}

	err := CreateIAMUser(context.Background(), q, "test_user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grant rds_iam to test_user")
}
