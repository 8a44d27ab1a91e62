package cmd

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	cmdopts "github.com/mozilla-ai/mcphub/internal/cmd/options"
	"github.com/mozilla-ai/mcphub/internal/config"
)

func databaseConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.URL = "postgres://localhost/mcphub"
	return cfg
}

func newTestMigrateCmd(t *testing.T, mock pgxmock.PgxPoolIface) *cobra.Command {
	t.Helper()

	opener := func(_ context.Context, url string, maxConns int32) (cmdopts.Database, error) {
		if url != "postgres://localhost/mcphub" || maxConns != 10 {
			return nil, errors.New("unexpected database settings")
		}
		return mock, nil
	}

	c, err := NewMigrateCmd(
		testBaseCmd(),
		cmdopts.WithConfigLoader(&fakeLoader{cfg: databaseConfig()}),
		cmdopts.WithDatabaseOpener(opener),
	)
	require.NoError(t, err)

	return c
}

func expectStatus(mock pgxmock.PgxPoolIface, dirty bool) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT to_regclass('schema_migrations')")).
		WillReturnRows(pgxmock.NewRows([]string{"tracked"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, dirty FROM schema_migrations")).
		WillReturnRows(pgxmock.NewRows([]string{"version", "dirty"}).AddRow(int64(1), dirty))
}

func TestMigrateCmd_List(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		args   []string
		expect func(mock pgxmock.PgxPoolIface)
		want   string
	}{
		{
			name: "text never migrated",
			args: []string{"list"},
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT to_regclass('schema_migrations')")).
					WillReturnRows(pgxmock.NewRows([]string{"tracked"}).AddRow(false))
			},
			want: "VERSION  STATE    NAME\n" +
				"1        pending  001_mcp_servers.up.sql\n" +
				"\n1 migration\n",
		},
		{
			name:   "text dirty",
			args:   []string{"list"},
			expect: func(mock pgxmock.PgxPoolIface) { expectStatus(mock, true) },
			want: "VERSION  STATE    NAME\n" +
				"1        dirty    001_mcp_servers.up.sql\n" +
				"\n1 migration\n",
		},
		{
			name:   "json applied",
			args:   []string{"list", "--format", "json"},
			expect: func(mock pgxmock.PgxPoolIface) { expectStatus(mock, false) },
			want: `{
  "results": [
    {
      "version": 1,
      "name": "001_mcp_servers.up.sql",
      "applied": true,
      "dirty": false
    }
  ]
}
`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			tc.expect(mock)

			out, err := execute(t, context.Background(), newTestMigrateCmd(t, mock), tc.args...)
			require.NoError(t, err)
			require.Equal(t, tc.want, out)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMigrateCmd_Up(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM schema_migrations")).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS mcp_servers")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schema_migrations SET dirty = false")).
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectStatus(mock, false)

	out, err := execute(t, context.Background(), newTestMigrateCmd(t, mock), "up")
	require.NoError(t, err)
	require.Contains(t, out, "1        applied  001_mcp_servers.up.sql\n")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateCmd_Errors(t *testing.T) {
	t.Parallel()

	t.Run("database url required", func(t *testing.T) {
		t.Parallel()

		c, err := NewMigrateCmd(testBaseCmd(), cmdopts.WithConfigLoader(&fakeLoader{}))
		require.NoError(t, err)

		_, err = execute(t, context.Background(), c, "list")
		require.ErrorIs(t, err, config.ErrInvalidValue)
	})

	t.Run("connect failure as json", func(t *testing.T) {
		t.Parallel()

		c, err := NewMigrateCmd(
			testBaseCmd(),
			cmdopts.WithConfigLoader(&fakeLoader{cfg: databaseConfig()}),
			cmdopts.WithDatabaseOpener(func(context.Context, string, int32) (cmdopts.Database, error) {
				return nil, errors.New("connection refused")
			}),
		)
		require.NoError(t, err)

		out, err := execute(t, context.Background(), c, "up", "--format", "json")
		require.NoError(t, err)
		require.JSONEq(t, `{"error":"failed to connect to database: connection refused"}`, out)
	})

	t.Run("migration failure", func(t *testing.T) {
		t.Parallel()

		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
			WillReturnError(errors.New("permission denied"))

		_, err = execute(t, context.Background(), newTestMigrateCmd(t, mock), "up")
		require.ErrorContains(t, err, "permission denied")
	})

	t.Run("invalid format", func(t *testing.T) {
		t.Parallel()

		c, err := NewMigrateCmd(testBaseCmd())
		require.NoError(t, err)

		_, err = execute(t, context.Background(), c, "list", "--format", "xml")
		require.ErrorContains(t, err, "invalid format 'xml'")
	})
}
