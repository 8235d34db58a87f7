package migrate

import (
	"context"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func expectLock(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("SELECT pg_advisory_lock").
		WithArgs(advisoryLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
}

func expectUnlock(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(advisoryLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
}

func TestMigrationFiles_Sorted(t *testing.T) {
	names, err := migrationFiles()
	require.NoError(t, err)
	require.Len(t, names, 4)
	assert.Equal(t, "001_disclosures.sql", names[0])
	assert.Equal(t, "004_sync_log.sql", names[3])
}

func TestRun_FreshDB(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	names, err := migrationFiles()
	require.NoError(t, err)

	expectLock(mock)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	for _, name := range names {
		mock.ExpectExec("CREATE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectExec("INSERT INTO schema_migrations").
			WithArgs(name).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	expectUnlock(mock)

	require.NoError(t, Run(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_SkipsApplied(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	names, err := migrationFiles()
	require.NoError(t, err)

	expectLock(mock)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	applied := pgxmock.NewRows([]string{"filename"})
	for _, name := range names[:3] {
		applied.AddRow(name)
	}
	mock.ExpectQuery("SELECT filename FROM schema_migrations").WillReturnRows(applied)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sync_log").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(names[3]).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectUnlock(mock)

	require.NoError(t, Run(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_ApplyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectLock(mock)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	mock.ExpectExec("CREATE").WillReturnError(fmt.Errorf("syntax error"))
	expectUnlock(mock)

	err = Run(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migration 001_disclosures.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_LockError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT pg_advisory_lock").
		WithArgs(advisoryLockID).
		WillReturnError(fmt.Errorf("timeout"))

	err = Run(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire advisory lock")
	assert.NoError(t, mock.ExpectationsWereMet())
}
