package database

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/training-portal/internal/config"
)

func TestStatements(t *testing.T) {
	stmts := Statements()
	require.Len(t, stmts, 4)
	for _, table := range []string{"users", "admin_credentials", "refresh_tokens", "temporary_passwords"} {
		found := false
		for _, s := range stmts {
			if strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS "+table+" ") {
				found = true
			}
			assert.NotContains(t, s, "--")
		}
		assert.True(t, found, "missing table %s", table)
	}
}

func TestSplitStatements_IgnoresSemicolonsInComments(t *testing.T) {
	src := "-- owned elsewhere; created here for tests\nCREATE TABLE a (id INT);\n\n  -- second; comment\nCREATE TABLE b (id INT);\n"
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, splitStatements(src))
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for range Statements() {
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS")).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_StopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS admin_credentials").WillReturnError(errors.New("denied"))

	err = Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema statement 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.Config{DBUser: "portal", DBPass: "pw", DBHost: "db", DBPort: "3306", DBName: "portal"})
	assert.True(t, strings.HasPrefix(dsn, "portal:pw@tcp(db:3306)/portal?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}
