package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDB returns a GORM handle backed by sqlmock with regexp query
// matching. SkipDefaultTransaction matches the production Connect config.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

// fakeArtifacts records delete calls and can be told to fail.
type fakeArtifacts struct {
	deleted [][]string
	err     error
}

func (f *fakeArtifacts) Delete(ctx context.Context, keys ...string) error {
	f.deleted = append(f.deleted, keys)
	return f.err
}

func testLogger() zerolog.Logger { return zerolog.Nop() }
