package sequences

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/dbx/dbxtest"
)

const nextQuery = `(?s)^UPDATE\s+sequences\s+SET\s+value\s*=\s*value\s*\+\s*1\s+WHERE\s+name\s*=\s*\$1\s+RETURNING\s+value\s*$`

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestNext_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(nextQuery).
		WithArgs("branch_no").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(101)))

	got, err := repo.Next(context.Background(), "branch_no")
	require.NoError(t, err)
	assert.Equal(t, int64(101), got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNext_UnknownName(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(nextQuery).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Next(context.Background(), "nope")
	require.ErrorIs(t, err, common.ErrSequenceUnavailable)
}

func TestNext_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	down := errors.New("db down")

	mock.ExpectQuery(nextQuery).
		WithArgs("sale_id").
		WillReturnError(down)

	_, err := repo.Next(context.Background(), "sale_id")
	require.ErrorIs(t, err, common.ErrSequenceUnavailable)
	require.ErrorIs(t, err, down)
}

func TestNext_SQLiteIsMonotonic(t *testing.T) {
	db := dbxtest.OpenWithSchema(t)
	repo := NewPostgresRepository(db)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := repo.Next(ctx, "branch_no")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := repo.Next(ctx, "sale_id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "counters are independent by name")
}
