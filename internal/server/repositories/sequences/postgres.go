package sequences

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Next performs the increment and the read in one statement, so concurrent
// callers serialize on the counter row and never observe the same value.
// An unknown name yields common.ErrSequenceUnavailable.
func (r *PostgresRepository) Next(ctx context.Context, name string) (int64, error) {
	query :=
		`UPDATE sequences SET value = value + 1
		 WHERE name = $1
		 RETURNING value
		 `

	var value int64
	err := r.db.QueryRowContext(ctx, query, name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", common.ErrSequenceUnavailable, name)
		}
		return 0, fmt.Errorf("%w: %s: %w", common.ErrSequenceUnavailable, name, err)
	}

	return value, nil
}
