package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/dbx"
	"github.com/dmitrijs2005/docsync/internal/server/models"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, doc *models.Document) error {
	query :=
		`INSERT INTO document_mng
		 (document_id, branch_no, upd_factory_id, file_name, publish_flg, update_date, update_user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 `

	_, err := r.db.ExecContext(ctx, query,
		doc.DocumentID, doc.BranchNo, doc.UpdFactoryID, doc.FileName, doc.Published, doc.UpdateDate, doc.UpdateUserID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: document %d/%d", common.ErrAlreadyExists, doc.DocumentID, doc.BranchNo)
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListByDocumentID(ctx context.Context, documentID int64) ([]*models.Document, error) {
	query :=
		`SELECT document_id, branch_no, upd_factory_id, file_name, publish_flg, update_date, update_user_id
		 FROM document_mng
		 WHERE document_id = $1
		 ORDER BY update_date DESC, document_id, branch_no
		 `

	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	docs := make([]*models.Document, 0)
	for rows.Next() {
		d := &models.Document{}
		if err := rows.Scan(&d.DocumentID, &d.BranchNo, &d.UpdFactoryID, &d.FileName, &d.Published, &d.UpdateDate, &d.UpdateUserID); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return docs, nil
}

func (r *PostgresRepository) UpdatePublishFlag(ctx context.Context, documentID int64, branchNos []int64, published bool, userID int64, at time.Time) (int64, error) {
	if len(branchNos) == 0 {
		return 0, nil
	}

	query := `UPDATE document_mng
		 SET publish_flg = $1, update_date = $2, update_user_id = $3
		 WHERE document_id = $4 AND branch_no IN ` + dbx.InList(5, len(branchNos))

	args := append([]any{published, at, userID, documentID}, int64Args(branchNos)...)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return res.RowsAffected()
}

func (r *PostgresRepository) DeleteBranches(ctx context.Context, documentID int64, branchNos []int64) (int64, error) {
	if len(branchNos) == 0 {
		return 0, nil
	}

	query := `DELETE FROM document_mng
		 WHERE document_id = $1 AND branch_no IN ` + dbx.InList(2, len(branchNos))

	args := append([]any{documentID}, int64Args(branchNos)...)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return res.RowsAffected()
}

func (r *PostgresRepository) CountFileReferences(ctx context.Context, documentID int64, fileName string, excludeBranches []int64) (int64, error) {
	query := `SELECT COUNT(*) FROM document_mng
		 WHERE document_id = $1 AND file_name = $2`
	args := []any{documentID, fileName}
	if len(excludeBranches) > 0 {
		query += ` AND branch_no NOT IN ` + dbx.InList(3, len(excludeBranches))
		args = append(args, int64Args(excludeBranches)...)
	}

	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}

func int64Args(vs []int64) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
