package sales

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/dbx"
	"github.com/dmitrijs2005/docsync/internal/server/models"
)

type columnKind int

const (
	textColumn columnKind = iota
	intColumn
)

// editableColumns lists the sale_mng columns an edit may change.
var editableColumns = map[string]columnKind{
	"product_no": textColumn,
	"quantity":   intColumn,
	"remarks":    textColumn,
	"status":     intColumn,
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Sale) error {
	query :=
		`INSERT INTO sale_mng
		 (sale_id, document_id, product_no, quantity, remarks, status, factory_id, update_date, update_user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 `

	_, err := r.db.ExecContext(ctx, query,
		s.SaleID, s.DocumentID, s.ProductNo, s.Quantity, s.Remarks, s.Status, s.FactoryID, s.UpdateDate, s.UpdateUserID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Exists(ctx context.Context, saleID int64) (bool, error) {
	query := `SELECT 1 FROM sale_mng WHERE sale_id = $1`

	var one int
	err := r.db.QueryRowContext(ctx, query, saleID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}

	return true, nil
}

func (r *PostgresRepository) Update(ctx context.Context, saleID int64, fields map[string]any, userID int64, at time.Time) error {
	cols := make([]string, 0, len(fields))
	for c := range fields {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+2)
	args := make([]any, 0, len(cols)+3)
	for _, c := range cols {
		kind, ok := editableColumns[c]
		if !ok {
			return fmt.Errorf("%w: column %q is not editable", common.ErrInvalidRequest, c)
		}
		v, err := normalize(kind, fields[c])
		if err != nil {
			return fmt.Errorf("%w: column %q: %v", common.ErrInvalidRequest, c, err)
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", c, len(args)))
	}

	args = append(args, at)
	sets = append(sets, fmt.Sprintf("update_date = $%d", len(args)))
	args = append(args, userID)
	sets = append(sets, fmt.Sprintf("update_user_id = $%d", len(args)))
	args = append(args, saleID)

	query := fmt.Sprintf(`UPDATE sale_mng SET %s WHERE sale_id = $%d`, strings.Join(sets, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

// ValidateFields checks fields against the editable columns without
// touching the database.
func ValidateFields(fields map[string]any) error {
	for c, v := range fields {
		kind, ok := editableColumns[c]
		if !ok {
			return fmt.Errorf("%w: column %q is not editable", common.ErrInvalidRequest, c)
		}
		if _, err := normalize(kind, v); err != nil {
			return fmt.Errorf("%w: column %q: %v", common.ErrInvalidRequest, c, err)
		}
	}
	return nil
}

// normalize converts decoded JSON values into the column's Go type.
func normalize(kind columnKind, v any) (any, error) {
	switch kind {
	case textColumn:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}
		return s, nil
	case intColumn:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("want integer, got %v", n)
			}
			return int64(n), nil
		}
		return nil, fmt.Errorf("want integer, got %T", v)
	}
	return nil, fmt.Errorf("unsupported column kind %d", kind)
}
