// Package repomanager vends repositories bound to a DB handle (pool or
// transaction) and runs the schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/docsync/internal/dbx"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/documents"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/sales"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/sequences"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Sequences(db dbx.DBTX) sequences.Repository
	Documents(db dbx.DBTX) documents.Repository
	Sales(db dbx.DBTX) sales.Repository
}
