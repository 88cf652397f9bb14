package services

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/docsync/internal/dbx"
	"github.com/dmitrijs2005/docsync/internal/dbx/dbxtest"
	"github.com/dmitrijs2005/docsync/internal/logging"
	"github.com/dmitrijs2005/docsync/internal/server/metrics"
	"github.com/dmitrijs2005/docsync/internal/server/models"
	"github.com/dmitrijs2005/docsync/internal/server/replica"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/docsync/internal/server/storage"
)

var uploader = models.Uploader{UserID: 9, FactoryID: 3}

type env struct {
	db      *sql.DB
	runner  *dbx.Runner
	rm      *repomanager.PostgresRepositoryManager
	layout  storage.Layout
	metrics *metrics.Metrics
	seq     *SequenceService
	docs    *DocumentService
	edits   *EditService
	sales   *SaleService
}

// newEnv wires the services against an in-memory SQLite database and a
// temporary storage root.
func newEnv(t *testing.T) *env {
	t.Helper()

	db := dbxtest.OpenWithSchema(t)
	logger := logging.Discard()
	runner := dbx.NewRunner(db, logger)
	rm := repomanager.NewPostgresRepositoryManager()
	layout := storage.Layout{Root: t.TempDir(), LockFileName: ".lock", BackupFolderName: "bk"}
	mt := metrics.NewUnregistered()
	seq := NewSequenceService(rm, mt)
	rep := replica.Noop{}

	return &env{
		db:      db,
		runner:  runner,
		rm:      rm,
		layout:  layout,
		metrics: mt,
		seq:     seq,
		docs:    NewDocumentService(runner, rm, seq, layout, rep, mt, logger),
		edits:   NewEditService(runner, rm, layout, rep, mt, logger),
		sales:   NewSaleService(runner, rm, seq, layout, rep, logger),
	}
}

func (e *env) createSale(t *testing.T) int64 {
	t.Helper()
	id, err := e.sales.Create(context.Background(), uploader, models.SaleInput{ProductNo: "P-1", Quantity: 1})
	require.NoError(t, err)
	return id
}

// upload stores content as one chunk and returns the branch number.
func (e *env) upload(t *testing.T, ownerID int64, name, content string) int64 {
	t.Helper()
	res, err := e.docs.UploadChunk(context.Background(), uploader,
		models.Chunk{OwnerID: ownerID, FileName: name, Published: true, Offset: 0, IsLast: true},
		strings.NewReader(content))
	require.NoError(t, err)
	require.True(t, res.Registered)
	return res.BranchNo
}

func (e *env) path(ownerID int64, name string) string {
	return filepath.Join(e.layout.OwnerDir(ownerID), name)
}

func (e *env) read(t *testing.T, ownerID int64, name string) string {
	t.Helper()
	b, err := os.ReadFile(e.path(ownerID, name))
	require.NoError(t, err)
	return string(b)
}

func (e *env) countDocs(t *testing.T, ownerID int64) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.QueryRow(`SELECT COUNT(*) FROM document_mng WHERE document_id = $1`, ownerID).Scan(&n))
	return n
}

func (e *env) branchExists(t *testing.T, ownerID, branchNo int64) bool {
	t.Helper()
	var n int
	require.NoError(t, e.db.QueryRow(
		`SELECT COUNT(*) FROM document_mng WHERE document_id = $1 AND branch_no = $2`, ownerID, branchNo).Scan(&n))
	return n == 1
}

func (e *env) published(t *testing.T, ownerID, branchNo int64) bool {
	t.Helper()
	var v bool
	require.NoError(t, e.db.QueryRow(
		`SELECT publish_flg FROM document_mng WHERE document_id = $1 AND branch_no = $2`, ownerID, branchNo).Scan(&v))
	return v
}
