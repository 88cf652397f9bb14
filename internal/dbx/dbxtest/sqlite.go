// Package dbxtest opens in-memory SQLite databases for tests that need real
// transactional behaviour without a Postgres server.
package dbxtest

import (
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var seq atomic.Int64

// Schema mirrors the Postgres migrations closely enough for the queries
// issued by the repositories.
const Schema = `
CREATE TABLE sequences (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL DEFAULT 0
);
INSERT INTO sequences (name, value) VALUES ('sale_id', 0), ('branch_no', 0);

CREATE TABLE sale_mng (
	sale_id        INTEGER PRIMARY KEY,
	document_id    INTEGER NOT NULL,
	product_no     TEXT NOT NULL DEFAULT '',
	quantity       INTEGER NOT NULL DEFAULT 0,
	remarks        TEXT NOT NULL DEFAULT '',
	status         INTEGER NOT NULL DEFAULT 0,
	factory_id     INTEGER NOT NULL DEFAULT 0,
	update_date    TIMESTAMP NOT NULL,
	update_user_id INTEGER NOT NULL
);

CREATE TABLE document_mng (
	document_id    INTEGER NOT NULL,
	branch_no      INTEGER NOT NULL,
	upd_factory_id INTEGER NOT NULL,
	file_name      TEXT NOT NULL,
	publish_flg    BOOLEAN NOT NULL,
	update_date    TIMESTAMP NOT NULL,
	update_user_id INTEGER NOT NULL,
	PRIMARY KEY (document_id, branch_no)
);
CREATE UNIQUE INDEX document_mng_branch_no_uq ON document_mng (branch_no);
`

// OpenSQLite returns a private in-memory database limited to one
// connection, so every statement and transaction is serialized.
func OpenSQLite(t *testing.T) *sql.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_time_format=sqlite", name, seq.Add(1))

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// OpenWithSchema opens a database and applies Schema.
func OpenWithSchema(t *testing.T) *sql.DB {
	t.Helper()
	db := OpenSQLite(t)
	_, err := db.Exec(Schema)
	require.NoError(t, err)
	return db
}
