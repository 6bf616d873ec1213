package sink

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectMigrate(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS").WillReturnResult(pgxmock.NewResult("CREATE SCHEMA", 0))
	for range 3 {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	}
}

func TestPostgresWriter_Write(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	expectMigrate(mock)
	mock.ExpectCopyFrom(pgx.Identifier{"gold", TableLinkages}, linkageColumns).WillReturnResult(1)
	mock.ExpectCopyFrom(pgx.Identifier{"gold", TableMasters}, masterColumns).WillReturnResult(1)
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_gold_account_master_xref"}, xrefColumns).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec("DELETE FROM").WithArgs("run-1").WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCommit()

	w := NewPostgresWriter(mock, "gold")
	out, err := w.Write(context.Background(), sampleTables())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "postgres://gold.account_linkages", out[0].Location)
	assert.Equal(t, "postgres://gold.master_accounts", out[1].Location)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWriter_CopyFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	expectMigrate(mock)
	mock.ExpectCopyFrom(pgx.Identifier{"gold", TableLinkages}, linkageColumns).WillReturnError(fmt.Errorf("permission denied"))
	mock.ExpectRollback()

	_, err = NewPostgresWriter(mock, "").Write(context.Background(), sampleTables())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy linkages")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestXrefValues(t *testing.T) {
	rows := xrefValues(sampleTables())
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"A1", "M1", "run-1", testTime}, rows[0])
	assert.Equal(t, "A2", rows[1][0])
}
