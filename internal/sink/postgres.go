package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-linker/internal/db"
	"github.com/sells-group/account-linker/internal/model"
)

// TableMasterXref maps each grouped regional account to its current master.
const TableMasterXref = "account_master_xref"

var (
	linkageColumns = []string{
		"run_id", "account_1_id", "account_1_name", "account_1_region",
		"account_2_id", "account_2_name", "account_2_region",
		"confidence_score", "linking_method", "matched_at",
	}
	masterColumns = []string{
		"run_id", "master_account_id", "master_account_name", "regional_account_ids",
		"regions", "total_revenue_usd", "account_count", "primary_region", "created_at",
	}
	xrefColumns = []string{"account_id", "master_account_id", "run_id", "updated_at"}
)

// PostgresWriter appends each run's tables to Postgres, keyed by run_id, and
// refreshes the account to master cross reference. All statements run in one
// transaction.
type PostgresWriter struct {
	pool   db.Pool
	schema string
	log    *zap.Logger
}

// NewPostgresWriter creates a writer targeting schema.
func NewPostgresWriter(pool db.Pool, schema string) *PostgresWriter {
	if schema == "" {
		schema = DefaultPrefix
	}
	return &PostgresWriter{
		pool:   pool,
		schema: schema,
		log:    zap.L().With(zap.String("component", "sink.postgres")),
	}
}

// Migrate creates the schema and output tables if they do not exist.
func (w *PostgresWriter) Migrate(ctx context.Context, q db.Querier) error {
	schema := pgx.Identifier{w.schema}.Sanitize()
	stmts := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id           TEXT NOT NULL,
			account_1_id     TEXT NOT NULL,
			account_1_name   TEXT NOT NULL,
			account_1_region TEXT NOT NULL,
			account_2_id     TEXT NOT NULL,
			account_2_name   TEXT NOT NULL,
			account_2_region TEXT NOT NULL,
			confidence_score DOUBLE PRECISION NOT NULL,
			linking_method   TEXT NOT NULL,
			matched_at       TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (run_id, account_1_id, account_2_id)
		)`, w.table(TableLinkages)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id               TEXT NOT NULL,
			master_account_id    TEXT PRIMARY KEY,
			master_account_name  TEXT NOT NULL,
			regional_account_ids TEXT[] NOT NULL,
			regions              TEXT[] NOT NULL,
			total_revenue_usd    DOUBLE PRECISION NOT NULL,
			account_count        INTEGER NOT NULL,
			primary_region       TEXT NOT NULL,
			created_at           TIMESTAMPTZ NOT NULL
		)`, w.table(TableMasters)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			account_id        TEXT PRIMARY KEY,
			master_account_id TEXT NOT NULL,
			run_id            TEXT NOT NULL,
			updated_at        TIMESTAMPTZ NOT NULL
		)`, w.table(TableMasterXref)),
	}
	for _, stmt := range stmts {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "sink: postgres migrate")
		}
	}
	return nil
}

// Write implements Writer.
func (w *PostgresWriter) Write(ctx context.Context, t Tables) ([]model.TableOutput, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "sink: postgres begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := w.Migrate(ctx, tx); err != nil {
		return nil, err
	}

	if _, err := db.CopyFromSchema(ctx, tx, w.schema, TableLinkages, linkageColumns, linkageValues(t)); err != nil {
		return nil, eris.Wrap(err, "sink: postgres copy linkages")
	}
	if _, err := db.CopyFromSchema(ctx, tx, w.schema, TableMasters, masterColumns, masterValues(t)); err != nil {
		return nil, eris.Wrap(err, "sink: postgres copy masters")
	}

	xref := xrefValues(t)
	if _, err := db.BulkUpsert(ctx, tx, db.UpsertConfig{
		Table:        w.schema + "." + TableMasterXref,
		Columns:      xrefColumns,
		ConflictKeys: []string{"account_id"},
	}, xref); err != nil {
		return nil, eris.Wrap(err, "sink: postgres upsert xref")
	}

	// Accounts no longer grouped by this run drop out of the cross reference.
	pruneSQL := fmt.Sprintf(`DELETE FROM %s WHERE run_id <> $1`, w.table(TableMasterXref))
	pruned, err := tx.Exec(ctx, pruneSQL, t.RunID)
	if err != nil {
		return nil, eris.Wrap(err, "sink: postgres prune xref")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "sink: postgres commit")
	}

	w.log.Info("copied output tables",
		zap.String("schema", w.schema),
		zap.Int("linkages", len(t.Linkages)),
		zap.Int("masters", len(t.Masters)),
		zap.Int("xref", len(xref)),
		zap.Int64("xref_pruned", pruned.RowsAffected()),
	)
	return []model.TableOutput{
		{Table: TableLinkages, Records: len(t.Linkages), Location: "postgres://" + w.schema + "." + TableLinkages},
		{Table: TableMasters, Records: len(t.Masters), Location: "postgres://" + w.schema + "." + TableMasters},
	}, nil
}

func (w *PostgresWriter) table(name string) string {
	return pgx.Identifier{w.schema, name}.Sanitize()
}

func linkageValues(t Tables) [][]any {
	rows := make([][]any, len(t.Linkages))
	for i, m := range t.Linkages {
		rows[i] = []any{
			t.RunID, m.Account1ID, m.Account1Name, m.Account1Region,
			m.Account2ID, m.Account2Name, m.Account2Region,
			m.Confidence, string(m.Method), m.MatchedAt,
		}
	}
	return rows
}

func masterValues(t Tables) [][]any {
	rows := make([][]any, len(t.Masters))
	for i, m := range t.Masters {
		rows[i] = []any{
			t.RunID, m.ID, m.Name, m.RegionalAccountIDs,
			m.Regions, m.TotalRevenue, m.AccountCount, m.PrimaryRegion, m.CreatedAt,
		}
	}
	return rows
}

func xrefValues(t Tables) [][]any {
	var rows [][]any
	for _, m := range t.Masters {
		for _, id := range m.RegionalAccountIDs {
			rows = append(rows, []any{id, m.ID, t.RunID, m.CreatedAt})
		}
	}
	return rows
}
