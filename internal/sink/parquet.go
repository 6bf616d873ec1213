package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-linker/internal/model"
)

// DefaultPrefix is the layer prefix of output files.
const DefaultPrefix = "gold"

// LinkageRow is the parquet layout of the account_linkages table.
type LinkageRow struct {
	Account1ID     string    `parquet:"account_1_id"`
	Account1Name   string    `parquet:"account_1_name"`
	Account1Region string    `parquet:"account_1_region"`
	Account2ID     string    `parquet:"account_2_id"`
	Account2Name   string    `parquet:"account_2_name"`
	Account2Region string    `parquet:"account_2_region"`
	Confidence     float64   `parquet:"confidence_score"`
	Method         string    `parquet:"linking_method"`
	MatchedAt      time.Time `parquet:"matched_at"`
	RunID          string    `parquet:"run_id"`
}

// MasterRow is the parquet layout of the master_accounts table.
type MasterRow struct {
	MasterAccountID    string    `parquet:"master_account_id"`
	MasterAccountName  string    `parquet:"master_account_name"`
	RegionalAccountIDs []string  `parquet:"regional_account_ids,list"`
	Regions            []string  `parquet:"regions,list"`
	TotalRevenue       float64   `parquet:"total_revenue_usd"`
	AccountCount       int64     `parquet:"account_count"`
	PrimaryRegion      string    `parquet:"primary_region"`
	CreatedAt          time.Time `parquet:"created_at"`
	RunID              string    `parquet:"run_id"`
}

// ParquetWriter writes each table to <dir>/<prefix>_<table>_<version>.parquet.
type ParquetWriter struct {
	dir    string
	prefix string
	codec  compress.Codec
	log    *zap.Logger
}

// NewParquetWriter creates a writer for dir. compression is one of snappy,
// gzip, zstd or none.
func NewParquetWriter(dir, compression string) (*ParquetWriter, error) {
	codec, err := codecFor(compression)
	if err != nil {
		return nil, err
	}
	return &ParquetWriter{
		dir:    dir,
		prefix: DefaultPrefix,
		codec:  codec,
		log:    zap.L().With(zap.String("component", "sink.parquet")),
	}, nil
}

func codecFor(name string) (compress.Codec, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return &parquet.Snappy, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "zstd":
		return &parquet.Zstd, nil
	case "none", "uncompressed":
		return &parquet.Uncompressed, nil
	default:
		return nil, eris.Errorf("sink: unknown compression %q", name)
	}
}

// Write implements Writer. Both tables are written to temp files first and
// renamed into place only once both succeeded, so a failure leaves no table
// file under its final name.
func (w *ParquetWriter) Write(_ context.Context, t Tables) ([]model.TableOutput, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "sink: create output dir %s", w.dir)
	}

	linkPath := w.path(TableLinkages, t.Version)
	masterPath := w.path(TableMasters, t.Version)

	linkTmp, err := writeTemp(linkPath, LinkageRows(t), w.codec)
	if err != nil {
		return nil, err
	}
	masterTmp, err := writeTemp(masterPath, MasterRows(t), w.codec)
	if err != nil {
		os.Remove(linkTmp) //nolint:errcheck
		return nil, err
	}

	if err := os.Rename(linkTmp, linkPath); err != nil {
		os.Remove(linkTmp)   //nolint:errcheck
		os.Remove(masterTmp) //nolint:errcheck
		return nil, eris.Wrapf(err, "sink: rename %s", linkPath)
	}
	if err := os.Rename(masterTmp, masterPath); err != nil {
		os.Remove(masterTmp) //nolint:errcheck
		os.Remove(linkPath)  //nolint:errcheck
		return nil, eris.Wrapf(err, "sink: rename %s", masterPath)
	}

	w.log.Info("wrote output tables",
		zap.String("linkages", linkPath),
		zap.String("masters", masterPath),
	)
	return []model.TableOutput{
		{Table: TableLinkages, Records: len(t.Linkages), Location: linkPath},
		{Table: TableMasters, Records: len(t.Masters), Location: masterPath},
	}, nil
}

// Discard implements Discarder. Outputs outside the writer's directory are
// ignored; files already gone are not an error.
func (w *ParquetWriter) Discard(_ context.Context, outputs []model.TableOutput) error {
	dir := filepath.Clean(w.dir)
	for _, o := range outputs {
		if filepath.Dir(o.Location) != dir {
			continue
		}
		if err := os.Remove(o.Location); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "sink: remove %s", o.Location)
		}
		w.log.Info("discarded output table", zap.String("path", o.Location))
	}
	return nil
}

func (w *ParquetWriter) path(table, version string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s_%s.parquet", w.prefix, table, version))
}

// writeTemp writes rows next to path and returns the temp file name.
func writeTemp[T any](path string, rows []T, codec compress.Codec) (string, error) {
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, rows, parquet.Compression(codec)); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return "", eris.Wrapf(err, "sink: write %s", path)
	}
	return tmp, nil
}

// LinkageRows flattens the linkage table.
func LinkageRows(t Tables) []LinkageRow {
	rows := make([]LinkageRow, len(t.Linkages))
	for i, m := range t.Linkages {
		rows[i] = LinkageRow{
			Account1ID:     m.Account1ID,
			Account1Name:   m.Account1Name,
			Account1Region: m.Account1Region,
			Account2ID:     m.Account2ID,
			Account2Name:   m.Account2Name,
			Account2Region: m.Account2Region,
			Confidence:     m.Confidence,
			Method:         string(m.Method),
			MatchedAt:      m.MatchedAt.UTC(),
			RunID:          t.RunID,
		}
	}
	return rows
}

// MasterRows flattens the master account table.
func MasterRows(t Tables) []MasterRow {
	rows := make([]MasterRow, len(t.Masters))
	for i, m := range t.Masters {
		rows[i] = MasterRow{
			MasterAccountID:    m.ID,
			MasterAccountName:  m.Name,
			RegionalAccountIDs: m.RegionalAccountIDs,
			Regions:            m.Regions,
			TotalRevenue:       m.TotalRevenue,
			AccountCount:       int64(m.AccountCount),
			PrimaryRegion:      m.PrimaryRegion,
			CreatedAt:          m.CreatedAt.UTC(),
			RunID:              t.RunID,
		}
	}
	return rows
}
