package snapshot

import (
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/rotisserie/eris"
)

const parquetBatchSize = 256

// ReadParquet reads every row of a parquet file into Records keyed by the
// dotted leaf column path. Null values are omitted from the record.
func ReadParquet(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "parquet: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return nil, eris.Wrapf(err, "parquet: stat %s", path)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, eris.Wrapf(err, "parquet: read footer %s", path)
	}

	leaves := pf.Schema().Columns()
	columns := make([]string, len(leaves))
	for i, leaf := range leaves {
		columns[i] = normalizeColumn(strings.Join(leaf, "."))
	}

	records := make([]Record, 0, pf.NumRows())
	buf := make([]parquet.Row, parquetBatchSize)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				records = append(records, rowRecord(columns, row))
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				rows.Close() //nolint:errcheck
				return nil, eris.Wrapf(err, "parquet: read rows %s", path)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, eris.Wrapf(err, "parquet: close rows %s", path)
		}
	}
	return records, nil
}

func rowRecord(columns []string, row parquet.Row) Record {
	rec := make(Record, len(columns))
	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= len(columns) || v.IsNull() {
			continue
		}
		// Repeated columns keep their first value.
		if _, seen := rec[columns[col]]; seen {
			continue
		}
		rec[columns[col]] = v.String()
	}
	return rec
}
