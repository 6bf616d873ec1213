// Package sink writes the output tables of a linking run: versioned parquet
// files, an optional Postgres copy and an optional S3 mirror.
package sink

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-linker/internal/model"
)

// Output table names.
const (
	TableLinkages = "account_linkages"
	TableMasters  = "master_accounts"
)

// VersionLayout formats the version suffix of output files.
const VersionLayout = "20060102_150405"

// Tables is the complete output of one run.
type Tables struct {
	RunID    string
	Version  string
	Linkages []model.MatchRecord
	Masters  []model.MasterAccount
}

// NewTables stamps the run's outputs with a version derived from ts.
func NewTables(runID string, ts time.Time, linkages []model.MatchRecord, masters []model.MasterAccount) Tables {
	return Tables{
		RunID:    runID,
		Version:  ts.UTC().Format(VersionLayout),
		Linkages: linkages,
		Masters:  masters,
	}
}

// Writer persists a run's output tables.
type Writer interface {
	Write(ctx context.Context, t Tables) ([]model.TableOutput, error)
}

// Discarder is implemented by writers that can remove the outputs of an
// earlier successful Write. A failed run must not leave tables behind.
type Discarder interface {
	Discard(ctx context.Context, outputs []model.TableOutput) error
}

// MultiWriter fans the same tables out to every writer in order. On the first
// failure it stops and discards what the earlier writers produced.
type MultiWriter []Writer

// Write implements Writer.
func (m MultiWriter) Write(ctx context.Context, t Tables) ([]model.TableOutput, error) {
	var outputs []model.TableOutput
	written := make([][]model.TableOutput, 0, len(m))
	for i, w := range m {
		out, err := w.Write(ctx, t)
		if err != nil {
			m[:i].discard(ctx, written)
			return nil, eris.Wrap(err, "sink: write tables")
		}
		written = append(written, out)
		outputs = append(outputs, out...)
	}
	return outputs, nil
}

// Discard implements Discarder by handing outputs to every member that can
// discard, in reverse order. Members skip locations they do not own.
func (m MultiWriter) Discard(ctx context.Context, outputs []model.TableOutput) error {
	var first error
	for i := len(m) - 1; i >= 0; i-- {
		d, ok := m[i].(Discarder)
		if !ok {
			continue
		}
		if err := d.Discard(ctx, outputs); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// discard rolls back writers in reverse order. written[i] holds the outputs
// of m[i].
func (m MultiWriter) discard(ctx context.Context, written [][]model.TableOutput) {
	ctx = context.WithoutCancel(ctx)
	log := zap.L().With(zap.String("component", "sink"))
	for i := len(m) - 1; i >= 0; i-- {
		d, ok := m[i].(Discarder)
		if !ok {
			continue
		}
		if err := d.Discard(ctx, written[i]); err != nil {
			log.Warn("sink: discard outputs of failed run", zap.Error(err))
		}
	}
}
