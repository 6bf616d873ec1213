package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/account-linker/internal/config"
	"github.com/sells-group/account-linker/internal/db"
	"github.com/sells-group/account-linker/internal/linker"
	"github.com/sells-group/account-linker/internal/model"
	"github.com/sells-group/account-linker/internal/resolve"
	"github.com/sells-group/account-linker/internal/sink"
	"github.com/sells-group/account-linker/internal/snapshot"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Run one account-linking batch",
	Long:  "Loads the latest account, contact and manual-linkage inputs, matches accounts across regions, groups them into master accounts and writes the gold tables.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		applyLinkFlags(cmd, cfg)
		if err := cfg.Validate("link"); err != nil {
			return err
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		st, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var writer sink.Writer
		if !dryRun {
			w, cleanup, err := buildWriter(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			writer = w
		}

		loader := snapshot.NewLoader(snapshot.Config{
			Dir:            cfg.Input.Dir,
			Prefix:         snapshot.DefaultPrefix,
			AccountTable:   cfg.Input.AccountTable,
			ContactTable:   cfg.Input.ContactTable,
			ManualLinkages: cfg.Input.ManualLinkages,
		})

		l := linker.New(loader, writer, st, linkerOptions(cfg, dryRun),
			linker.WithMetricsTextfile(cfg.Metrics.Textfile),
		)
		res, err := l.Run(ctx)
		if err != nil {
			if linker.IsConfigurationError(err) {
				zap.L().Error("check input.dir, input.account_table and input.manual_linkages", zap.Error(err))
			}
			return eris.Wrap(err, "link")
		}

		formatLinkSummary(os.Stdout, res, dryRun)
		return nil
	},
}

func init() {
	linkCmd.Flags().String("input-dir", "", "directory holding the silver snapshots (overrides input.dir)")
	linkCmd.Flags().String("output-dir", "", "directory for the gold tables (overrides output.dir)")
	linkCmd.Flags().String("manual-linkages", "", "manual linkage JSON or YAML file (overrides input.manual_linkages)")
	linkCmd.Flags().Bool("dry-run", false, "compute matches and groups without writing tables")
	rootCmd.AddCommand(linkCmd)
}

// applyLinkFlags copies explicitly set flags over the loaded configuration.
func applyLinkFlags(cmd *cobra.Command, c *config.Config) {
	if cmd.Flags().Changed("input-dir") {
		c.Input.Dir, _ = cmd.Flags().GetString("input-dir")
	}
	if cmd.Flags().Changed("output-dir") {
		c.Output.Dir, _ = cmd.Flags().GetString("output-dir")
	}
	if cmd.Flags().Changed("manual-linkages") {
		c.Input.ManualLinkages, _ = cmd.Flags().GetString("manual-linkages")
	}
}

func linkerOptions(c *config.Config, dryRun bool) linker.Options {
	opts := linker.Options{
		Rules: resolve.Rules{
			FuzzyThreshold:     c.Linker.FuzzyThreshold,
			CorroborationFloor: c.Linker.CorroborationFloor,
			Boost:              c.Linker.Boost,
			ParentConfidence:   c.Linker.ParentConfidence,
			ContactConfidence:  c.Linker.ContactConfidence,
		},
		Workers:      c.Linker.Workers,
		Regions:      c.Input.Regions,
		DryRun:       dryRun,
		LedgerWindow: c.Metrics.LedgerWindow,
	}
	if c.Linker.Blocking.Enabled {
		opts.BlockingPrefixLen = c.Linker.Blocking.PrefixLen
	}
	return opts
}

// buildWriter assembles the configured sinks. Parquet files are always
// written; S3 and Postgres are added when configured.
func buildWriter(ctx context.Context, c *config.Config) (sink.Writer, func(), error) {
	cleanup := func() {}

	local, err := sink.NewParquetWriter(c.Output.Dir, c.Output.Compression)
	if err != nil {
		return nil, cleanup, eris.Wrap(err, "init parquet sink")
	}

	var files sink.Writer = local
	if c.Output.S3.Bucket != "" {
		client, err := sink.NewS3Client(ctx, sink.S3Config{
			Bucket:   c.Output.S3.Bucket,
			Prefix:   c.Output.S3.Prefix,
			Region:   c.Output.S3.Region,
			Endpoint: c.Output.S3.Endpoint,
		})
		if err != nil {
			return nil, cleanup, eris.Wrap(err, "init s3 sink")
		}
		files = sink.NewS3Mirror(local, client, c.Output.S3.Bucket, c.Output.S3.Prefix)
	}

	writers := sink.MultiWriter{files}
	if c.Output.Postgres.DatabaseURL != "" {
		pool, err := db.Connect(ctx, c.Output.Postgres.DatabaseURL)
		if err != nil {
			return nil, cleanup, eris.Wrap(err, "init postgres sink")
		}
		cleanup = pool.Close
		writers = append(writers, sink.NewPostgresWriter(pool, c.Output.Postgres.Schema))
	}
	return writers, cleanup, nil
}

// formatLinkSummary writes the run metrics and output locations to w.
func formatLinkSummary(out io.Writer, res *linker.Result, dryRun bool) {
	m := res.Metrics
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", res.RunID)
	_, _ = fmt.Fprintf(w, "Accounts loaded:\t%d\n", m.AccountsLoaded)
	_, _ = fmt.Fprintf(w, "  Considered:\t%d\n", m.AccountsConsidered)
	_, _ = fmt.Fprintf(w, "  Excluded:\t%d\n", m.AccountsExcluded)
	_, _ = fmt.Fprintf(w, "  Duplicate IDs:\t%d\n", m.DuplicateAccountIDs)
	_, _ = fmt.Fprintf(w, "Contacts loaded:\t%d\n", m.ContactsLoaded)
	if !m.ContactsAvailable {
		_, _ = fmt.Fprintln(w, "  (contact signal unavailable)")
	}
	_, _ = fmt.Fprintf(w, "Manual linkages:\t%d\n", m.ManualLinkages)
	_, _ = fmt.Fprintf(w, "Pairs compared:\t%d\n", m.PairsCompared)
	_, _ = fmt.Fprintf(w, "Matches:\t%d\n", m.MatchesTotal)
	for _, method := range model.AllMethods {
		if n := m.MatchesByMethod[method]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", method, n)
		}
	}
	_, _ = fmt.Fprintf(w, "Master accounts:\t%d\n", m.GroupsFormed)
	_, _ = fmt.Fprintf(w, "Grouped accounts:\t%d\n", m.GroupedAccounts)
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", m.Duration())

	switch {
	case dryRun:
		_, _ = fmt.Fprintln(w, "Dry run: no tables written.")
	case len(res.Outputs) == 0:
		_, _ = fmt.Fprintln(w, "No matches found: no tables written.")
	default:
		for _, o := range res.Outputs {
			_, _ = fmt.Fprintf(w, "%s:\t%d records\t%s\n", o.Table, o.Records, o.Location)
		}
	}
	_ = w.Flush()
}
