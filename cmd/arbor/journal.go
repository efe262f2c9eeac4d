package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/arbor/pkg/cli"
	"mercator-hq/arbor/pkg/config"
	"mercator-hq/arbor/pkg/journal"
)

var journalFlags struct {
	since     time.Duration
	backend   string
	resource  string
	outcome   string
	limit     int
	olderThan int
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the resolution journal",
	Long: `Inspect and prune the resolution journal, the record of every backend
selection, conflict and unavailable backend.

The journal is read from journal.path in the configuration, whether or not
recording is enabled.`,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal records, newest first",
	Long: `List journal records, newest first.

Examples:
  arbor journal list
  arbor journal list --since 24h --outcome conflict
  arbor journal list --backend yamlv3 --limit 20 -o json`,
	Args: cobra.NoArgs,
	RunE: runJournalList,
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old journal records",
	Long: `Delete records older than the retention period.

Examples:
  # Apply journal.retention_days from the configuration
  arbor journal prune

  # Keep one week
  arbor journal prune --older-than 7`,
	Args: cobra.NoArgs,
	RunE: runJournalPrune,
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd, journalPruneCmd)

	journalListCmd.Flags().DurationVar(&journalFlags.since, "since", 0, "only records newer than this duration")
	journalListCmd.Flags().StringVar(&journalFlags.backend, "backend", "", "only records for this backend")
	journalListCmd.Flags().StringVar(&journalFlags.resource, "resource", "", "only records for this resource")
	journalListCmd.Flags().StringVar(&journalFlags.outcome, "outcome", "", "only records with this outcome (selected, conflict, not_available, unknown, exhausted, parse_error)")
	journalListCmd.Flags().IntVar(&journalFlags.limit, "limit", journal.DefaultQueryLimit, "maximum number of records")

	journalPruneCmd.Flags().IntVar(&journalFlags.olderThan, "older-than", 0, "days to keep (defaults to journal.retention_days)")
}

// JournalReport lists journal records.
type JournalReport []journal.Record

// Header implements cli.Table.
func (r JournalReport) Header() []string {
	return []string{"timestamp", "outcome", "requested", "effective", "selected", "resource", "reason", "request_id"}
}

// Rows implements cli.Table.
func (r JournalReport) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, rec := range r {
		rows = append(rows, []string{
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
			string(rec.Outcome), rec.Requested, rec.Effective, rec.Selected,
			rec.Resource, rec.Reason, rec.RequestID,
		})
	}
	return rows
}

// WriteText implements cli.TextWriter.
func (r JournalReport) WriteText(w io.Writer) error {
	if len(r) == 0 {
		_, err := fmt.Fprintln(w, "No journal records found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tOUTCOME\tBACKEND\tRESOURCE\tDETAIL")
	for _, rec := range r {
		name := rec.Selected
		if name == "" {
			name = rec.Effective
		}
		detail := rec.Reason
		if len(rec.Conflicting) > 0 {
			detail = strings.TrimSpace(detail + " [" + strings.Join(rec.Conflicting, ",") + "]")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			rec.Timestamp.Local().Format(time.DateTime), rec.Outcome, name, rec.Resource, detail)
	}
	return tw.Flush()
}

func openJournal() (*config.Config, journal.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := journal.Open(cfg.Journal.Driver, cfg.Journal.Path)
	if err != nil {
		return nil, nil, cli.NewCommandError("journal", fmt.Errorf("failed to open %s: %w", cfg.Journal.Path, err))
	}
	return cfg, store, nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	_, store, err := openJournal()
	if err != nil {
		return err
	}
	defer store.Close()

	filter := journal.Filter{
		Backend:  journalFlags.backend,
		Resource: journalFlags.resource,
		Outcome:  journal.Outcome(journalFlags.outcome),
		Limit:    journalFlags.limit,
	}
	if journalFlags.since > 0 {
		filter.Since = time.Now().Add(-journalFlags.since)
	}

	records, err := store.Query(cmd.Context(), filter)
	if err != nil {
		return cli.NewCommandError("journal list", err)
	}
	return printResult(cmd, JournalReport(records))
}

func runJournalPrune(cmd *cobra.Command, args []string) error {
	cfg, store, err := openJournal()
	if err != nil {
		return err
	}
	defer store.Close()

	days := journalFlags.olderThan
	if days == 0 {
		days = cfg.Journal.RetentionDays
	}
	if days <= 0 {
		return cli.NewConfigError("journal.retention_days", "retention is disabled; pass --older-than")
	}

	retention := journal.NewRetention(store, days, "", nil)
	removed, err := retention.RunNow(cmd.Context())
	if err != nil {
		return cli.NewCommandError("journal prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d records older than %s\n", removed, retention.Cutoff().Format(time.DateTime))
	return nil
}
