package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/catalogcrawler/internal/config"
	"github.com/nao1215/catalogcrawler/internal/database"
	"github.com/nao1215/catalogcrawler/internal/model"
)

// defaultHistoryLimit is the number of sessions listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// It reads past session outcomes from the run ledger.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past crawl sessions from the run ledger",
		Long: `History lists the most recent crawl sessions recorded in the run ledger.

Examples:
  # Latest sessions of all targets
  catalogcrawler history

  # Sessions of one target
  catalogcrawler history --target tires-vl

  # Every session and proxy exchange of one run
  catalogcrawler history --run 6f1c...

  # JSON output
  catalogcrawler history --json`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("target", "", "Only list sessions of this target")
	cmd.Flags().String("run", "", "List the sessions and proxy exchanges of one run")
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit, "Maximum number of sessions")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	cmd.Flags().String("db-dir", "", "Run ledger directory (default: XDG data directory)")

	return cmd
}

// historyQuery selects which sessions to list.
type historyQuery struct {
	target string
	run    string
	limit  int
	json   bool
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	var q historyQuery
	var err error
	if q.target, err = cmd.Flags().GetString("target"); err != nil {
		return err
	}
	if q.run, err = cmd.Flags().GetString("run"); err != nil {
		return err
	}
	if q.limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return err
	}
	if q.json, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}
	if q.limit <= 0 {
		return config.Errorf("invalid limit %d: must be positive", q.limit)
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	ledger, err := database.Open(dbDir, opts)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			fmt.Fprintln(cmd.OutOrStdout(), "No crawl history yet. Run 'catalogcrawler run' first.")
			return nil
		}
		return fmt.Errorf("failed to open run ledger: %w", err)
	}
	defer ledger.Close()

	return showHistory(cmd.Context(), cmd.OutOrStdout(), ledger, q)
}

// showHistory prints the sessions selected by q.
func showHistory(ctx context.Context, out io.Writer, ledger *database.Ledger, q historyQuery) error {
	var sessions []model.SessionOutcome
	var exchanges []database.Exchange
	var err error

	switch {
	case q.run != "":
		if sessions, err = ledger.RunSessions(ctx, q.run); err != nil {
			return err
		}
		if exchanges, err = ledger.Exchanges(ctx, q.run); err != nil {
			return err
		}
	case q.target != "":
		sessions, err = ledger.TargetHistory(ctx, q.target, q.limit)
	default:
		sessions, err = ledger.RecentSessions(ctx, q.limit)
	}
	if err != nil {
		return err
	}

	if q.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Sessions  []model.SessionOutcome `json:"sessions"`
			Exchanges []database.Exchange    `json:"exchanges,omitempty"`
		}{sessions, exchanges})
	}

	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tTARGET\tPROXY\tSTATUS\tTIRES\tDISKS\tRUN")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			s.StartedAt.Local().Format(time.DateTime), s.TargetID, s.ProxyID,
			s.Status, s.Tires, s.Disks, shortID(s.RunID))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(exchanges) > 0 {
		fmt.Fprintln(out, "\nProxy exchanges:")
		for _, e := range exchanges {
			fmt.Fprintf(out, "  %s  %s -> %s\n", e.Timestamp.Local().Format(time.DateTime), e.FromProxy, e.ToProxy)
		}
	}
	return nil
}

// shortID trims a run id to its first 8 characters for table output.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
