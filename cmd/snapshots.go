package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/mars-cli/internal/model"
	"github.com/sells-group/mars-cli/internal/monitoring"
	"github.com/sells-group/mars-cli/internal/store"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect and maintain saved scrapes",
	Long:  "Commands for listing, viewing, pruning and summarising scrape snapshots, plus JSON lines export and import.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("snapshots", true)
	},
}

// -- snapshots list --

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved snapshots, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetDuration("since")

		filter := store.SnapshotFilter{Limit: limit}
		if since > 0 {
			filter.Since = time.Now().Add(-since)
		}

		snaps, err := st.ListSnapshots(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "snapshots list")
		}

		if len(snaps) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No snapshots found.")
			return nil
		}

		formatSnapshotList(cmd.OutOrStdout(), snaps)
		return nil
	},
}

// -- snapshots show --

var snapshotsShowCmd = &cobra.Command{
	Use:   "show <snapshot-id|latest>",
	Short: "Show a snapshot as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var snap *model.Snapshot
		if args[0] == "latest" {
			snap, err = st.LatestSnapshot(ctx)
		} else {
			snap, err = st.GetSnapshot(ctx, args[0])
		}
		if err != nil {
			return eris.Wrap(err, "snapshots show")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

// -- snapshots prune --

var snapshotsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete snapshots older than a retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		olderThan, _ := cmd.Flags().GetDuration("older-than")
		if olderThan <= 0 {
			return eris.New("snapshots prune: --older-than must be positive")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.DeleteOlderThan(ctx, time.Now().Add(-olderThan))
		if err != nil {
			return eris.Wrap(err, "snapshots prune")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d snapshot(s) older than %s.\n", n, olderThan)
		return nil
	},
}

// -- snapshots stats --

var snapshotsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-step failure rates and alert status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		hours, _ := cmd.Flags().GetInt("hours")
		if hours <= 0 {
			hours = cfg.Monitoring.LookbackWindowHours
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, hours)
		if err != nil {
			return eris.Wrap(err, "snapshots stats")
		}

		alerts := monitoring.NewAlerter(cfg.Monitoring).Evaluate(snap)
		formatStats(cmd.OutOrStdout(), snap, alerts)
		return nil
	},
}

func formatStats(w io.Writer, snap *monitoring.MetricsSnapshot, alerts []monitoring.Alert) {
	fmt.Fprintf(w, "Snapshots in last %dh: %d (%d complete)\n", snap.LookbackHours, snap.Snapshots, snap.Complete)
	if age, ok := snap.Age(); ok {
		fmt.Fprintf(w, "Latest snapshot: %s (%s ago)\n", snap.LatestAt.Format(time.RFC3339), age.Truncate(time.Second))
	} else {
		fmt.Fprintln(w, "Latest snapshot: none")
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tTOTAL\tOK\tNOT_FOUND\tTRANSPORT\tFAIL_RATE")
	for _, step := range model.AllSteps() {
		m := snap.Steps[step]
		if m == nil {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%.1f%%\n",
			step, m.Total, m.OK, m.NotFound, m.Transport, m.FailRate*100)
	}
	tw.Flush()

	if len(alerts) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, a := range alerts {
		fmt.Fprintf(w, "ALERT [%s] %s\n", a.Severity, a.Message)
	}
}

// -- snapshots export / import --

var snapshotsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write snapshots as JSON lines",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		n, capped, err := exportSnapshots(ctx, st, cmd.OutOrStdout(), limit, exportPageSize)
		if err != nil {
			return err
		}
		if capped {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: stopped at --limit %d; older snapshots were not exported.\n", n)
		}
		return nil
	},
}

const exportPageSize = 500

// exportSnapshots writes snapshots newest first as JSON lines, paging through
// the store until it is exhausted or limit (when > 0) is reached. capped
// reports that more snapshots remained past the limit.
func exportSnapshots(ctx context.Context, st store.Store, w io.Writer, limit, pageSize int) (n int, capped bool, err error) {
	enc := json.NewEncoder(w)
	for {
		size := pageSize
		if limit > 0 {
			// One extra row tells a cut-off export apart from an exact fit.
			size = min(pageSize, limit-n+1)
		}
		page, err := st.ListSnapshots(ctx, store.SnapshotFilter{Limit: size, Offset: n})
		if err != nil {
			return n, false, eris.Wrap(err, "snapshots export")
		}
		for _, s := range page {
			if limit > 0 && n == limit {
				return n, true, nil
			}
			if err := enc.Encode(s); err != nil {
				return n, false, eris.Wrap(err, "snapshots export: encode")
			}
			n++
		}
		if len(page) < size {
			return n, false, nil
		}
	}
}

var snapshotsImportCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Load snapshots written by export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "snapshots import: open")
		}
		defer f.Close() //nolint:errcheck

		snaps, err := readSnapshots(f)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.ImportSnapshots(ctx, snaps)
		if err != nil {
			return eris.Wrap(err, "snapshots import")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d snapshot(s).\n", n, len(snaps))
		return nil
	},
}

// readSnapshots decodes a stream of JSON snapshots. Every snapshot needs an id.
func readSnapshots(r io.Reader) ([]model.Snapshot, error) {
	dec := json.NewDecoder(r)
	var snaps []model.Snapshot
	for {
		var s model.Snapshot
		err := dec.Decode(&s)
		if err == io.EOF {
			return snaps, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "snapshots import: decode snapshot %d", len(snaps)+1)
		}
		if s.ID == "" {
			return nil, eris.Errorf("snapshots import: snapshot %d has no id", len(snaps)+1)
		}
		snaps = append(snaps, s)
	}
}

func formatSnapshotList(w io.Writer, snaps []model.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tHEADLINE\tMISSING")
	for _, s := range snaps {
		headline := "-"
		if s.Record.NewsTitle != nil {
			headline = truncate(*s.Record.NewsTitle, 48)
		}
		missing := "-"
		if m := s.Record.Missing(); len(m) > 0 {
			missing = strings.Join(m, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.CreatedAt.Format(time.RFC3339), headline, missing)
	}
	tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	snapshotsListCmd.Flags().Int("limit", store.DefaultListLimit, "max number of snapshots to display")
	snapshotsListCmd.Flags().Duration("since", 0, "only show snapshots newer than this (e.g. 24h)")

	snapshotsPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "delete snapshots older than this")

	snapshotsStatsCmd.Flags().Int("hours", 0, "lookback window in hours (default monitoring.lookback_window_hours)")

	snapshotsExportCmd.Flags().Int("limit", 0, "stop after this many snapshots, newest first (0 exports all)")

	snapshotsCmd.AddCommand(snapshotsListCmd)
	snapshotsCmd.AddCommand(snapshotsShowCmd)
	snapshotsCmd.AddCommand(snapshotsPruneCmd)
	snapshotsCmd.AddCommand(snapshotsStatsCmd)
	snapshotsCmd.AddCommand(snapshotsExportCmd)
	snapshotsCmd.AddCommand(snapshotsImportCmd)
	rootCmd.AddCommand(snapshotsCmd)
}
