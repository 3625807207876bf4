package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/linesearch/internal/logstore"
	"github.com/Aman-CERP/linesearch/internal/output"
	"github.com/Aman-CERP/linesearch/internal/server"
)

// queryColumnWidth caps the query column in table output.
const queryColumnWidth = 40

func newLogsCmd() *cobra.Command {
	var (
		cf         clientFlags
		jsonOutput bool
		limit      int
		status     string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List recorded queries",
		Long: `Send a read_logs request and print every recorded query, oldest first.`,
		Example: `  linesearch logs
  linesearch logs --limit 20 --status NOT_FOUND
  linesearch logs --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := cf.client()
			if err != nil {
				return err
			}
			return runLogs(cmd.Context(), cmd, client, logsView{
				json:   jsonOutput,
				limit:  limit,
				status: strings.ToUpper(status),
			})
		},
	}

	cf.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the entries as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the newest N entries")
	cmd.Flags().StringVar(&status, "status", "", "Only entries with this status (FOUND, NOT_FOUND, ERROR)")

	return cmd
}

type logsView struct {
	json   bool
	limit  int
	status string
}

func (v logsView) apply(entries []logstore.Entry) []logstore.Entry {
	if v.status != "" {
		kept := entries[:0:0]
		for _, e := range entries {
			if string(e.Status) == v.status {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	if v.limit > 0 && len(entries) > v.limit {
		entries = entries[len(entries)-v.limit:]
	}
	return entries
}

func runLogs(ctx context.Context, cmd *cobra.Command, client *server.Client, view logsView) error {
	if view.status != "" && !logstore.Status(view.status).Valid() {
		return fmt.Errorf("unknown status %q", view.status)
	}

	entries, err := client.ReadLogs(ctx)
	if err != nil {
		return fmt.Errorf("reading logs from %s failed: %w", client.Addr(), err)
	}
	entries = view.apply(entries)

	if view.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	out := output.New(cmd.OutOrStdout())
	if len(entries) == 0 {
		out.Status("", "No queries recorded")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Timestamp.Local().Format(time.DateTime),
			string(e.Status),
			formatSeconds(e.ExecutionTime),
			e.RequestingIP,
			clip(e.Query, queryColumnWidth),
			e.ID,
		})
	}
	out.Table([]string{"TIMESTAMP", "STATUS", "TIME", "IP", "QUERY", "ID"}, rows)
	out.Newline()
	out.Statusf("", "%d entries", len(entries))
	return nil
}

func formatSeconds(secs float64) string {
	return time.Duration(secs * float64(time.Second)).Round(time.Microsecond).String()
}

// clip shortens s to at most n runes, marking the cut with an ellipsis.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
