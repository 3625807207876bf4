package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/linesearch/internal/logstore"
	"github.com/Aman-CERP/linesearch/internal/output"
	"github.com/Aman-CERP/linesearch/internal/server"
)

type clientFlags struct {
	addr    string
	timeout time.Duration
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.addr, "addr", "", "Server address (default from config)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Second, "Per-request timeout")
}

func (f *clientFlags) client() (*server.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	c, err := newClient(cfg, f.addr)
	if err != nil {
		return nil, err
	}
	server.WithTimeout(f.timeout)(c)
	return c, nil
}

func newQueryCmd() *cobra.Command {
	var (
		cf   clientFlags
		mode string
		raw  bool
	)

	cmd := &cobra.Command{
		Use:   "query <string>",
		Short: "Ask the server whether a line exists",
		Long: `Send one create_log request. The server searches the corpus for a
line equal to the argument, records the query, and replies.`,
		Example: `  linesearch query "3;0;1;28;0;7;5;0;"
  linesearch query --mode sorted_array banana
  linesearch query --raw banana`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := cf.client()
			if err != nil {
				return err
			}
			return runQuery(cmd.Context(), cmd, client, args[0], mode, raw)
		},
	}

	cf.register(cmd)
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Search mode (default: the server's)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the reply exactly as received")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, client *server.Client, query, mode string, raw bool) error {
	reply, err := client.CreateLog(ctx, query, mode)
	if err != nil {
		return fmt.Errorf("query to %s failed: %w", client.Addr(), err)
	}

	if raw {
		_, err := fmt.Fprint(cmd.OutOrStdout(), reply.Raw)
		return err
	}

	out := output.New(cmd.OutOrStdout())
	switch reply.Status {
	case logstore.StatusFound:
		out.Success("STRING EXISTS")
	case logstore.StatusNotFound:
		out.Warning("STRING NOT_FOUND")
	default:
		out.Error(reply.Error)
	}
	out.KeyValue("Query", orNA(reply.Query))
	out.KeyValue("Requesting IP", orNA(reply.RequestingIP))
	out.KeyValue("Execution Time", reply.ExecutionTime.String())
	if !reply.Timestamp.IsZero() {
		out.KeyValue("Timestamp", reply.Timestamp.Format(time.RFC3339Nano))
	}
	out.KeyValue("Log ID", orNA(reply.LogID))

	if reply.Status == logstore.StatusError {
		return fmt.Errorf("%w: %s", server.ErrServerError, reply.Error)
	}
	return nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
