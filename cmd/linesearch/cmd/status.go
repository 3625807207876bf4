package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/linesearch/internal/output"
	"github.com/Aman-CERP/linesearch/internal/server"
)

// StatusResult is the JSON form of 'linesearch status'.
type StatusResult struct {
	Running   bool   `json:"running"`
	Reachable bool   `json:"reachable"`
	PID       int    `json:"pid,omitempty"`
	Addr      string `json:"addr,omitempty"`
	PIDFile   string `json:"pid_file"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the server is running",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := output.New(cmd.OutOrStdout())
	pidFile := server.NewPIDFile(cfg.Server.PIDFile)

	status := StatusResult{PIDFile: pidFile.Path()}
	rec, err := pidFile.Read()
	if err == nil && pidFile.IsRunning() {
		status.Running = true
		status.PID = rec.PID
		status.Addr = rec.Addr

		client, cerr := newClient(cfg, dialable(rec.Addr))
		if cerr != nil {
			return cerr
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		status.Reachable = client.IsRunning(pingCtx)
		cancel()
	} else if err != nil && !errors.Is(err, server.ErrPIDFileNotFound) {
		out.Warningf("Ignoring unreadable PID file: %v", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	if !status.Running {
		out.Status("", "Server is not running")
		out.Status("", "Run 'linesearch serve' to start it")
		return nil
	}

	out.Success("Server is running")
	out.KeyValue("PID", fmt.Sprint(status.PID))
	out.KeyValue("Address", status.Addr)
	if status.Reachable {
		out.KeyValue("Reachable", "yes")
	} else {
		out.KeyValue("Reachable", "no")
	}
	out.KeyValue("PID file", status.PIDFile)
	return nil
}

func newStopCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running server",
		Long: `Send SIGTERM to the server recorded in the PID file and wait for it
to exit. A server still running after --timeout gets SIGKILL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStop(cmd, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait before SIGKILL")

	return cmd
}

func runStop(cmd *cobra.Command, timeout time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := output.New(cmd.OutOrStdout())
	pidFile := server.NewPIDFile(cfg.Server.PIDFile)

	if !pidFile.IsRunning() {
		out.Status("", "Server is not running")
		return nil
	}

	rec, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			out.Successf("Server stopped (was pid: %d)", rec.PID)
			return nil
		}
	}

	out.Status("", "Server not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill server: %w", err)
	}
	out.Success("Server killed")
	return nil
}
