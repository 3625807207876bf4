package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/linesearch/internal/preflight"
)

// DoctorResult is the JSON form of 'linesearch doctor'.
type DoctorResult struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func newDoctorCmd() *cobra.Command {
	var (
		jsonOutput bool
		verbose    bool
		skipPort   bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that this machine can run the server",
		Long: `Run the checks 'linesearch serve' depends on: the corpus loads, the
query log location is writable with enough free space, the file descriptor
limit covers max_connections, the listen address is free and the TLS
material (when enabled) loads.

Exits non-zero when a required check fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			target := preflight.Target{
				CorpusPath:     cfg.Corpus.Path,
				LogPath:        cfg.Logs.Path,
				MaxConnections: cfg.Server.MaxConnections,
				TLS:            cfg.ServerSettings().TLS,
			}
			if !skipPort {
				target.ListenAddr = cfg.ListenAddr()
			}

			checker := preflight.New(
				preflight.WithOutput(cmd.OutOrStdout()),
				preflight.WithVerbose(verbose),
			)
			results := checker.RunAll(cmd.Context(), target)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(DoctorResult{Status: checker.SummaryStatus(results), Checks: results}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return fmt.Errorf("system check failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for each check")
	cmd.Flags().BoolVar(&skipPort, "skip-port", false, "Skip the listen address check (use while the server is running)")

	return cmd
}
