package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/linesearch/internal/index"
	"github.com/Aman-CERP/linesearch/internal/output"
	"github.com/Aman-CERP/linesearch/pkg/version"
)

// VersionReport is the JSON form of 'linesearch version'.
type VersionReport struct {
	version.BuildInfo
	Modes []string `json:"modes"`
}

func newVersionReport() VersionReport {
	modes := make([]string, 0, len(index.Modes))
	for _, m := range index.Modes {
		modes = append(modes, m.String())
	}
	return VersionReport{BuildInfo: version.GetInfo(), Modes: modes}
}

func newVersionCmd() *cobra.Command {
	var jsonOutput, shortOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information and the supported search modes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case shortOutput:
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Short())
				return err
			case jsonOutput:
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(newVersionReport())
			}

			report := newVersionReport()
			out := output.New(cmd.OutOrStdout())
			out.Status("", version.String())
			out.KeyValue("Search modes", strings.Join(report.Modes, ", "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	cmd.Flags().BoolVar(&shortOutput, "short", false, "Output only the version number")

	return cmd
}
