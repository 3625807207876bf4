package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/linesearch/internal/output"
	"github.com/Aman-CERP/linesearch/internal/server"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status by name.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target is what the checks run against.
type Target struct {
	// CorpusPath is the file the server searches.
	CorpusPath string
	// LogPath is the query log file or directory.
	LogPath string
	// ListenAddr is host:port. Empty skips the port check.
	ListenAddr string
	// MaxConnections is the admission limit; 0 means unbounded.
	MaxConnections int
	// TLS is checked only when enabled.
	TLS server.TLSSettings
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks and returns the results.
func (c *Checker) RunAll(ctx context.Context, t Target) []CheckResult {
	logDir := logDirFor(t.LogPath)

	results := []CheckResult{
		c.CheckCorpus(t.CorpusPath),
		c.CheckWritePermissions(logDir),
		c.CheckDiskSpace(logDir),
		c.CheckFileDescriptors(t.MaxConnections),
	}
	if t.ListenAddr != "" {
		results = append(results, c.CheckPort(ctx, t.ListenAddr))
	}
	if t.TLS.Enabled {
		results = append(results, c.CheckTLS(t.TLS))
	}
	return results
}

// logDirFor returns the directory holding the query log. The Badger
// backend uses a directory, the others a file.
func logDirFor(path string) string {
	if path == "" {
		return "."
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	return filepath.Dir(path)
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints one line per check, then the overall status and
// the failures and warnings again so they are not lost in a long list.
func (c *Checker) PrintResults(results []CheckResult) {
	out := output.New(c.output)
	styles := out.Styles()

	out.Header("linesearch system check")
	out.Newline()

	var failed, warned []CheckResult
	for _, r := range results {
		label := styles.Success.Render("[" + r.Status.String() + "]")
		switch {
		case r.IsCritical():
			label = styles.Error.Render("[" + r.Status.String() + "]")
			failed = append(failed, r)
		case r.Status != StatusPass:
			label = styles.Warning.Render("[" + r.Status.String() + "]")
			warned = append(warned, r)
		}
		out.Statusf(label, "%s: %s", r.Name, r.Message)
		if c.verbose && r.Details != "" {
			out.Status("", "   "+styles.Dim.Render(r.Details))
		}
	}

	out.Newline()
	out.Statusf("", "Status: %s", strings.ToUpper(c.SummaryStatus(results)))

	summarize := func(kind string, rs []CheckResult) {
		if len(rs) == 0 {
			return
		}
		out.Newline()
		out.Statusf("", "%d %s(s):", len(rs), kind)
		for _, r := range rs {
			out.Statusf("", "  - %s: %s", r.Name, r.Message)
		}
	}
	summarize("error", failed)
	summarize("warning", warned)
}

// CheckWritePermissions checks that the query log directory is writable.
// A directory that does not exist yet passes if it can be created.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{
		Name:     "log_store_writable",
		Required: true,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}

	f, err := os.CreateTemp(dir, ".linesearch-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = dir
	return result
}
