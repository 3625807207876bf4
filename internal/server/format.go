package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/linesearch/internal/engine"
	"github.com/Aman-CERP/linesearch/internal/logstore"
)

// Reply headlines.
const (
	HeadlineExists   = "STRING EXISTS"
	HeadlineNotFound = "STRING NOT_FOUND"
	errorPrefix      = "ERROR: "
	notAvailable     = "N/A"
)

// debugBlock is the part of a create_log reply after the headline.
type debugBlock struct {
	query     string
	ip        string
	elapsed   time.Duration
	timestamp time.Time
	logID     string
}

// FormatResult renders an engine result as a create_log reply.
func FormatResult(res engine.Result) string {
	headline := HeadlineNotFound
	switch res.Status {
	case logstore.StatusFound:
		headline = HeadlineExists
	case logstore.StatusError:
		headline = errorPrefix + res.ErrorDetail
	}
	return render(headline, debugBlock{
		query:     res.Query,
		ip:        res.Addr,
		elapsed:   res.ExecutionTime,
		timestamp: res.Timestamp,
		logID:     res.LogID,
	})
}

// FormatError renders a reply for a request that never reached the
// engine. An empty query prints as N/A.
func FormatError(message, query, ip string) string {
	return render(errorPrefix+message, debugBlock{
		query:     query,
		ip:        ip,
		timestamp: time.Now(),
	})
}

func render(headline string, d debugBlock) string {
	var b strings.Builder
	b.WriteString(headline)
	b.WriteString("\nDEBUG:\n")
	b.WriteString("  Query: " + orNA(d.query) + "\n")
	b.WriteString("  Requesting IP: " + orNA(d.ip) + "\n")
	b.WriteString("  Execution Time: " + strconv.FormatFloat(d.elapsed.Seconds(), 'f', -1, 64) + "s\n")
	b.WriteString("  Timestamp: " + d.timestamp.UTC().Format(time.RFC3339Nano) + "\n")
	b.WriteString("  Log ID: " + orNA(d.logID) + "\n")
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
