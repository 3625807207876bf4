package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the floor for the file descriptor limit.
const MinFileDescriptors = 1024

// fdHeadroom covers the listener, the corpus, the query log and stdio.
const fdHeadroom = 64

// CheckFileDescriptors checks that the file descriptor limit covers the
// connection limit. An unbounded server only gets a warning when the limit
// is below MinFileDescriptors.
func (c *Checker) CheckFileDescriptors(maxConnections int) CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: true,
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	currentLimit := uint64(rLimit.Cur)
	need := uint64(MinFileDescriptors)
	if maxConnections > 0 {
		need = max(need, uint64(maxConnections)+fdHeadroom)
	}
	result.Message = fmt.Sprintf("%d (minimum: %d)", currentLimit, need)

	switch {
	case currentLimit >= need:
		result.Status = StatusPass
	case maxConnections == 0:
		result.Status = StatusWarn
		result.Details = "Set server.max_connections or run 'ulimit -n 10240'"
	default:
		result.Status = StatusFail
		result.Details = "Lower server.max_connections or run 'ulimit -n 10240'"
	}
	return result
}
