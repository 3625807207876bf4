// Package preflight checks that a linesearch server can start and keep
// running on this machine with the given settings.
//
// The package validates:
//   - The corpus file exists, is readable and holds valid UTF-8
//   - The query log location is writable and has free disk space
//   - The listen address is free
//   - The file descriptor limit covers the connection limit
//   - TLS material loads, when TLS is enabled
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, target)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
