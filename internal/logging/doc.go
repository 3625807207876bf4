// Package logging configures structured slog output for linesearch.
// Logs go to stderr by default; with --debug (or logging.file in the config)
// they are also written as JSON lines to a size-rotated file under
// ~/.linesearch/logs/.
package logging
