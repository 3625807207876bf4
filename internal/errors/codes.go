// Package errors provides structured error handling for linesearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (corpus, log store)
//   - 3XX: Protocol errors (wire decoding, payload limits, admission)
//   - 4XX: Search errors (index preparation, mode handling)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates corpus and log store I/O errors.
	CategoryIO Category = "IO"
	// CategoryProtocol indicates wire protocol errors.
	CategoryProtocol Category = "PROTOCOL"
	// CategorySearch indicates search index errors.
	CategorySearch Category = "SEARCH"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the service continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound     = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid      = "ERR_102_CONFIG_INVALID"
	ErrCodeTLSMaterialMissing = "ERR_103_TLS_MATERIAL_MISSING"

	// IO errors (200-299)
	ErrCodeCorpusNotFound   = "ERR_201_CORPUS_NOT_FOUND"
	ErrCodeCorpusUnreadable = "ERR_202_CORPUS_UNREADABLE"
	ErrCodeLogStoreFailed   = "ERR_203_LOG_STORE_FAILED"

	// Protocol errors (300-399)
	ErrCodeInvalidJSON     = "ERR_301_INVALID_JSON"
	ErrCodeUnknownAction   = "ERR_302_UNKNOWN_ACTION"
	ErrCodeMissingField    = "ERR_303_MISSING_FIELD"
	ErrCodePayloadTooLarge = "ERR_304_PAYLOAD_TOO_LARGE"
	ErrCodeServerBusy      = "ERR_305_SERVER_BUSY"

	// Search errors (400-499)
	ErrCodeIndexNotPrepared = "ERR_401_INDEX_NOT_PREPARED"
	ErrCodeModeMismatch     = "ERR_402_MODE_MISMATCH"
	ErrCodeUnknownMode      = "ERR_403_UNKNOWN_MODE"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryProtocol
	case '4':
		return CategorySearch
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
// Configuration problems are only detected at startup and abort the process.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConfigNotFound, ErrCodeConfigInvalid, ErrCodeTLSMaterialMissing:
		return SeverityFatal
	case ErrCodeServerBusy, ErrCodeUnknownMode:
		return SeverityWarning
	default:
		return SeverityError
	}
}
