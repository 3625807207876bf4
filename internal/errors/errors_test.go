package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("open words.txt: no such file")

	// When: wrapping with ServiceError
	se := New(ErrCodeCorpusNotFound, "corpus not found", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, se)
	assert.Equal(t, originalErr, errors.Unwrap(se))
	assert.True(t, errors.Is(se, originalErr))
}

func TestServiceError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{"config", ErrCodeConfigInvalid, "port out of range", "[ERR_102_CONFIG_INVALID] port out of range"},
		{"protocol", ErrCodeInvalidJSON, "Invalid JSON format", "[ERR_301_INVALID_JSON] Invalid JSON format"},
		{"search", ErrCodeModeMismatch, "mode mismatch", "[ERR_402_MODE_MISMATCH] mode mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.code, tt.message, nil).Error())
		})
	}
}

func TestServiceError_Is_MatchesByCode(t *testing.T) {
	a := New(ErrCodePayloadTooLarge, "first", nil)
	b := New(ErrCodePayloadTooLarge, "second", nil)
	c := New(ErrCodeInvalidJSON, "first", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))

	wrapped := fmt.Errorf("handler: %w", a)
	assert.True(t, errors.Is(wrapped, b))
}

func TestCategoryAndSeverity_DerivedFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		severity Severity
	}{
		{ErrCodeTLSMaterialMissing, CategoryConfig, SeverityFatal},
		{ErrCodeCorpusUnreadable, CategoryIO, SeverityError},
		{ErrCodeServerBusy, CategoryProtocol, SeverityWarning},
		{ErrCodeIndexNotPrepared, CategorySearch, SeverityError},
		{ErrCodeInternal, CategoryInternal, SeverityError},
		{"BAD", CategoryInternal, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			se := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, se.Category)
			assert.Equal(t, tt.severity, se.Severity)
		})
	}
}

func TestHelpers_OnWrappedChains(t *testing.T) {
	se := ConfigError("tls enabled without key", nil)
	wrapped := fmt.Errorf("startup: %w", se)

	assert.True(t, IsFatal(wrapped))
	assert.Equal(t, ErrCodeConfigInvalid, GetCode(wrapped))
	assert.Equal(t, CategoryConfig, GetCategory(wrapped))

	plain := errors.New("boom")
	assert.False(t, IsFatal(plain))
	assert.Empty(t, GetCode(plain))
	assert.Empty(t, GetCategory(plain))
}

func TestMessage_HidesInternalDetails(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "Invalid action", Message(ProtocolError(ErrCodeUnknownAction, "Invalid action")))
	assert.Equal(t, "Internal server error", Message(errors.New("nil pointer dereference at 0x0")))
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestFormatForCLI(t *testing.T) {
	se := IOError("corpus unreadable", errors.New("permission denied")).
		WithDetail("path", "/data/words.txt")

	out := FormatForCLI(se)
	assert.Contains(t, out, "Error: corpus unreadable")
	assert.Contains(t, out, "path: /data/words.txt")
	assert.Contains(t, out, "Cause: permission denied")
	assert.Contains(t, out, "Code: ERR_202_CORPUS_UNREADABLE")

	assert.Contains(t, FormatForCLI(errors.New("plain")), "Code: ERR_501_INTERNAL")
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON(t *testing.T) {
	data, err := FormatJSON(New(ErrCodeMissingField, "Missing key: algo", nil))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "ERR_303_MISSING_FIELD", decoded["code"])
	assert.Equal(t, "PROTOCOL", decoded["category"])
}
