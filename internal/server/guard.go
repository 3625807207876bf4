package server

import (
	"fmt"
	"log/slog"

	lserrors "github.com/Aman-CERP/linesearch/internal/errors"
)

// Guard enforces the maximum frame size. Oversized frames are rejected,
// never truncated.
type Guard struct {
	max int
}

// NewGuard returns a guard for max bytes. A non-positive max is a
// configuration mistake; it is replaced by DefaultMaxPayloadSize rather
// than disabling the check.
func NewGuard(max int, logger *slog.Logger) *Guard {
	if max <= 0 {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("invalid max payload size, using default",
			slog.Int("configured", max),
			slog.Int("default", DefaultMaxPayloadSize))
		max = DefaultMaxPayloadSize
	}
	return &Guard{max: max}
}

// Max returns the enforced limit.
func (g *Guard) Max() int { return g.max }

// Check returns ERR_304_PAYLOAD_TOO_LARGE if payload exceeds the limit.
func (g *Guard) Check(payload []byte) error {
	if len(payload) > g.max {
		return lserrors.ProtocolError(lserrors.ErrCodePayloadTooLarge,
			fmt.Sprintf("Payload too large. Max allowed: %d bytes", g.max)).
			WithDetail("size", fmt.Sprint(len(payload)))
	}
	return nil
}
