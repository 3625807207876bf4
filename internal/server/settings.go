// Package server is the TCP front end of linesearch. Each connection
// carries one JSON request and gets one reply, after which the server
// closes it.
package server

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/Aman-CERP/linesearch/internal/corpus"
	"github.com/Aman-CERP/linesearch/internal/index"
)

const (
	// DefaultPort is the port the server listens on when none is configured.
	DefaultPort = 44445
	// DefaultMaxPayloadSize bounds request and reply frames in bytes.
	DefaultMaxPayloadSize = 65536
	// DefaultFrameGrace is how long to wait for the rest of a request that
	// arrived in several segments.
	DefaultFrameGrace = 50 * time.Millisecond
)

// TLSSettings holds the certificate material for a TLS listener.
type TLSSettings struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

// Settings is everything the server core needs. It is built from
// configuration by the caller; the core never reads config files. The
// corpus fields configure the store and engine behind the server, so
// callers build those from the same value.
type Settings struct {
	// Addr is the listen address, host:port.
	Addr string
	TLS  TLSSettings
	// MaxPayloadSize bounds inbound and outbound frames. Non-positive
	// values fall back to DefaultMaxPayloadSize.
	MaxPayloadSize int
	// MaxConnections bounds concurrently handled connections.
	// Zero means unbounded.
	MaxConnections int
	// FrameGrace bounds continuation reads of a segmented request.
	FrameGrace time.Duration
	// CorpusPath is the file queries are matched against.
	CorpusPath string
	// RereadOnQuery reloads the corpus before every query.
	RereadOnQuery bool
	// DefaultMode is used when a request's algo is empty.
	DefaultMode index.Mode
}

// DefaultSettings returns settings for a plain TCP listener on all
// interfaces at DefaultPort.
func DefaultSettings() Settings {
	return Settings{
		Addr:           net.JoinHostPort("0.0.0.0", strconv.Itoa(DefaultPort)),
		MaxPayloadSize: DefaultMaxPayloadSize,
		FrameGrace:     DefaultFrameGrace,
		RereadOnQuery:  true,
		DefaultMode:    index.ModeTrie,
	}
}

// CorpusOptions returns the options for the store the server answers from.
func (s Settings) CorpusOptions(logger *slog.Logger) corpus.Options {
	return corpus.Options{
		Path:          s.CorpusPath,
		RereadOnQuery: s.RereadOnQuery,
		Logger:        logger,
	}
}

// Validate checks settings that cannot be defaulted.
func (s Settings) Validate() error {
	if _, _, err := net.SplitHostPort(s.Addr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", s.Addr, err)
	}
	if s.MaxConnections < 0 {
		return fmt.Errorf("max connections cannot be negative")
	}
	if s.FrameGrace < 0 {
		return fmt.Errorf("frame grace cannot be negative")
	}
	if !s.DefaultMode.Valid() {
		return fmt.Errorf("invalid default mode")
	}
	return nil
}
