package preflight

import (
	"context"
	"net"

	lserrors "github.com/Aman-CERP/linesearch/internal/errors"
	"github.com/Aman-CERP/linesearch/internal/server"
)

// CheckPort checks that addr can be bound.
func (c *Checker) CheckPort(ctx context.Context, addr string) CheckResult {
	result := CheckResult{
		Name:     "listen_address",
		Required: true,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		result.Details = "Run 'linesearch status' to see whether a server already holds it"
		return result
	}
	_ = ln.Close()

	result.Status = StatusPass
	result.Message = addr + " is free"
	return result
}

// CheckTLS checks that the certificate and key load as a pair.
func (c *Checker) CheckTLS(settings server.TLSSettings) CheckResult {
	result := CheckResult{
		Name:     "tls",
		Required: true,
	}

	if _, err := server.LoadTLSConfig(settings); err != nil {
		result.Status = StatusFail
		result.Message = lserrors.Message(err)
		result.Details = settings.CertFile + " / " + settings.KeyFile
		return result
	}

	result.Status = StatusPass
	result.Message = "certificate and key load"
	return result
}
