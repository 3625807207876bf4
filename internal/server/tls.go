package server

import (
	"crypto/tls"
	"os"

	lserrors "github.com/Aman-CERP/linesearch/internal/errors"
)

// LoadTLSConfig builds a server TLS config from the configured key pair.
// Missing or unloadable material is a fatal configuration error.
func LoadTLSConfig(t TLSSettings) (*tls.Config, error) {
	if t.CertFile == "" || t.KeyFile == "" {
		return nil, lserrors.New(lserrors.ErrCodeTLSMaterialMissing,
			"TLS is enabled but cert_file or key_file is not set", nil)
	}
	for _, path := range []string{t.CertFile, t.KeyFile} {
		if _, err := os.Stat(path); err != nil {
			return nil, lserrors.New(lserrors.ErrCodeTLSMaterialMissing,
				"TLS material not found", err).WithDetail("path", path)
		}
	}

	cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
	if err != nil {
		return nil, lserrors.New(lserrors.ErrCodeTLSMaterialMissing,
			"TLS key pair could not be loaded", err).
			WithDetail("cert_file", t.CertFile).
			WithDetail("key_file", t.KeyFile)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
