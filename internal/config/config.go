package config

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/linesearch/internal/corpus"
	lserrors "github.com/Aman-CERP/linesearch/internal/errors"
	"github.com/Aman-CERP/linesearch/internal/index"
	"github.com/Aman-CERP/linesearch/internal/logging"
	"github.com/Aman-CERP/linesearch/internal/logstore"
	"github.com/Aman-CERP/linesearch/internal/server"
	"github.com/Aman-CERP/linesearch/internal/watcher"
)

// Config file names looked up in the working directory.
const (
	FileName    = ".linesearch.yaml"
	FileNameAlt = ".linesearch.yml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "LINESEARCH_"
)

// Config is the complete linesearch configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	TLS     TLSConfig     `yaml:"tls" json:"tls"`
	Corpus  CorpusConfig  `yaml:"corpus" json:"corpus"`
	Logs    LogsConfig    `yaml:"logs" json:"logs"`
	Batch   BatchConfig   `yaml:"batch" json:"batch"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig configures the TCP listener.
type ServerConfig struct {
	Host           string `yaml:"host" json:"host"`
	Port           int    `yaml:"port" json:"port"`
	MaxPayloadSize int    `yaml:"max_payload_size" json:"max_payload_size"`
	// MaxConnections bounds concurrent connections. 0 means unbounded.
	MaxConnections int `yaml:"max_connections" json:"max_connections"`
	// FrameGrace is a duration string such as "50ms".
	FrameGrace string `yaml:"frame_grace" json:"frame_grace"`
	LogLevel   string `yaml:"log_level" json:"log_level"`
	PIDFile    string `yaml:"pid_file" json:"pid_file"`
}

// TLSConfig configures TLS for the server and the CLI client.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	CertFile string `yaml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file" json:"key_file"`
	// CAFile is what the CLI client trusts. Defaults to CertFile, which
	// covers self-signed certificates.
	CAFile string `yaml:"ca_file" json:"ca_file"`
}

// CorpusConfig configures the searched file.
type CorpusConfig struct {
	Path          string `yaml:"path" json:"path"`
	RereadOnQuery bool   `yaml:"reread_on_query" json:"reread_on_query"`
	DefaultMode   string `yaml:"default_mode" json:"default_mode"`
	// Watch reloads the corpus on file changes. Only used when
	// reread_on_query is off.
	Watch         bool   `yaml:"watch" json:"watch"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
	PollInterval  string `yaml:"poll_interval" json:"poll_interval"`
	ForcePolling  bool   `yaml:"force_polling" json:"force_polling"`
}

// LogsConfig configures query log persistence.
type LogsConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path" json:"path"`
}

// BatchConfig configures the batch worker pool.
type BatchConfig struct {
	// Workers is the pool size. 0 means one per CPU.
	Workers int `yaml:"workers" json:"workers"`
}

// LoggingConfig configures the process log file.
type LoggingConfig struct {
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// DataDir returns ~/.linesearch, or a temp directory when there is no home.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".linesearch")
	}
	return filepath.Join(home, ".linesearch")
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           server.DefaultPort,
			MaxPayloadSize: server.DefaultMaxPayloadSize,
			FrameGrace:     server.DefaultFrameGrace.String(),
			LogLevel:       "info",
			PIDFile:        filepath.Join(DataDir(), "server.pid"),
		},
		Corpus: CorpusConfig{
			RereadOnQuery: true,
			DefaultMode:   index.ModeTrie.String(),
			WatchDebounce: watcher.DefaultOptions().DebounceWindow.String(),
			PollInterval:  watcher.DefaultOptions().PollInterval.String(),
		},
		Logs: LogsConfig{
			Backend: string(logstore.BackendJSON),
			Path:    filepath.Join(DataDir(), "logs.json"),
		},
		Logging: LoggingConfig{
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the user configuration file:
//   - $XDG_CONFIG_HOME/linesearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/linesearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "linesearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "linesearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "linesearch", "config.yaml")
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the configuration in order of increasing precedence:
//  1. Defaults
//  2. User config (GetUserConfigPath)
//  3. explicit, when set; otherwise .linesearch.yaml in dir
//  4. LINESEARCH_* environment variables
//
// An explicit file that does not exist is an error; the others are optional.
func Load(dir, explicit string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	if explicit != "" {
		if !fileExists(explicit) {
			return nil, lserrors.New(lserrors.ErrCodeConfigNotFound, "config file not found", nil).
				WithDetail("path", explicit)
		}
		if err := cfg.loadYAML(explicit); err != nil {
			return nil, err
		}
	} else if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, lserrors.ConfigError("invalid configuration", err)
	}
	return cfg, nil
}

// loadFromDir loads .linesearch.yaml or .linesearch.yml from dir, if present.
func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{FileName, FileNameAlt} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML overlays the keys present in path onto c. Unknown keys are
// rejected. Relative paths in the file are resolved against its directory.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return lserrors.ConfigError("failed to read config file", err).WithDetail("path", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// Decoding into a copy keeps c intact when the file is malformed.
	layer := *c
	var before []string
	for _, p := range layer.paths() {
		before = append(before, *p)
	}
	if err := dec.Decode(&layer); err != nil && !errors.Is(err, io.EOF) {
		return lserrors.ConfigError("failed to parse config file", err).WithDetail("path", path)
	}

	base := filepath.Dir(path)
	for i, p := range layer.paths() {
		if *p != before[i] {
			*p = resolvePath(base, *p)
		}
	}
	*c = layer
	return nil
}

// paths returns pointers to every path-valued field.
func (c *Config) paths() []*string {
	return []*string{
		&c.Server.PIDFile,
		&c.TLS.CertFile,
		&c.TLS.KeyFile,
		&c.TLS.CAFile,
		&c.Corpus.Path,
		&c.Logs.Path,
		&c.Logging.File,
	}
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return filepath.Join(base, p)
}

// applyEnvOverrides applies LINESEARCH_* environment variables.
func (c *Config) applyEnvOverrides() error {
	var (
		errs []error
		bad  []string
	)
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				bad = append(bad, EnvPrefix+name)
				return
			}
			*dst = n
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				bad = append(bad, EnvPrefix+name)
				return
			}
			*dst = b
		}
	}

	str("HOST", &c.Server.Host)
	num("PORT", &c.Server.Port)
	num("MAX_PAYLOAD_SIZE", &c.Server.MaxPayloadSize)
	num("MAX_CONNECTIONS", &c.Server.MaxConnections)
	str("FRAME_GRACE", &c.Server.FrameGrace)
	str("LOG_LEVEL", &c.Server.LogLevel)
	str("PID_FILE", &c.Server.PIDFile)
	flag("TLS_ENABLED", &c.TLS.Enabled)
	str("TLS_CERT_FILE", &c.TLS.CertFile)
	str("TLS_KEY_FILE", &c.TLS.KeyFile)
	str("TLS_CA_FILE", &c.TLS.CAFile)
	str("CORPUS_PATH", &c.Corpus.Path)
	flag("REREAD_ON_QUERY", &c.Corpus.RereadOnQuery)
	str("DEFAULT_MODE", &c.Corpus.DefaultMode)
	flag("CORPUS_WATCH", &c.Corpus.Watch)
	str("LOG_BACKEND", &c.Logs.Backend)
	str("LOG_PATH", &c.Logs.Path)
	num("BATCH_WORKERS", &c.Batch.Workers)
	str("LOG_FILE", &c.Logging.File)

	if len(errs) > 0 {
		return lserrors.ConfigError("invalid environment override", errors.Join(errs...)).
			WithDetail("vars", strings.Join(bad, ", "))
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxPayloadSize < 0 {
		return fmt.Errorf("server.max_payload_size must be non-negative, got %d", c.Server.MaxPayloadSize)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must be non-negative, got %d", c.Server.MaxConnections)
	}
	if _, err := parseDuration("server.frame_grace", c.Server.FrameGrace); err != nil {
		return err
	}
	if !logging.ValidLevel(c.Server.LogLevel) {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("tls.cert_file and tls.key_file are required when tls.enabled is true")
	}

	if c.Corpus.DefaultMode != "" {
		if _, ok := index.ParseMode(c.Corpus.DefaultMode); !ok {
			return fmt.Errorf("corpus.default_mode %q is not a search mode", c.Corpus.DefaultMode)
		}
	}
	if _, err := parseDuration("corpus.watch_debounce", c.Corpus.WatchDebounce); err != nil {
		return err
	}
	if _, err := parseDuration("corpus.poll_interval", c.Corpus.PollInterval); err != nil {
		return err
	}

	if _, err := logstore.ParseBackend(c.Logs.Backend); err != nil {
		return fmt.Errorf("logs.backend: %w", err)
	}

	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers must be non-negative, got %d", c.Batch.Workers)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxFiles < 0 {
		return fmt.Errorf("logging.max_size_mb and logging.max_files must be non-negative")
	}
	return nil
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ListenAddr is host:port for the server.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ClientAddr is the address a local client dials. Wildcard hosts become
// loopback.
func (c *Config) ClientAddr() string {
	host := c.Server.Host
	switch host {
	case "", "0.0.0.0":
		host = "127.0.0.1"
	case "::", "[::]":
		host = "::1"
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Server.Port))
}

// DefaultMode returns the parsed default search mode.
func (c *Config) DefaultMode() index.Mode {
	mode, ok := index.ParseMode(c.Corpus.DefaultMode)
	if !ok {
		return index.ModeTrie
	}
	return mode
}

// ServerSettings builds the value object the server core consumes.
func (c *Config) ServerSettings() server.Settings {
	grace, _ := parseDuration("server.frame_grace", c.Server.FrameGrace)
	return server.Settings{
		Addr: c.ListenAddr(),
		TLS: server.TLSSettings{
			Enabled:  c.TLS.Enabled,
			CertFile: c.TLS.CertFile,
			KeyFile:  c.TLS.KeyFile,
		},
		MaxPayloadSize: c.Server.MaxPayloadSize,
		MaxConnections: c.Server.MaxConnections,
		FrameGrace:     grace,
		CorpusPath:     c.Corpus.Path,
		RereadOnQuery:  c.Corpus.RereadOnQuery,
		DefaultMode:    c.DefaultMode(),
	}
}

// CorpusOptions builds the corpus store options from ServerSettings.
func (c *Config) CorpusOptions(logger *slog.Logger) corpus.Options {
	return c.ServerSettings().CorpusOptions(logger)
}

// WatchEnabled reports whether the corpus watcher should run. A watcher
// adds nothing when every query rereads the file.
func (c *Config) WatchEnabled() bool {
	return c.Corpus.Watch && !c.Corpus.RereadOnQuery
}

// WatchOptions builds the corpus watcher options.
func (c *Config) WatchOptions() watcher.Options {
	debounce, _ := parseDuration("corpus.watch_debounce", c.Corpus.WatchDebounce)
	poll, _ := parseDuration("corpus.poll_interval", c.Corpus.PollInterval)
	return watcher.Options{
		DebounceWindow: debounce,
		PollInterval:   poll,
		ForcePolling:   c.Corpus.ForcePolling,
	}.WithDefaults()
}

// LogStoreOptions builds the log store options.
func (c *Config) LogStoreOptions(logger *slog.Logger) (logstore.Options, error) {
	backend, err := logstore.ParseBackend(c.Logs.Backend)
	if err != nil {
		return logstore.Options{}, lserrors.ConfigError(err.Error(), err)
	}
	return logstore.Options{Backend: backend, Path: c.Logs.Path, Logger: logger}, nil
}

// BatchWorkers returns the batch pool size.
func (c *Config) BatchWorkers() int {
	if c.Batch.Workers > 0 {
		return c.Batch.Workers
	}
	return runtime.NumCPU()
}

// LoggingConfig builds the process logger configuration. Debug forces
// debug level and a log file.
func (c *Config) LoggingConfig(debug bool) logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Server.LogLevel
	cfg.FilePath = c.Logging.File
	if c.Logging.MaxSizeMB > 0 {
		cfg.MaxSizeMB = c.Logging.MaxSizeMB
	}
	if c.Logging.MaxFiles > 0 {
		cfg.MaxFiles = c.Logging.MaxFiles
	}
	if debug {
		cfg.Level = "debug"
		if cfg.FilePath == "" {
			cfg.FilePath = logging.DefaultLogPath()
		}
	}
	return cfg
}

// ClientTLS returns the TLS config the CLI client dials with, or nil when
// TLS is off.
func (c *Config) ClientTLS() (*tls.Config, error) {
	if !c.TLS.Enabled {
		return nil, nil
	}
	caFile := c.TLS.CAFile
	if caFile == "" {
		caFile = c.TLS.CertFile
	}
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, lserrors.New(lserrors.ErrCodeTLSMaterialMissing, "TLS CA file not readable", err).
			WithDetail("path", caFile)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, lserrors.New(lserrors.ErrCodeTLSMaterialMissing, "TLS CA file has no certificates", nil).
			WithDetail("path", caFile)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func parseDuration(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration such as \"50ms\", got %q", key, s)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be non-negative, got %s", key, s)
	}
	return d, nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
