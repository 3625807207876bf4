package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lserrors "github.com/Aman-CERP/linesearch/internal/errors"
	"github.com/Aman-CERP/linesearch/internal/index"
	"github.com/Aman-CERP/linesearch/internal/logstore"
)

// isolate points the user config at an empty directory and clears
// overrides so the developer's own environment does not leak in.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, name := range []string{"HOST", "PORT", "CORPUS_PATH", "REREAD_ON_QUERY", "DEFAULT_MODE", "LOG_BACKEND", "LOG_LEVEL", "MAX_CONNECTIONS"} {
		t.Setenv(EnvPrefix+name, "")
		require.NoError(t, os.Unsetenv(EnvPrefix+name))
	}
	return t.TempDir()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 44445, cfg.Server.Port)
	assert.Equal(t, 65536, cfg.Server.MaxPayloadSize)
	assert.Equal(t, 0, cfg.Server.MaxConnections)
	assert.True(t, cfg.Corpus.RereadOnQuery)
	assert.Equal(t, "trie", cfg.Corpus.DefaultMode)
	assert.Equal(t, "json", cfg.Logs.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFiles(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_ProjectFileOverlaysDefaults(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, FileName), `
server:
  port: 5000
  max_connections: 8
corpus:
  path: data/words.txt
  reread_on_query: false
  default_mode: binary
logs:
  backend: sqlite
  path: logs.db
`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Server.MaxConnections)
	// Untouched keys keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 65536, cfg.Server.MaxPayloadSize)

	assert.False(t, cfg.Corpus.RereadOnQuery)
	assert.Equal(t, index.ModeSortedArray, cfg.DefaultMode())
	assert.Equal(t, filepath.Join(dir, "data", "words.txt"), cfg.Corpus.Path)
	assert.Equal(t, filepath.Join(dir, "logs.db"), cfg.Logs.Path)
}

func TestLoad_YMLFallback(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, FileNameAlt), "server:\n  port: 6000\n")

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Server.Port)
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)
	writeFile(t, GetUserConfigPath(), "server:\n  port: 1111\n  host: 10.0.0.1\n")
	writeFile(t, filepath.Join(dir, FileName), "server:\n  port: 2222\n")

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 2222, cfg.Server.Port, "project file beats user file")
	assert.Equal(t, "10.0.0.1", cfg.Server.Host, "user file beats defaults")

	t.Setenv("LINESEARCH_PORT", "3333")
	t.Setenv("LINESEARCH_REREAD_ON_QUERY", "false")
	cfg, err = Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 3333, cfg.Server.Port, "env beats files")
	assert.False(t, cfg.Corpus.RereadOnQuery)
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, FileName), "server:\n  port: 2222\n")
	explicit := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, explicit, "server:\n  port: 4444\n")

	cfg, err := Load(dir, explicit)
	require.NoError(t, err)
	assert.Equal(t, 4444, cfg.Server.Port, "explicit file replaces the project file")

	_, err = Load(dir, filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, lserrors.ErrCodeConfigNotFound, lserrors.GetCode(err))
	assert.True(t, lserrors.IsFatal(err))
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "server:\n  prot: 1\n"},
		{"bad yaml", "server: [\n"},
		{"wrong type", "server:\n  port: many\n"},
		{"port out of range", "server:\n  port: 70000\n"},
		{"bad mode", "corpus:\n  default_mode: quantum\n"},
		{"bad backend", "logs:\n  backend: postgres\n"},
		{"bad duration", "server:\n  frame_grace: soon\n"},
		{"bad level", "server:\n  log_level: loud\n"},
		{"tls without material", "tls:\n  enabled: true\n"},
		{"negative connections", "server:\n  max_connections: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			writeFile(t, filepath.Join(dir, FileName), tt.content)

			_, err := Load(dir, "")
			require.Error(t, err)
			assert.Equal(t, lserrors.CategoryConfig, lserrors.GetCategory(err))
		})
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, FileName), "")

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_BadEnvOverride(t *testing.T) {
	dir := isolate(t)
	t.Setenv("LINESEARCH_PORT", "eighty")
	t.Setenv("LINESEARCH_TLS_ENABLED", "maybe")

	_, err := Load(dir, "")
	require.Error(t, err)
	assert.Equal(t, lserrors.ErrCodeConfigInvalid, lserrors.GetCode(err))

	se, ok := lserrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "LINESEARCH_PORT, LINESEARCH_TLS_ENABLED", se.Details["vars"])

	cli := lserrors.FormatForCLI(err)
	assert.Contains(t, cli, "vars: LINESEARCH_PORT, LINESEARCH_TLS_ENABLED")
	assert.Contains(t, cli, `LINESEARCH_PORT: strconv.Atoi: parsing "eighty"`)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	dir := isolate(t)
	cfg := NewConfig()
	cfg.Server.Port = 7777
	cfg.Corpus.Path = "/srv/words.txt"
	cfg.Corpus.Watch = true

	path := filepath.Join(dir, "nested", FileName)
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(filepath.Dir(path), "")
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestBuilders(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 9000
	cfg.Server.FrameGrace = "75ms"
	cfg.Server.MaxConnections = 4
	cfg.Corpus.Path = "/data/words.txt"
	cfg.Corpus.RereadOnQuery = false
	cfg.Corpus.DefaultMode = "dict"
	cfg.Corpus.WatchDebounce = "1s"
	cfg.Logs.Backend = "badger"
	cfg.Logs.Path = "/data/logs"

	s := cfg.ServerSettings()
	assert.Equal(t, "127.0.0.1:9000", s.Addr)
	assert.Equal(t, 75*time.Millisecond, s.FrameGrace)
	assert.Equal(t, 4, s.MaxConnections)
	assert.Equal(t, index.ModeHashMap, s.DefaultMode)
	assert.False(t, s.RereadOnQuery)
	assert.NoError(t, s.Validate())

	co := cfg.CorpusOptions(nil)
	assert.Equal(t, "/data/words.txt", co.Path)
	assert.False(t, co.RereadOnQuery)
	assert.Equal(t, s.CorpusOptions(nil), co)

	lo, err := cfg.LogStoreOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, logstore.BackendBadger, lo.Backend)
	assert.Equal(t, "/data/logs", lo.Path)

	assert.Equal(t, time.Second, cfg.WatchOptions().DebounceWindow)
	assert.Equal(t, runtime.NumCPU(), cfg.BatchWorkers())
	cfg.Batch.Workers = 3
	assert.Equal(t, 3, cfg.BatchWorkers())
}

func TestWatchEnabled(t *testing.T) {
	cfg := NewConfig()
	cfg.Corpus.Watch = true
	assert.False(t, cfg.WatchEnabled(), "reread on query makes the watcher redundant")

	cfg.Corpus.RereadOnQuery = false
	assert.True(t, cfg.WatchEnabled())
}

func TestClientAddr(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "127.0.0.1:44445", cfg.ClientAddr())

	cfg.Server.Host = "::"
	assert.Equal(t, "[::1]:44445", cfg.ClientAddr())

	cfg.Server.Host = "search.internal"
	assert.Equal(t, "search.internal:44445", cfg.ClientAddr())
}

func TestLoggingConfig(t *testing.T) {
	cfg := NewConfig()
	lc := cfg.LoggingConfig(false)
	assert.Equal(t, "info", lc.Level)
	assert.Empty(t, lc.FilePath)

	lc = cfg.LoggingConfig(true)
	assert.Equal(t, "debug", lc.Level)
	assert.NotEmpty(t, lc.FilePath)
}

func TestClientTLS(t *testing.T) {
	cfg := NewConfig()
	tc, err := cfg.ClientTLS()
	require.NoError(t, err)
	assert.Nil(t, tc)

	cfg.TLS.Enabled = true
	cfg.TLS.CertFile = filepath.Join(t.TempDir(), "missing.pem")
	_, err = cfg.ClientTLS()
	require.Error(t, err)
	assert.Equal(t, lserrors.ErrCodeTLSMaterialMissing, lserrors.GetCode(err))

	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	writeFile(t, garbage, "nope")
	cfg.TLS.CAFile = garbage
	_, err = cfg.ClientTLS()
	assert.Error(t, err)
}
