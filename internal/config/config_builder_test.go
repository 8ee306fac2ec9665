package config

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── helpers ───────────────────────────────────────────────────────────────────

func writeTempJSONConfig(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

// ── newConfigBuilder ──────────────────────────────────────────────────────────

// TestNewConfigBuilder_InitialState verifies that a freshly created builder
// has no error and an empty configs slice.
func TestNewConfigBuilder_InitialState(t *testing.T) {
	b := newConfigBuilder()
	require.NotNil(t, b)
	assert.NoError(t, b.err)
	assert.Empty(t, b.configs)
}

// ── build ─────────────────────────────────────────────────────────────────────

// TestBuild_EmptyBuilder verifies that a config built from no sources fails
// validation: the engine cannot start without a durable queue DSN.
func TestBuild_EmptyBuilder(t *testing.T) {
	_, err := newConfigBuilder().build()
	assert.ErrorIs(t, err, ErrInvalidStorageConfigs)
}

// TestBuild_DefaultsAlone verifies that the baseline defaults are a complete,
// valid configuration on their own.
func TestBuild_DefaultsAlone(t *testing.T) {
	cfg, err := newConfigBuilder().withDefaults().build()
	require.NoError(t, err)

	assert.Equal(t, "umilog.db", cfg.Storage.DB.DSN)
	assert.Equal(t, "http://localhost:8080", cfg.Remote.BaseURL)
	assert.Equal(t, 5, cfg.Workers.MaxRetries)
	assert.Equal(t, "umilog.sync", cfg.App.KeyService)
}

// TestBuild_PropagatesBuilderError verifies that a pre-set b.err is wrapped
// and returned, with nil config.
func TestBuild_PropagatesBuilderError(t *testing.T) {
	b := newConfigBuilder()
	b.err = assert.AnError

	cfg, err := b.build()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "error occured during building config")
}

// TestBuild_EarlierSourcesWin verifies the merge precedence: mergo only fills
// fields that are still zero, so a source added earlier overrides later ones.
func TestBuild_EarlierSourcesWin(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs,
		&Config{Storage: Storage{DB: DB{DSN: "/override/engine.db"}}},
		&Config{
			Storage: Storage{DB: DB{DSN: "/ignored/engine.db"}},
			Remote:  Remote{BaseURL: "https://records.example.com"},
		},
	)
	b.withDefaults()

	cfg, err := b.build()
	require.NoError(t, err)

	assert.Equal(t, "/override/engine.db", cfg.Storage.DB.DSN)
	assert.Equal(t, "https://records.example.com", cfg.Remote.BaseURL)
	// untouched fields fall through to the defaults
	assert.Equal(t, 15*time.Second, cfg.Remote.RequestTimeout)
	assert.Equal(t, time.Minute, cfg.Workers.UploadInterval)
}

// ── withEnv ───────────────────────────────────────────────────────────────────

// TestWithEnv_ReturnsBuilder verifies the fluent interface.
func TestWithEnv_ReturnsBuilder(t *testing.T) {
	b := newConfigBuilder()
	assert.Same(t, b, b.withEnv())
}

// TestWithEnv_ReadsEnvVars verifies that environment variables are picked up.
func TestWithEnv_ReadsEnvVars(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("STORAGE_DB_DSN", "/env/engine.db")
	t.Setenv("REMOTE_BASE_URL", "https://env.example.com")

	b := newConfigBuilder()
	b.withEnv()

	require.Len(t, b.configs, 1)
	assert.Equal(t, "/env/engine.db", b.configs[0].Storage.DB.DSN)
	assert.Equal(t, "https://env.example.com", b.configs[0].Remote.BaseURL)
}

// TestWithEnv_OverridesDefaults verifies end-to-end precedence: env values
// beat defaults after the merge.
func TestWithEnv_OverridesDefaults(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("WORKERS_MAX_RETRIES", "9")

	cfg, err := newConfigBuilder().withEnv().withDefaults().build()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Workers.MaxRetries)
	assert.Equal(t, 25, cfg.Workers.BatchSize, "unset fields keep their defaults")
}

// ── withJSON ──────────────────────────────────────────────────────────────────

// TestWithJSON_ReturnsBuilder verifies the fluent interface.
func TestWithJSON_ReturnsBuilder(t *testing.T) {
	b := newConfigBuilder()
	assert.Same(t, b, b.withJSON())
}

// TestWithJSON_NoOp_WhenNoPathSet verifies that withJSON does nothing when
// no config has a JSONFilePath.
func TestWithJSON_NoOp_WhenNoPathSet(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &Config{})
	b.withJSON()

	assert.Len(t, b.configs, 1)
	assert.NoError(t, b.err)
}

// TestWithJSON_AppendsConfig_WhenValidFile verifies that a valid JSON file is
// parsed and appended after the sources that named it.
func TestWithJSON_AppendsConfig_WhenValidFile(t *testing.T) {
	payload := StructuredJSONConfig{}
	payload.Storage.DB.DSN = "/json/engine.db"
	payload.Remote.BaseURL = "https://json.example.com"
	path := writeTempJSONConfig(t, payload)

	b := newConfigBuilder()
	b.configs = append(b.configs, &Config{JSONFilePath: path})
	b.withJSON()

	require.NoError(t, b.err)
	require.Len(t, b.configs, 2)
	assert.Equal(t, "/json/engine.db", b.configs[1].Storage.DB.DSN)
	assert.Equal(t, "https://json.example.com", b.configs[1].Remote.BaseURL)
}

// TestWithJSON_SetsError_WhenFileNotFound verifies that a missing file path
// sets b.err.
func TestWithJSON_SetsError_WhenFileNotFound(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &Config{
		JSONFilePath: "/nonexistent/config.json",
	})
	b.withJSON()

	assert.Error(t, b.err)
}

// TestWithJSON_SetsError_WhenMalformedJSON verifies that invalid JSON content
// sets b.err.
func TestWithJSON_SetsError_WhenMalformedJSON(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "bad-*.json")
	require.NoError(t, err)
	_, err = f.WriteString("{not valid json")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	b := newConfigBuilder()
	b.configs = append(b.configs, &Config{JSONFilePath: f.Name()})
	b.withJSON()

	assert.Error(t, b.err)
}

// ── validate ──────────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	valid := func() *Config { return defaults() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "empty DSN",
			mutate:  func(c *Config) { c.Storage.DB.DSN = "" },
			wantErr: ErrInvalidStorageConfigs,
		},
		{
			name:    "in-memory DSN rejected",
			mutate:  func(c *Config) { c.Storage.DB.DSN = "file::memory:?cache=shared" },
			wantErr: ErrInvalidStorageConfigs,
		},
		{
			name:    "missing remote base URL",
			mutate:  func(c *Config) { c.Remote.BaseURL = "" },
			wantErr: ErrInvalidRemoteConfigs,
		},
		{
			name:    "zero request timeout",
			mutate:  func(c *Config) { c.Remote.RequestTimeout = 0 },
			wantErr: ErrInvalidRemoteConfigs,
		},
		{
			name:    "zero pull interval",
			mutate:  func(c *Config) { c.Workers.PullInterval = 0 },
			wantErr: ErrInvalidWorkerConfigs,
		},
		{
			name:    "non-positive retry budget",
			mutate:  func(c *Config) { c.Workers.MaxRetries = 0 },
			wantErr: ErrInvalidWorkerConfigs,
		},
		{
			name:    "missing keystore dir",
			mutate:  func(c *Config) { c.App.KeystoreDir = "" },
			wantErr: ErrInvalidAppConfigs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
