package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetViper isolates tests from each other and from the host environment.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validSettings() *Settings {
	s := &Settings{}
	s.Backend.BaseURL = "https://backend.example.org/api/"
	s.WebServer.Port = "8080"
	s.Security.LoginRate = 1
	s.Security.LoginBurst = 3
	return s
}

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	resetViper(t)

	path := writeConfig(t, `
backend:
  baseurl: https://backend.example.org/api
webserver:
  port: "9090"
logging:
  default_level: debug
  module_levels:
    catalog: trace
`)

	settings, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "https://backend.example.org/api", settings.Backend.BaseURL)
	assert.Equal(t, "https://localhost:7164/api", settings.Backend.ImageBaseURL, "image base falls back to the default")
	assert.Equal(t, 30*time.Second, settings.Backend.Timeout)
	assert.Equal(t, "9090", settings.WebServer.Port)
	assert.Equal(t, 86400, settings.WebServer.SessionMaxAge)
	assert.Equal(t, "debug", settings.Logging.DefaultLevel)
	assert.Equal(t, "trace", settings.Logging.ModuleLevels["catalog"])
	assert.Equal(t, "skybound/catalog", settings.Events.Topic)
	assert.Same(t, settings, GetSettings())
}

func TestLoadFromFileEnvironmentOverride(t *testing.T) {
	resetViper(t)
	t.Setenv("SKYBOUND_BACKEND_URL", "https://env.example.org/api")
	t.Setenv("SKYBOUND_PORT", "7070")

	settings, err := LoadFrom(writeConfig(t, "debug: true\n"))
	require.NoError(t, err)

	assert.True(t, settings.Debug)
	assert.Equal(t, "https://env.example.org/api", settings.Backend.BaseURL)
	assert.Equal(t, "7070", settings.WebServer.Port)
}

func TestLoadFromMissingFile(t *testing.T) {
	resetViper(t)

	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{name: "valid", mutate: func(*Settings) {}},
		{name: "missing backend", mutate: func(s *Settings) { s.Backend.BaseURL = "" }, wantErr: "backend.baseurl is required"},
		{name: "relative backend", mutate: func(s *Settings) { s.Backend.BaseURL = "/api" }, wantErr: "scheme and host"},
		{name: "bad port", mutate: func(s *Settings) { s.WebServer.Port = "http" }, wantErr: "webserver.port"},
		{name: "short secret", mutate: func(s *Settings) { s.WebServer.SessionSecret = "short" }, wantErr: "sessionsecret"},
		{name: "autotls without host", mutate: func(s *Settings) { s.Security.AutoTLS = true }, wantErr: "security.host"},
		{name: "rate without burst", mutate: func(s *Settings) { s.Security.LoginBurst = 0 }, wantErr: "loginburst"},
		{name: "sentry without dsn", mutate: func(s *Settings) { s.Sentry.Enabled = true }, wantErr: "sentry.dsn"},
		{
			name: "events without broker",
			mutate: func(s *Settings) {
				s.Events.Enabled = true
				s.Events.Topic = "t"
			},
			wantErr: "events.broker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(s)

			err := ValidateSettings(s)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "https://backend.example.org/api", s.Backend.BaseURL, "trailing slash is trimmed")
				assert.Equal(t, s.Backend.BaseURL, s.Backend.ImageBaseURL)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	resetViper(t)

	s := validSettings()
	require.NoError(t, ValidateSettings(s))
	s.WebServer.SessionSecret = GenerateRandomSecret()
	s.Logging.DefaultLevel = "warn"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveYAMLConfig(path, s))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, s.Backend.BaseURL, loaded.Backend.BaseURL)
	assert.Equal(t, s.WebServer.SessionSecret, loaded.WebServer.SessionSecret)
	assert.Equal(t, "warn", loaded.Logging.DefaultLevel)
}

func TestGenerateRandomSecret(t *testing.T) {
	t.Parallel()

	a, b := GenerateRandomSecret(), GenerateRandomSecret()
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}

func TestEnvValidators(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validateEnvURL("tcp://broker:1883"))
	assert.Error(t, validateEnvURL("broker"))
	assert.NoError(t, validateEnvPort("443"))
	assert.Error(t, validateEnvPort("70000"))
	assert.NoError(t, validateEnvLogLevel("WARN"))
	assert.Error(t, validateEnvLogLevel("loud"))
	assert.Error(t, validateEnvSecret("abc"))
	assert.Error(t, validateEnvBool("maybe"))
}

func TestSessionFilePath(t *testing.T) {
	t.Parallel()

	s := &Settings{}
	s.CLI.SessionFile = "/tmp/custom.json"
	path, err := s.SessionFilePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.json", path)

	s.CLI.SessionFile = ""
	path, err = s.SessionFilePath()
	require.NoError(t, err)
	assert.Equal(t, "session.json", filepath.Base(path))
}
