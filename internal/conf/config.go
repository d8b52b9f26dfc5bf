// config.go: configuration loading and persistence for SkyBound
package conf

import (
	"crypto/rand"
	"embed"
	"encoding/base64"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings contains all configuration options for the SkyBound application.
type Settings struct {
	Debug bool `yaml:"debug"` // true to enable debug mode

	Main struct {
		Name string `yaml:"name"` // instance name, used as MQTT client id and User-Agent suffix
	} `yaml:"main"`

	Backend   BackendSettings      `yaml:"backend"`
	WebServer WebServerSettings    `yaml:"webserver"`
	Security  SecuritySettings     `yaml:"security"`
	Logging   logger.LoggingConfig `yaml:"logging"`
	Sentry    SentrySettings       `yaml:"sentry"`
	Events    EventsSettings       `yaml:"events"`
	CLI       CLISettings          `yaml:"cli"`
}

// BackendSettings describes the REST backend that owns the catalog.
type BackendSettings struct {
	BaseURL      string        `yaml:"baseurl"`      // e.g. https://localhost:7164/api
	ImageBaseURL string        `yaml:"imagebaseurl"` // images are served from <imagebaseurl>/imagenes/<file>
	Timeout      time.Duration `yaml:"timeout"`      // default per-request timeout
	UserAgent    string        `yaml:"useragent"`
	CacheTTL     time.Duration `yaml:"cachettl"` // reference list cache, 0 disables
}

// WebServerSettings contains settings for the admin web server.
type WebServerSettings struct {
	Port          string `yaml:"port"`
	SessionSecret string `yaml:"sessionsecret"` // signs the session cookie
	SessionMaxAge int    `yaml:"sessionmaxage"` // seconds
	Metrics       bool   `yaml:"metrics"`       // expose /metrics
}

// SecuritySettings contains TLS and login throttling options.
type SecuritySettings struct {
	AutoTLS    bool    `yaml:"autotls"`
	Host       string  `yaml:"host"`       // required for AutoTLS
	LoginRate  float64 `yaml:"loginrate"`  // login attempts per second per client IP
	LoginBurst int     `yaml:"loginburst"` // burst of login attempts allowed
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled     bool   `yaml:"enabled"`
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// EventsSettings configures publishing of catalog change events to MQTT.
type EventsSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"` // tcp://host:1883
	Topic    string `yaml:"topic"`  // topic prefix, entity name is appended
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// CLISettings configures the command line client.
type CLISettings struct {
	SessionFile string `yaml:"sessionfile"` // empty means <config dir>/session.json
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	once             sync.Once
)

// Load reads the configuration from the default search paths.
func Load() (*Settings, error) {
	return LoadFrom("")
}

// LoadFrom reads the configuration from configFile, or from the default
// search paths when configFile is empty.
func LoadFrom(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileParsing).
			Context("operation", "unmarshal-config").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper(configFile string) error {
	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		// Invalid environment values are reported but do not stop startup
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml to the first config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	// Each installation gets its own cookie signing secret
	defaultConfig = strings.Replace(defaultConfig, `sessionsecret: ""`,
		fmt.Sprintf("sessionsecret: %q", GenerateRandomSecret()), 1)

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	viper.SetConfigFile(configPath)
	return viper.MergeInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() (string, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return "", errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "read-embedded-config").
			Build()
	}
	return string(data), nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if GetSettings() == nil {
			if _, err := Load(); err != nil {
				fmt.Fprintf(os.Stderr, "Error loading settings: %v\n", err)
				os.Exit(1)
			}
		}
	})
	return GetSettings()
}

// GetDefaultConfigPaths returns the directories searched for config.yaml, in order.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}

	return []string{
		filepath.Join(homeDir, ".config", "skybound"),
		".",
		"/etc/skybound",
	}, nil
}

// FindConfigFile returns the first existing config.yaml in the search paths.
func FindConfigFile() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	for _, path := range configPaths {
		configFilePath := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFilePath); err == nil {
			return configFilePath, nil
		}
	}

	return "", errors.Newf("config file not found in %v", configPaths).
		Category(errors.CategoryNotFound).
		Build()
}

// SaveYAMLConfig writes settings to configPath.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Write to a temporary file in the same directory and rename it into place
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}

// GenerateRandomSecret generates a URL-safe base64 encoded random string
// suitable for signing session cookies. The output is 43 characters long,
// providing 256 bits of entropy.
func GenerateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate random secret: %v\n", err)
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}

// SessionFilePath returns where the CLI keeps its session.
func (s *Settings) SessionFilePath() (string, error) {
	if s.CLI.SessionFile != "" {
		return s.CLI.SessionFile, nil
	}
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	return filepath.Join(configPaths[0], "session.json"), nil
}
