// env.go - Environment variable configuration and validation for SkyBound
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "SKYBOUND_DEBUG", validateEnvBool},

		// Backend
		{"backend.baseurl", "SKYBOUND_BACKEND_URL", validateEnvURL},
		{"backend.imagebaseurl", "SKYBOUND_IMAGE_URL", validateEnvURL},

		// Web server
		{"webserver.port", "SKYBOUND_PORT", validateEnvPort},
		{"webserver.sessionsecret", "SKYBOUND_SESSION_SECRET", validateEnvSecret},

		// Logging and telemetry
		{"logging.default_level", "SKYBOUND_LOG_LEVEL", validateEnvLogLevel},
		{"sentry.dsn", "SKYBOUND_SENTRY_DSN", validateEnvURL},

		// Events
		{"events.broker", "SKYBOUND_MQTT_BROKER", validateEnvURL},
		{"events.username", "SKYBOUND_MQTT_USERNAME", nil},
		{"events.password", "SKYBOUND_MQTT_PASSWORD", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value: %v", binding.EnvVar, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0", value)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL must include scheme and host, got '%s'", value)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvSecret(value string) error {
	if len(value) < minSessionSecretLength {
		return fmt.Errorf("session secret must be at least %d characters", minSessionSecretLength)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("unknown log level '%s'", value)
}
