// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const minSessionSecretLength = 32

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateBackendSettings(&settings.Backend); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSecuritySettings(&settings.Security); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSentrySettings(&settings.Sentry); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateEventsSettings(&settings.Events); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateBackendSettings(settings *BackendSettings) error {
	if err := validateAbsoluteURL("backend.baseurl", settings.BaseURL); err != nil {
		return err
	}
	if settings.ImageBaseURL == "" {
		// Images are usually served by the backend itself
		settings.ImageBaseURL = settings.BaseURL
	} else if err := validateAbsoluteURL("backend.imagebaseurl", settings.ImageBaseURL); err != nil {
		return err
	}
	settings.BaseURL = strings.TrimRight(settings.BaseURL, "/")
	settings.ImageBaseURL = strings.TrimRight(settings.ImageBaseURL, "/")

	if settings.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative, got %s", settings.Timeout)
	}
	if settings.Timeout == 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.CacheTTL < 0 {
		return fmt.Errorf("backend.cachettl must not be negative, got %s", settings.CacheTTL)
	}
	return nil
}

func validateWebServerSettings(settings *WebServerSettings) error {
	port, err := strconv.Atoi(settings.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("webserver.port must be a number between 1 and 65535, got '%s'", settings.Port)
	}
	if settings.SessionSecret != "" && len(settings.SessionSecret) < minSessionSecretLength {
		return fmt.Errorf("webserver.sessionsecret must be at least %d characters", minSessionSecretLength)
	}
	if settings.SessionMaxAge < 0 {
		return fmt.Errorf("webserver.sessionmaxage must not be negative, got %d", settings.SessionMaxAge)
	}
	return nil
}

func validateSecuritySettings(settings *SecuritySettings) error {
	if settings.AutoTLS && settings.Host == "" {
		return fmt.Errorf("security.host must be set when autotls is enabled")
	}
	if settings.LoginRate < 0 {
		return fmt.Errorf("security.loginrate must not be negative, got %g", settings.LoginRate)
	}
	if settings.LoginRate > 0 && settings.LoginBurst < 1 {
		return fmt.Errorf("security.loginburst must be at least 1 when loginrate is set, got %d", settings.LoginBurst)
	}
	return nil
}

func validateSentrySettings(settings *SentrySettings) error {
	if settings.Enabled && settings.DSN == "" {
		return fmt.Errorf("sentry.dsn is required when sentry is enabled")
	}
	return nil
}

func validateEventsSettings(settings *EventsSettings) error {
	if !settings.Enabled {
		return nil
	}
	if err := validateAbsoluteURL("events.broker", settings.Broker); err != nil {
		return err
	}
	if settings.Topic == "" {
		return fmt.Errorf("events.topic is required when events are enabled")
	}
	return nil
}

func validateAbsoluteURL(key, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", key, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must include scheme and host, got '%s'", key, value)
	}
	return nil
}
