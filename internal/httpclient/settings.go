package httpclient

import "github.com/skybound/skybound/internal/conf"

// ConfigFromSettings builds the client configuration for the backend
// section. userAgent overrides backend.useragent when non-empty.
func ConfigFromSettings(settings *conf.Settings, userAgent string) *Config {
	cfg := DefaultConfig()
	cfg.BaseURL = settings.Backend.BaseURL
	if settings.Backend.Timeout > 0 {
		cfg.DefaultTimeout = settings.Backend.Timeout
	}
	if settings.Backend.UserAgent != "" {
		cfg.UserAgent = settings.Backend.UserAgent
	}
	if userAgent != "" {
		cfg.UserAgent = userAgent
	}
	return &cfg
}
