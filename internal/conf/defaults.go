// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets default values for every configuration key.
func setDefaultConfig() {
	viper.SetDefault("debug", false)
	viper.SetDefault("main.name", "SkyBound")

	viper.SetDefault("backend.baseurl", "https://localhost:7164/api")
	viper.SetDefault("backend.imagebaseurl", "https://localhost:7164/api")
	viper.SetDefault("backend.timeout", 30*time.Second)
	viper.SetDefault("backend.useragent", "SkyBound-Admin")
	viper.SetDefault("backend.cachettl", 15*time.Second)

	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.sessionsecret", "")
	viper.SetDefault("webserver.sessionmaxage", 86400)
	viper.SetDefault("webserver.metrics", true)

	viper.SetDefault("security.autotls", false)
	viper.SetDefault("security.host", "")
	viper.SetDefault("security.loginrate", 0.2)
	viper.SetDefault("security.loginburst", 5)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/skybound.log")
	viper.SetDefault("logging.file_output.level", "info")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")

	viper.SetDefault("events.enabled", false)
	viper.SetDefault("events.broker", "tcp://localhost:1883")
	viper.SetDefault("events.topic", "skybound/catalog")
	viper.SetDefault("events.username", "")
	viper.SetDefault("events.password", "")

	viper.SetDefault("cli.sessionfile", "")
}
