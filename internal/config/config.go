package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"tgforward/internal/constants"
	"tgforward/internal/models"
)

var (
	ErrMissingGatewayURL = models.ConfigError{Message: "missing Telegram gateway URL"}
	ErrMissingAPIHash    = models.ConfigError{Message: "missing Telegram API hash"}
	ErrMissingSource     = models.ConfigError{Message: "missing source channel"}
	ErrMissingTarget     = models.ConfigError{Message: "missing target channel"}
	ErrMissingDBPath     = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path) // #nosec G304 - operator-supplied config path
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Telegram.GatewayURL == "" {
		return ErrMissingGatewayURL
	}
	if c.Telegram.APIHash == "" {
		return ErrMissingAPIHash
	}
	if c.Telegram.APIID <= 0 {
		return models.ConfigError{Message: "telegram API ID must be a positive integer"}
	}
	if c.Telegram.SourceChannel == "" {
		return ErrMissingSource
	}
	if c.Telegram.TargetChannel == "" {
		return ErrMissingTarget
	}
	if c.Telegram.PosterUsername == "" && !c.Telegram.BypassSenderCheck {
		return models.ConfigError{Message: "poster username is required unless bypassSenderCheck is set"}
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Telegram.PollIntervalSec <= 0 {
		c.Telegram.PollIntervalSec = constants.DefaultPollIntervalSec
	}
	if c.Telegram.FetchLimit <= 0 {
		c.Telegram.FetchLimit = constants.DefaultFetchLimit
	}
	if c.Telegram.FetchWindowSec <= 0 {
		c.Telegram.FetchWindowSec = constants.DefaultFetchWindowSec
	}
	if c.Telegram.HTTPTimeoutSec <= 0 {
		c.Telegram.HTTPTimeoutSec = constants.DefaultGatewayTimeoutSec
	}
	if c.Telegram.DeviceName == "" {
		c.Telegram.DeviceName = "tgforward"
	}

	if c.Auth.SessionTTLDays <= 0 {
		c.Auth.SessionTTLDays = constants.DefaultSessionTTLDays
	}
	if c.Auth.LoginTTLMinutes <= 0 {
		c.Auth.LoginTTLMinutes = constants.DefaultLoginTTLMinutes
	}
	if c.Auth.OtpWaitTimeoutSec <= 0 {
		c.Auth.OtpWaitTimeoutSec = constants.DefaultOtpWaitTimeoutSec
	}
	if c.Auth.SweepIntervalSec <= 0 {
		c.Auth.SweepIntervalSec = constants.DefaultLoginSweepIntervalSec
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultInitialBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultRetryAttempts
	}

	if c.Server.Port == "" {
		c.Server.Port = constants.DefaultServerPort
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("TELEGRAM_GATEWAY_URL"); url != "" {
		c.Telegram.GatewayURL = url
	}
	if hash := os.Getenv("TELEGRAM_API_HASH"); hash != "" {
		c.Telegram.APIHash = hash
	}
	if id := os.Getenv("TELEGRAM_API_ID"); id != "" {
		if parsed, err := strconv.Atoi(id); err == nil {
			c.Telegram.APIID = parsed
		}
	}
	if source := os.Getenv("SOURCE_CHANNEL"); source != "" {
		c.Telegram.SourceChannel = source
	}
	if target := os.Getenv("TARGET_CHANNEL"); target != "" {
		c.Telegram.TargetChannel = target
	}
	if poster := os.Getenv("POSTER_USERNAME"); poster != "" {
		c.Telegram.PosterUsername = poster
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}

	// SECURITY: the admin token is environment-only, never read from the file
	c.Server.AdminToken = os.Getenv("TGFORWARD_ADMIN_TOKEN")
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("TGFORWARD_ENV") == "production"

	if isProduction {
		if c.Server.AdminToken == "" {
			return models.ConfigError{Message: "admin token is required in production (set TGFORWARD_ADMIN_TOKEN environment variable)"}
		}
		if len(c.Server.AdminToken) < 32 {
			return models.ConfigError{Message: "admin token must be at least 32 characters long"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
	} else if c.Server.AdminToken == "" {
		fmt.Fprintf(os.Stderr, "WARNING: admin token not set. Set TGFORWARD_ADMIN_TOKEN environment variable to protect control endpoints.\n")
	}

	return nil
}
