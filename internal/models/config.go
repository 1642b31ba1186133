package models

// ConfigError represents a configuration validation failure.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

// TelegramConfig describes the provider account and the forwarding channels.
type TelegramConfig struct {
	APIID             int    `json:"apiId"`
	APIHash           string `json:"apiHash"`
	GatewayURL        string `json:"gatewayUrl"`
	SourceChannel     string `json:"sourceChannel"`
	TargetChannel     string `json:"targetChannel"`
	PosterUsername    string `json:"posterUsername"`
	BypassSenderCheck bool   `json:"bypassSenderCheck"`
	PollIntervalSec   int    `json:"pollIntervalSec"`
	FetchLimit        int    `json:"fetchLimit"`
	FetchWindowSec    int    `json:"fetchWindowSec"`
	HTTPTimeoutSec    int    `json:"httpTimeoutSec"`
	DeviceName        string `json:"deviceName"`
}

// AuthConfig bounds the login handshake and the persisted session.
type AuthConfig struct {
	SessionTTLDays    int `json:"sessionTTLDays"`
	LoginTTLMinutes   int `json:"loginTTLMinutes"`
	OtpWaitTimeoutSec int `json:"otpWaitTimeoutSec"`
	SweepIntervalSec  int `json:"sweepIntervalSec"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type ServerConfig struct {
	Port       string `json:"port"`
	AdminToken string `json:"-"` // environment only, never from file
}

type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}

// Config is the root configuration document.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Auth     AuthConfig     `json:"auth"`
	Database DatabaseConfig `json:"database"`
	Server   ServerConfig   `json:"server"`
	Retry    RetryConfig    `json:"retry"`
	Tracing  TracingConfig  `json:"tracing"`
	LogLevel string         `json:"logLevel"`
}
