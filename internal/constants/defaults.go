package constants

// Network and HTTP constants
const (
	DefaultHTTPTimeoutSec      = 30
	DefaultGatewayTimeoutSec   = 60
	DefaultServerPort          = "8080"
	DefaultReadTimeoutSec      = 15
	DefaultWriteTimeoutSec     = 15
	DefaultIdleTimeoutSec      = 60
	DefaultGracefulShutdownSec = 30
	MaxRequestBodyBytes        = 1 << 20
	ServerErrorChannelSize     = 1
)

// Forwarding loop constants
const (
	DefaultPollIntervalSec  = 30
	DefaultFetchLimit       = 20
	DefaultFetchWindowSec   = 120
	DefaultTickTimeoutSec   = 25
	DefaultInitialBackoffMs = 500
	DefaultMaxBackoffMs     = 5000
	DefaultRetryAttempts    = 3
)

// Authentication constants
const (
	DefaultSessionTTLDays        = 7
	DefaultLoginTTLMinutes       = 10
	DefaultLoginSweepIntervalSec = 60
	DefaultOtpWaitTimeoutSec     = 30
	MinPhoneNumberDigits         = 10
	MaxPhoneNumberDigits         = 15
	MaxOtpCodeLength             = 10
	MaxPasswordLength            = 256
)

// Database constants
const (
	DefaultDatabaseRetryAttempts = 3
	EncryptionSalt               = "tgforward-session-salt-v1"
)

// Encryption parameters for the session record at rest
const (
	KeySize    = 32
	NonceSize  = 12
	Iterations = 100000
)
