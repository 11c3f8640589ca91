package constants

// Default sync configuration values
const (
	DefaultSyncIntervalSec     = 30
	DefaultRetryBackoffMs      = 1000
	DefaultMaxBackoffMs        = 60000
	DefaultServerPort          = 8084
	DefaultGracefulShutdownSec = 30
)

// Typing indicator timings (milliseconds)
const (
	DefaultTypingThrottleMs = 1000
	DefaultTypingQuietMs    = 3000
	DefaultTypingTTLMs      = 5000
	DefaultTypingSweepMs    = 1000
)

// Outbox staleness monitoring
const (
	DefaultStaleCheckIntervalSec = 60
	DefaultStaleThresholdSec     = 300
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultStoreRetryAttempts    = 3
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultConnectProbeSec       = 10
)

// Validation limits
const (
	MinPhoneNumberLength = 7
	MaxPhoneNumberLength = 20
	MaxMessageLength     = 4096
	MaxRecordIDLength    = 64
)

// Encryption settings
const (
	PBKDF2Iterations  = 100000
	EncryptionKeySize = 32
	NonceSize         = 12
)
