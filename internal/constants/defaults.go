package constants

// Default scheduling and retention values
const (
	DefaultRetentionDays   = 30
	DefaultCleanupSchedule = "@daily"
	DefaultServerPort      = 8082
	DefaultBodyPreviewLen  = 30
)

// Default timeout and retry values
const (
	DefaultOneBotTimeoutSec      = 15
	DefaultDatabaseRetryAttempts = 3
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultGracefulShutdownSec   = 30
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultConfigPollIntervalSec = 5
	DefaultStreamReconnectMaxSec = 60
	ServerErrorChannelSize       = 1
	StreamReadLimitBytes         = 1 << 20
)

// At-rest encryption parameters
const (
	EncryptionSalt       = "sendlater-job-store-salt-v1"
	EncryptionIterations = 100000
	EncryptionKeySize    = 32
	EncryptionNonceSize  = 12
)

// Privacy settings
const (
	DefaultIDMaskVisible = 4
)
