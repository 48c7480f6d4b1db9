package models

// ConfigError indicates an invalid or incomplete configuration file.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type OneBotConfig struct {
	APIBaseURL  string `json:"apiBaseUrl"`
	WSURL       string `json:"wsUrl,omitempty"`
	EventMode   string `json:"eventMode,omitempty"` // "ws" (default) or "webhook"
	AccessToken string `json:"accessToken,omitempty"`
	TimeoutSec  int    `json:"timeoutSec,omitempty"`
}

type ServerConfig struct {
	Port int `json:"port,omitempty"`
}

// PermissionsConfig holds the three editable id sets. An empty
// AdminUsers set means every member of an admin group is authorized;
// that fallback is evaluated at authorization time, not at load time.
type PermissionsConfig struct {
	AdminGroups    []string `json:"adminGroups"`
	ReceiverGroups []string `json:"receiverGroups"`
	AdminUsers     []string `json:"adminUsers"`
}

type TracingConfig struct {
	Enabled      bool    `json:"enabled"`
	OTLPEndpoint string  `json:"otlpEndpoint,omitempty"`
	UseStdout    bool    `json:"useStdout,omitempty"`
	SampleRate   float64 `json:"sampleRate,omitempty"`
}

type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs,omitempty"`
	MaxBackoffMs     int `json:"maxBackoffMs,omitempty"`
	MaxAttempts      int `json:"maxAttempts,omitempty"`
}

type Config struct {
	LogLevel     string         `json:"logLevel,omitempty"`
	Database     DatabaseConfig `json:"database"`
	AuditLogPath string         `json:"auditLogPath,omitempty"`
	// RetentionDays controls how long terminal jobs are kept for query
	// and audit. Zero or negative disables purging entirely.
	RetentionDays   int               `json:"retentionDays,omitempty"`
	CleanupSchedule string            `json:"cleanupSchedule,omitempty"`
	OneBot          OneBotConfig      `json:"onebot"`
	Server          ServerConfig      `json:"server,omitempty"`
	Permissions     PermissionsConfig `json:"permissions"`
	Tracing         TracingConfig     `json:"tracing,omitempty"`
	Retry           RetryConfig       `json:"retry,omitempty"`
}
