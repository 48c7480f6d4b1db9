package config

import (
	"encoding/json"
	"fmt"
	"os"

	"sendlater/internal/constants"
	"sendlater/internal/models"
	"sendlater/internal/security"
)

var (
	ErrMissingOneBotURL = models.ConfigError{Message: "missing OneBot API base URL"}
	ErrMissingDBPath    = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	// Validate config file path to prevent directory traversal
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	return &config, nil
}

func validate(c *models.Config) error {
	if c.OneBot.APIBaseURL == "" {
		return ErrMissingOneBotURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	switch c.OneBot.EventMode {
	case "":
		c.OneBot.EventMode = "ws"
	case "ws", "webhook":
	default:
		return models.ConfigError{Message: fmt.Sprintf("unknown event mode %q (want ws or webhook)", c.OneBot.EventMode)}
	}
	if c.OneBot.EventMode == "ws" && c.OneBot.WSURL == "" {
		return models.ConfigError{Message: "missing OneBot WebSocket URL for ws event mode"}
	}

	if len(c.Permissions.AdminGroups) == 0 {
		return models.ConfigError{Message: "permissions.adminGroups must list at least one group"}
	}

	if c.OneBot.TimeoutSec <= 0 {
		c.OneBot.TimeoutSec = constants.DefaultOneBotTimeoutSec
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.CleanupSchedule == "" {
		c.CleanupSchedule = constants.DefaultCleanupSchedule
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 1.0
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("SENDLATER_ONEBOT_API_URL"); url != "" {
		c.OneBot.APIBaseURL = url
	}
	if url := os.Getenv("SENDLATER_ONEBOT_WS_URL"); url != "" {
		c.OneBot.WSURL = url
	}

	// SECURITY: the access token should come from the environment, not
	// the config file.
	if token := os.Getenv("SENDLATER_ONEBOT_TOKEN"); token != "" {
		c.OneBot.AccessToken = token
	}

	if path := os.Getenv("SENDLATER_DB_PATH"); path != "" {
		c.Database.Path = path
	}
}
