package config

import (
	"context"
	"os"
	"sync"
	"time"

	"sendlater/internal/constants"
	"sendlater/internal/models"

	"github.com/sirupsen/logrus"
)

// Watcher polls the configuration file for edits and reloads it, so
// permission-set changes take effect without a restart.
type Watcher struct {
	configPath   string
	pollInterval time.Duration
	logger       *logrus.Logger
	mu           sync.RWMutex
	config       *models.Config
	callbacks    []func(*models.Config)
}

// NewWatcher creates a watcher around an already-loaded configuration.
func NewWatcher(configPath string, initial *models.Config, logger *logrus.Logger) *Watcher {
	return &Watcher{
		configPath:   configPath,
		pollInterval: time.Duration(constants.DefaultConfigPollIntervalSec) * time.Second,
		logger:       logger,
		config:       initial,
		callbacks:    make([]func(*models.Config), 0),
	}
}

// Start begins polling the configuration file for changes. It blocks
// until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	stat, err := os.Stat(w.configPath)
	if err != nil {
		return err
	}
	lastModTime := stat.ModTime()

	w.logger.WithField("path", w.configPath).Info("Configuration watcher started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Configuration watcher stopping")
			return nil

		case <-ticker.C:
			stat, err := os.Stat(w.configPath)
			if err != nil {
				w.logger.WithError(err).Error("Failed to stat configuration file")
				continue
			}

			if stat.ModTime().After(lastModTime) {
				w.logger.Debug("Configuration file changed")
				lastModTime = stat.ModTime()

				// Small delay to ensure file write is complete
				time.Sleep(100 * time.Millisecond)
				w.reloadConfig()
			}
		}
	}
}

// GetConfig returns the current configuration (thread-safe)
func (w *Watcher) GetConfig() *models.Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Permissions returns the current permission sets. Satisfies the
// permission guard's ConfigProvider.
func (w *Watcher) Permissions() models.PermissionsConfig {
	return w.GetConfig().Permissions
}

// OnConfigChange registers a callback to be called when configuration changes
func (w *Watcher) OnConfigChange(callback func(*models.Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

func (w *Watcher) reloadConfig() {
	newConfig, err := LoadConfig(w.configPath)
	if err != nil {
		w.logger.WithError(err).Error("Failed to reload configuration")
		return
	}

	w.mu.Lock()
	oldConfig := w.config
	w.config = newConfig
	callbacks := make([]func(*models.Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("Configuration reloaded successfully")

	for _, callback := range callbacks {
		go func(cb func(*models.Config)) {
			defer func() {
				if r := recover(); r != nil {
					w.logger.WithField("panic", r).Error("Config change callback panicked")
				}
			}()
			cb(newConfig)
		}(callback)
	}

	w.logConfigChanges(oldConfig, newConfig)
}

func (w *Watcher) logConfigChanges(old, new *models.Config) {
	if old == nil {
		return
	}

	if old.RetentionDays != new.RetentionDays {
		w.logger.WithFields(logrus.Fields{
			"old": old.RetentionDays,
			"new": new.RetentionDays,
		}).Info("Retention days changed")
	}

	if len(old.Permissions.AdminGroups) != len(new.Permissions.AdminGroups) ||
		len(old.Permissions.AdminUsers) != len(new.Permissions.AdminUsers) ||
		len(old.Permissions.ReceiverGroups) != len(new.Permissions.ReceiverGroups) {
		w.logger.WithFields(logrus.Fields{
			"admin_groups":    len(new.Permissions.AdminGroups),
			"receiver_groups": len(new.Permissions.ReceiverGroups),
			"admin_users":     len(new.Permissions.AdminUsers),
		}).Info("Permission sets changed")
	}
}
