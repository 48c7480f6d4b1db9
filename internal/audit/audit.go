// Package audit writes the append-only operational log: every parse,
// authorization decision, schedule/cancel action and fire outcome.
// It is deliberately independent of the job store so a store outage
// is still diagnosable from the log.
package audit

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"sendlater/internal/models"
	"sendlater/internal/privacy"
	"sendlater/internal/security"
)

type Logger struct {
	log  *logrus.Logger
	file *os.File
}

// New opens the audit log at path, creating it if needed. An empty
// path discards entries (used in tests and minimal deployments).
func New(path string) (*Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)

	if path == "" {
		log.SetOutput(io.Discard)
		return &Logger{log: log}, nil
	}

	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid audit log path: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // #nosec G304 - path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	log.SetOutput(file)

	return &Logger{log: log, file: file}, nil
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Parse records the outcome of parsing one inbound command.
func (l *Logger) Parse(userID, groupID string, kind models.CommandKind, err error) {
	entry := l.log.WithFields(logrus.Fields{
		"event": "parse",
		"user":  privacy.MaskID(userID),
		"group": groupID,
		"kind":  kind,
	})
	if err != nil {
		entry.WithError(err).Warn("Command rejected by parser")
		return
	}
	entry.Info("Command parsed")
}

// Authorization records an allow/deny decision.
func (l *Logger) Authorization(userID, groupID string, allowed bool) {
	entry := l.log.WithFields(logrus.Fields{
		"event":   "authorization",
		"user":    privacy.MaskID(userID),
		"group":   groupID,
		"allowed": allowed,
	})
	if allowed {
		entry.Info("Command authorized")
	} else {
		entry.Warn("Command denied")
	}
}

// Scheduled records a newly persisted job. The body is masked so the
// log captures shape, not content.
func (l *Logger) Scheduled(job *models.Job) {
	l.log.WithFields(logrus.Fields{
		"event":  "scheduled",
		"job":    job.ID,
		"action": job.Action,
		"fireAt": job.FireAt,
		"group":  job.TargetGroup,
		"body":   privacy.MaskBody(job.Body),
	}).Info("Job scheduled")
}

// Cancelled records a cancel attempt and its outcome.
func (l *Logger) Cancelled(jobID string, outcome models.CancelOutcome) {
	l.log.WithFields(logrus.Fields{
		"event":   "cancel",
		"job":     jobID,
		"outcome": outcome,
	}).Info("Cancel processed")
}

// Fired records the outcome of one job execution attempt.
func (l *Logger) Fired(job *models.Job, messageID string, err error) {
	entry := l.log.WithFields(logrus.Fields{
		"event":  "fired",
		"job":    job.ID,
		"action": job.Action,
		"group":  job.TargetGroup,
	})
	if err != nil {
		entry.WithError(err).Error("Job execution failed")
		return
	}
	if messageID != "" {
		entry = entry.WithField("messageId", messageID)
	}
	entry.Info("Job executed")
}
