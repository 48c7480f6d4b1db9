// Package database implements the durable job store on sqlite. It is
// the single source of truth for job state; the scheduler's timer set
// is only a cache derived from it.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"sendlater/internal/migrations"
	"sendlater/internal/models"
	"sendlater/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	// Validate database path to prevent directory traversal
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// SaveJob upserts a job. The write is durable before SaveJob returns;
// the scheduler relies on that for its crash-consistency contract.
func (d *Database) SaveJob(ctx context.Context, job *models.Job) error {
	encryptedBody, err := d.encryptor.EncryptIfEnabled(job.Body)
	if err != nil {
		return fmt.Errorf("failed to encrypt body: %w", err)
	}

	encryptedRef, err := d.encryptor.EncryptIfEnabled(job.SourceMessageRef)
	if err != nil {
		return fmt.Errorf("failed to encrypt message ref: %w", err)
	}

	query := `
		INSERT INTO jobs (
			id, action, fire_at, body, target_group, source_message_ref,
			status, created_by, origin_group, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			action = excluded.action,
			fire_at = excluded.fire_at,
			body = excluded.body,
			target_group = excluded.target_group,
			source_message_ref = excluded.source_message_ref,
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	return withWriteRetry(ctx, func() error {
		_, err := d.db.ExecContext(ctx, query,
			job.ID,
			job.Action,
			job.FireAt,
			encryptedBody,
			nullable(job.TargetGroup),
			nullable(encryptedRef),
			job.Status,
			job.CreatedBy,
			job.OriginGroup,
			job.CreatedAt,
			job.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
		return nil
	}, "save job")
}

// GetJob returns the job or (nil, nil) when the id is unknown.
func (d *Database) GetJob(ctx context.Context, id string) (*models.Job, error) {
	query := `
		SELECT id, action, fire_at, body, target_group, source_message_ref,
		       status, created_by, origin_group, created_at, updated_at
		FROM jobs
		WHERE id = ?
	`

	job, err := d.scanJob(d.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// TransitionJobStatus atomically moves a job from one status to
// another and reports whether this caller won the transition. It is
// the at-most-once execution gate: only the caller that wins
// pending -> firing may invoke the action executor, and a concurrent
// cancel can win pending -> cancelled instead, never both.
func (d *Database) TransitionJobStatus(ctx context.Context, id string, from, to models.JobStatus) (bool, error) {
	query := `
		UPDATE jobs
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	var rows int64
	err := withWriteRetry(ctx, func() error {
		result, err := d.db.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
		if err != nil {
			return fmt.Errorf("failed to update job status: %w", err)
		}
		rows, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		return nil
	}, "transition job status")
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}

// ListJobs returns jobs matching the filter, ordered by fire time
// ascending with ties broken by id, so query output is reproducible.
// The body pattern is applied after decryption; sqlite has no REGEXP
// by default.
func (d *Database) ListJobs(ctx context.Context, filter models.JobFilter) ([]models.Job, error) {
	var bodyRe *regexp.Regexp
	if filter.BodyPattern != "" {
		re, err := regexp.Compile(filter.BodyPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid body pattern: %w", err)
		}
		bodyRe = re
	}

	query := `
		SELECT id, action, fire_at, body, target_group, source_message_ref,
		       status, created_by, origin_group, created_at, updated_at
		FROM jobs
		WHERE 1=1
	`
	var args []interface{}

	if len(filter.Statuses) > 0 {
		query += " AND status IN (?" + strings.Repeat(",?", len(filter.Statuses)-1) + ")"
		for _, s := range filter.Statuses {
			args = append(args, s)
		}
	}
	if filter.GroupID != "" {
		query += " AND target_group = ?"
		args = append(args, filter.GroupID)
	}
	if filter.FireAfter != nil {
		query += " AND fire_at >= ?"
		args = append(args, *filter.FireAfter)
	}
	if filter.FireBefore != nil {
		query += " AND fire_at <= ?"
		args = append(args, *filter.FireBefore)
	}
	query += " ORDER BY fire_at ASC, id ASC"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var jobs []models.Job
	for rows.Next() {
		job, err := d.scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		if bodyRe != nil && !bodyRe.MatchString(job.Body) {
			continue
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}

	return jobs, nil
}

// DeleteJob removes a job. Deleting an unknown id is a no-op, not an
// error.
func (d *Database) DeleteJob(ctx context.Context, id string) error {
	return withWriteRetry(ctx, func() error {
		if _, err := d.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete job: %w", err)
		}
		return nil
	}, "delete job")
}

// CleanupTerminalJobs removes done, failed and cancelled jobs whose
// last transition is older than the retention window. Pending and
// firing jobs are never touched.
func (d *Database) CleanupTerminalJobs(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	query := `
		DELETE FROM jobs
		WHERE status IN (?, ?, ?) AND updated_at < ?
	`
	_, err := d.db.ExecContext(ctx, query,
		models.JobStatusDone, models.JobStatusFailed, models.JobStatusCancelled, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup terminal jobs: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (d *Database) scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var encryptedBody string
	var targetGroup, encryptedRef sql.NullString

	err := row.Scan(
		&job.ID,
		&job.Action,
		&job.FireAt,
		&encryptedBody,
		&targetGroup,
		&encryptedRef,
		&job.Status,
		&job.CreatedBy,
		&job.OriginGroup,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Body, err = d.encryptor.DecryptIfEnabled(encryptedBody)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt body: %w", err)
	}

	if targetGroup.Valid {
		job.TargetGroup = targetGroup.String
	}
	if encryptedRef.Valid {
		job.SourceMessageRef, err = d.encryptor.DecryptIfEnabled(encryptedRef.String)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt message ref: %w", err)
		}
	}

	return &job, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
