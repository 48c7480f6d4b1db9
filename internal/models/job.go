package models

import (
	"fmt"
	"time"
)

type JobAction string

const (
	ActionSend    JobAction = "send"
	ActionForward JobAction = "forward"
	ActionRecall  JobAction = "recall"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusFiring    JobStatus = "firing"
	JobStatusDone      JobStatus = "done"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further status transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is a persisted scheduled action. Status transitions are owned by
// the scheduler and go through the store's compare-and-set; nothing
// ever moves a job out of a terminal status.
type Job struct {
	ID               string    `json:"id"`
	Action           JobAction `json:"action"`
	FireAt           time.Time `json:"fireAt"`
	Body             string    `json:"body"`
	TargetGroup      string    `json:"targetGroup,omitempty"`
	SourceMessageRef string    `json:"sourceMessageRef,omitempty"`
	Status           JobStatus `json:"status"`
	CreatedBy        string    `json:"createdBy"`
	OriginGroup      string    `json:"originGroup"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NewJobID derives the id from creation time and origin group so ids
// are stable, sortable and greppable in the audit log.
func NewJobID(createdAt time.Time, originGroup string) string {
	return fmt.Sprintf("job_%s_%s", createdAt.Format("20060102150405.000000000"), originGroup)
}

// JobFilter selects jobs in a ListJobs scan. All fields are optional
// and AND-combined. Time bounds are inclusive over FireAt.
type JobFilter struct {
	Statuses    []JobStatus
	GroupID     string
	BodyPattern string // regular expression matched against the body
	FireAfter   *time.Time
	FireBefore  *time.Time
}

type CancelOutcome string

const (
	CancelOutcomeCancelled        CancelOutcome = "cancelled"
	CancelOutcomeNotFound         CancelOutcome = "not_found"
	CancelOutcomeAlreadyFired     CancelOutcome = "already_fired"
	CancelOutcomeAlreadyCancelled CancelOutcome = "already_cancelled"
)
