package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sirupsen/logrus"

	"sendlater/internal/audit"
	"sendlater/internal/constants"
	apperrors "sendlater/internal/errors"
	"sendlater/internal/models"
	"sendlater/internal/parser"
	"sendlater/internal/permissions"
)

const fireAtFormat = "2006-01-02 15:04:05"

const helpText = `Command format: [kind][when][body][target]
  [sendmessage][when][text][group id]
  [forwardmessage][when][][group id]  (reply to the message to forward)
  [recallmessage][0][message id][]    (or reply to the message to recall)
  [schedulemessage][][body pattern][group id]  (all filters optional)
  [cancelmessage][-1][job id][]
when: 0 = immediately, or a YYYYMMDDHHMMSS / YYYYMMDDHHMM timestamp.
The body may contain {at_all}, \n and {:Image(url="...")}.`

// Inbound is one group message addressed to the bot, as delivered by
// the event source.
type Inbound struct {
	UserID   string
	GroupID  string
	Text     string
	ReplyRef string
}

// JobService is the scheduler surface the handler drives.
type JobService interface {
	Schedule(ctx context.Context, job *models.Job) error
	Execute(ctx context.Context, job *models.Job) (string, error)
	Cancel(ctx context.Context, jobID string) (models.CancelOutcome, error)
	Query(ctx context.Context, filter models.JobFilter) ([]models.Job, error)
}

// CommandService runs the full command pipeline: authorize, parse,
// dispatch, and render the synchronous textual reply.
type CommandService struct {
	guard  *permissions.Guard
	jobs   JobService
	audit  *audit.Logger
	logger *logrus.Logger
}

func NewCommandService(guard *permissions.Guard, jobs JobService, auditLog *audit.Logger, logger *logrus.Logger) *CommandService {
	return &CommandService{
		guard:  guard,
		jobs:   jobs,
		audit:  auditLog,
		logger: logger,
	}
}

// HandleMessage processes one inbound command and returns the reply
// text. Every path yields a reply; denials stay generic.
func (s *CommandService) HandleMessage(ctx context.Context, in Inbound) string {
	ctx, span := otel.Tracer("sendlater/service").Start(ctx, "command.handle")
	defer span.End()
	span.SetAttributes(attribute.String("group.id", in.GroupID))

	if !s.guard.Authorize(in.UserID, in.GroupID) {
		s.audit.Authorization(in.UserID, in.GroupID, false)
		return apperrors.GetUserMessage(apperrors.New(apperrors.ErrCodeAuthorization, "sender not authorized"))
	}
	s.audit.Authorization(in.UserID, in.GroupID, true)

	text := strings.TrimSpace(in.Text)
	if text == "message" {
		return helpText
	}

	cmd, err := parser.Parse(text, in.ReplyRef)
	s.audit.Parse(in.UserID, in.GroupID, cmd.Kind, err)
	if err != nil {
		return apperrors.GetUserMessage(err)
	}

	return s.dispatch(ctx, in, cmd)
}

func (s *CommandService) dispatch(ctx context.Context, in Inbound, cmd models.Command) string {
	switch cmd.Kind {
	case models.KindQuery:
		return s.handleQuery(ctx, cmd)
	case models.KindCancel:
		return s.handleCancel(ctx, cmd)
	}

	if cmd.TargetGroup != "" && !s.guard.AllowedReceiver(cmd.TargetGroup) {
		return fmt.Sprintf("Group %s is not an allowed receiver group.", cmd.TargetGroup)
	}

	now := time.Now()
	job := buildJob(cmd, in, now)

	if cmd.When.Kind == models.WhenImmediate {
		messageID, err := s.jobs.Execute(ctx, job)
		if err != nil {
			s.logger.WithError(err).WithField("job", job.ID).Error("Immediate command failed")
			return apperrors.GetUserMessage(err)
		}
		return immediateReply(cmd.Kind, job, messageID)
	}

	if !cmd.When.At.After(now) {
		return "The scheduled time has already passed."
	}

	if err := s.jobs.Schedule(ctx, job); err != nil {
		s.logger.WithError(err).WithField("job", job.ID).Error("Failed to schedule job")
		return apperrors.GetUserMessage(err)
	}
	return fmt.Sprintf("Task scheduled. JobID: %s, fires at %s.", job.ID, job.FireAt.Format(fireAtFormat))
}

func (s *CommandService) handleCancel(ctx context.Context, cmd models.Command) string {
	outcome, err := s.jobs.Cancel(ctx, cmd.JobID)
	if err != nil {
		s.logger.WithError(err).WithField("job", cmd.JobID).Error("Cancel failed")
		return apperrors.GetUserMessage(err)
	}

	switch outcome {
	case models.CancelOutcomeCancelled:
		return fmt.Sprintf("Task %s cancelled.", cmd.JobID)
	case models.CancelOutcomeNotFound:
		return fmt.Sprintf("No task found with JobID %s.", cmd.JobID)
	case models.CancelOutcomeAlreadyCancelled:
		return fmt.Sprintf("Task %s is already cancelled.", cmd.JobID)
	default:
		return fmt.Sprintf("Task %s has already fired and cannot be cancelled.", cmd.JobID)
	}
}

func (s *CommandService) handleQuery(ctx context.Context, cmd models.Command) string {
	if cmd.Body != "" {
		if _, err := regexp.Compile(cmd.Body); err != nil {
			return "Invalid regular expression for content filtering."
		}
	}

	filter := models.JobFilter{
		GroupID:     cmd.TargetGroup,
		BodyPattern: cmd.Body,
	}
	// A query timestamp is an upper bound: list tasks due up to then.
	if cmd.When.Kind == models.WhenAt {
		at := cmd.When.At
		filter.FireBefore = &at
	}

	jobs, err := s.jobs.Query(ctx, filter)
	if err != nil {
		s.logger.WithError(err).Error("Query failed")
		return apperrors.GetUserMessage(err)
	}
	if len(jobs) == 0 {
		return "No matching tasks."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d task(s):", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(&b, "\nJobID: %s\n  %s %s, fires at %s", job.ID, job.Status, job.Action, job.FireAt.Format(fireAtFormat))
		if job.TargetGroup != "" {
			fmt.Fprintf(&b, ", group %s", job.TargetGroup)
		}
		if job.Body != "" {
			fmt.Fprintf(&b, "\n  body: %s", truncateBody(job.Body))
		}
	}
	return b.String()
}

func buildJob(cmd models.Command, in Inbound, now time.Time) *models.Job {
	fireAt := now
	if cmd.When.Kind == models.WhenAt {
		fireAt = cmd.When.At
	}

	var action models.JobAction
	switch cmd.Kind {
	case models.KindForward:
		action = models.ActionForward
	case models.KindRecall:
		action = models.ActionRecall
	default:
		action = models.ActionSend
	}

	return &models.Job{
		ID:               models.NewJobID(now, in.GroupID),
		Action:           action,
		FireAt:           fireAt,
		Body:             cmd.Body,
		TargetGroup:      cmd.TargetGroup,
		SourceMessageRef: cmd.MessageRef,
		Status:           models.JobStatusPending,
		CreatedBy:        in.UserID,
		OriginGroup:      in.GroupID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func immediateReply(kind models.CommandKind, job *models.Job, messageID string) string {
	switch kind {
	case models.KindForward:
		return fmt.Sprintf("Message forwarded to group %s (message id %s).", job.TargetGroup, messageID)
	case models.KindRecall:
		return fmt.Sprintf("Message %s recalled.", job.SourceMessageRef)
	default:
		return fmt.Sprintf("Message sent to group %s (message id %s).", job.TargetGroup, messageID)
	}
}

// truncateBody shortens a body for list display, rune-safe.
func truncateBody(body string) string {
	runes := []rune(body)
	if len(runes) <= constants.DefaultBodyPreviewLen {
		return body
	}
	return string(runes[:constants.DefaultBodyPreviewLen]) + "..."
}
