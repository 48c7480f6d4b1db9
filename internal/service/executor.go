package service

import (
	"context"
	"fmt"

	apperrors "sendlater/internal/errors"
	"sendlater/internal/markup"
	"sendlater/internal/models"
	"sendlater/pkg/onebot"

	"github.com/sirupsen/logrus"
)

// ActionExecutor performs a job's side effect once and returns the
// delivered message id (empty for recalls). It never retries; the
// scheduler owns the resulting status transition.
type ActionExecutor interface {
	Execute(ctx context.Context, job *models.Job) (string, error)
}

// Executor maps job actions onto OneBot API calls. Body expansion
// happens here, at fire time, so persisted bodies stay in source form.
type Executor struct {
	client onebot.Client
	logger *logrus.Logger
}

func NewExecutor(client onebot.Client, logger *logrus.Logger) *Executor {
	return &Executor{client: client, logger: logger}
}

func (e *Executor) Execute(ctx context.Context, job *models.Job) (string, error) {
	switch job.Action {
	case models.ActionSend:
		segments := markup.Render(job.Body)
		messageID, err := e.client.SendGroupMessage(ctx, job.TargetGroup, segments)
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrCodeAction, "failed to send message").
				WithContext("job", job.ID).
				WithUserMessage("Failed to send the message.")
		}
		return messageID, nil

	case models.ActionForward:
		segments, err := e.client.GetMessage(ctx, job.SourceMessageRef)
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrCodeAction, "failed to resolve source message").
				WithContext("job", job.ID).
				WithUserMessage("Failed to resolve the message to forward.")
		}
		messageID, err := e.client.SendGroupMessage(ctx, job.TargetGroup, segments)
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrCodeAction, "failed to forward message").
				WithContext("job", job.ID).
				WithUserMessage("Failed to forward the message.")
		}
		return messageID, nil

	case models.ActionRecall:
		if err := e.client.DeleteMessage(ctx, job.SourceMessageRef); err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrCodeAction, "failed to recall message").
				WithContext("job", job.ID).
				WithUserMessage("Failed to recall the message. It may be outside the recall window.")
		}
		return "", nil
	}

	return "", apperrors.New(apperrors.ErrCodeInternalError, fmt.Sprintf("unknown job action %q", job.Action))
}
