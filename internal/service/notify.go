package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	apperrors "sendlater/internal/errors"
	"sendlater/internal/models"
	"sendlater/internal/permissions"
	"sendlater/pkg/onebot"
	"sendlater/pkg/onebot/types"
)

// AdminNotifier reports timed-fire outcomes back into the chat:
// successes as a confirmation to every admin group, failures to the
// group that issued the command so the operator can re-issue it.
type AdminNotifier struct {
	client   onebot.Client
	provider permissions.ConfigProvider
	logger   *logrus.Logger
}

func NewAdminNotifier(client onebot.Client, provider permissions.ConfigProvider, logger *logrus.Logger) *AdminNotifier {
	return &AdminNotifier{client: client, provider: provider, logger: logger}
}

func (n *AdminNotifier) FireSucceeded(ctx context.Context, job *models.Job, messageID string) {
	text := fmt.Sprintf("Scheduled task %s completed (%s).", job.ID, describeJob(job))

	for _, group := range n.provider.Permissions().AdminGroups {
		if _, err := n.client.SendGroupMessage(ctx, group, []types.Segment{types.Text(text)}); err != nil {
			n.logger.WithError(err).WithFields(logrus.Fields{
				"job":   job.ID,
				"group": group,
			}).Warn("Failed to deliver fire confirmation")
		}
	}
}

func (n *AdminNotifier) FireFailed(ctx context.Context, job *models.Job, err error) {
	text := fmt.Sprintf("Scheduled task %s failed: %s", job.ID, apperrors.GetUserMessage(err))

	if _, sendErr := n.client.SendGroupMessage(ctx, job.OriginGroup, []types.Segment{types.Text(text)}); sendErr != nil {
		n.logger.WithError(sendErr).WithFields(logrus.Fields{
			"job":   job.ID,
			"group": job.OriginGroup,
		}).Warn("Failed to deliver fire failure notice")
	}
}

func describeJob(job *models.Job) string {
	switch job.Action {
	case models.ActionRecall:
		return fmt.Sprintf("recall of message %s", job.SourceMessageRef)
	case models.ActionForward:
		return fmt.Sprintf("forward to group %s", job.TargetGroup)
	default:
		return fmt.Sprintf("send to group %s", job.TargetGroup)
	}
}
