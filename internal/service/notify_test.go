package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"

	apperrors "sendlater/internal/errors"
	"sendlater/internal/models"
	"sendlater/internal/permissions"
	"sendlater/pkg/onebot/types"
)

func TestFireSucceededNotifiesAllAdminGroups(t *testing.T) {
	client := &mockOneBotClient{}
	provider := permissions.StaticProvider(models.PermissionsConfig{
		AdminGroups: []string{"100", "200"},
	})
	notifier := NewAdminNotifier(client, provider, newQuietLogger())

	client.On("SendGroupMessage", mock.Anything, "100", mock.MatchedBy(matchText("Scheduled task job_1 completed (send to group 123)."))).
		Return("1", nil).Once()
	client.On("SendGroupMessage", mock.Anything, "200", mock.Anything).Return("2", nil).Once()

	job := &models.Job{ID: "job_1", Action: models.ActionSend, TargetGroup: "123", OriginGroup: "100"}
	notifier.FireSucceeded(context.Background(), job, "777")

	client.AssertExpectations(t)
}

func TestFireFailedNotifiesOriginGroup(t *testing.T) {
	client := &mockOneBotClient{}
	provider := permissions.StaticProvider(models.PermissionsConfig{
		AdminGroups: []string{"100", "200"},
	})
	notifier := NewAdminNotifier(client, provider, newQuietLogger())

	client.On("SendGroupMessage", mock.Anything, "100", mock.MatchedBy(matchText("Scheduled task job_1 failed: Failed to send the message."))).
		Return("1", nil).Once()

	job := &models.Job{ID: "job_1", Action: models.ActionSend, TargetGroup: "123", OriginGroup: "100"}
	fireErr := apperrors.Wrap(errors.New("retcode 100"), apperrors.ErrCodeAction, "send failed").
		WithUserMessage("Failed to send the message.")
	notifier.FireFailed(context.Background(), job, fireErr)

	client.AssertExpectations(t)
}

func matchText(want string) func([]types.Segment) bool {
	return func(segments []types.Segment) bool {
		return len(segments) == 1 && segments[0].Data["text"] == want
	}
}
