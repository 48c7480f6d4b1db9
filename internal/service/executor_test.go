package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "sendlater/internal/errors"
	"sendlater/internal/models"
	"sendlater/pkg/onebot/types"
)

func TestExecuteSendExpandsBody(t *testing.T) {
	client := &mockOneBotClient{}
	executor := NewExecutor(client, newQuietLogger())

	wantSegments := []types.Segment{
		types.AtAll(),
		types.Text("\n大家好"),
	}
	client.On("SendGroupMessage", mock.Anything, "123", wantSegments).Return("777", nil)

	job := &models.Job{
		ID:          "job_1",
		Action:      models.ActionSend,
		Body:        `{at_all}\n大家好`,
		TargetGroup: "123",
	}

	messageID, err := executor.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "777", messageID)
	client.AssertExpectations(t)
}

func TestExecuteSendFailure(t *testing.T) {
	client := &mockOneBotClient{}
	executor := NewExecutor(client, newQuietLogger())

	client.On("SendGroupMessage", mock.Anything, "123", mock.Anything).Return("", errors.New("retcode 100"))

	job := &models.Job{ID: "job_1", Action: models.ActionSend, Body: "hi", TargetGroup: "123"}

	_, err := executor.Execute(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAction, apperrors.GetCode(err))
	assert.Equal(t, "Failed to send the message.", apperrors.GetUserMessage(err))
}

func TestExecuteForward(t *testing.T) {
	client := &mockOneBotClient{}
	executor := NewExecutor(client, newQuietLogger())

	original := []types.Segment{types.Text("original content")}
	client.On("GetMessage", mock.Anything, "5555").Return(original, nil)
	client.On("SendGroupMessage", mock.Anything, "456", original).Return("888", nil)

	job := &models.Job{
		ID:               "job_1",
		Action:           models.ActionForward,
		SourceMessageRef: "5555",
		TargetGroup:      "456",
	}

	messageID, err := executor.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "888", messageID)
	client.AssertExpectations(t)
}

func TestExecuteForwardSourceLookupFails(t *testing.T) {
	client := &mockOneBotClient{}
	executor := NewExecutor(client, newQuietLogger())

	client.On("GetMessage", mock.Anything, "5555").Return(nil, errors.New("not found"))

	job := &models.Job{
		ID:               "job_1",
		Action:           models.ActionForward,
		SourceMessageRef: "5555",
		TargetGroup:      "456",
	}

	_, err := executor.Execute(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, "Failed to resolve the message to forward.", apperrors.GetUserMessage(err))
	client.AssertNotCalled(t, "SendGroupMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteRecall(t *testing.T) {
	client := &mockOneBotClient{}
	executor := NewExecutor(client, newQuietLogger())

	client.On("DeleteMessage", mock.Anything, "5555").Return(nil)

	job := &models.Job{ID: "job_1", Action: models.ActionRecall, SourceMessageRef: "5555"}

	messageID, err := executor.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Empty(t, messageID)
	client.AssertExpectations(t)
}

func TestExecuteRecallFailure(t *testing.T) {
	client := &mockOneBotClient{}
	executor := NewExecutor(client, newQuietLogger())

	client.On("DeleteMessage", mock.Anything, "5555").Return(errors.New("recall window expired"))

	job := &models.Job{ID: "job_1", Action: models.ActionRecall, SourceMessageRef: "5555"}

	_, err := executor.Execute(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAction, apperrors.GetCode(err))
}

func TestExecuteUnknownAction(t *testing.T) {
	executor := NewExecutor(&mockOneBotClient{}, newQuietLogger())

	_, err := executor.Execute(context.Background(), &models.Job{ID: "job_1", Action: "explode"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInternalError, apperrors.GetCode(err))
}
