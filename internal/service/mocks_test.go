package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sendlater/internal/audit"
	"sendlater/internal/database"
	"sendlater/internal/models"
	"sendlater/pkg/onebot/types"
)

type mockOneBotClient struct {
	mock.Mock
}

func (m *mockOneBotClient) SendGroupMessage(ctx context.Context, groupID string, segments []types.Segment) (string, error) {
	args := m.Called(ctx, groupID, segments)
	return args.String(0), args.Error(1)
}

func (m *mockOneBotClient) GetMessage(ctx context.Context, messageID string) ([]types.Segment, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Segment), args.Error(1)
}

func (m *mockOneBotClient) DeleteMessage(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Execute(ctx context.Context, job *models.Job) (string, error) {
	args := m.Called(ctx, job)
	return args.String(0), args.Error(1)
}

// countingExecutor counts executions per job id, safe for concurrent
// fires.
type countingExecutor struct {
	mu    sync.Mutex
	calls map[string]int
}

func newCountingExecutor() *countingExecutor {
	return &countingExecutor{calls: make(map[string]int)}
}

func (e *countingExecutor) Execute(ctx context.Context, job *models.Job) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[job.ID]++
	return "777", nil
}

func (e *countingExecutor) count(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[id]
}

func (e *countingExecutor) total() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		n += c
	}
	return n
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) FireSucceeded(ctx context.Context, job *models.Job, messageID string) {
	m.Called(ctx, job, messageID)
}

func (m *mockNotifier) FireFailed(ctx context.Context, job *models.Job, err error) {
	m.Called(ctx, job, err)
}

func newTestStore(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func newQuietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newDiscardAudit(t *testing.T) *audit.Logger {
	t.Helper()

	log, err := audit.New("")
	require.NoError(t, err)
	return log
}
