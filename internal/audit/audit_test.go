package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sendlater/internal/models"
)

func readEntries(t *testing.T, path string) []map[string]interface{} {
	t.Helper()

	file, err := os.Open(path)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, file.Close())
	}()

	var entries []map[string]interface{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestAuditLogWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	log, err := New(path)
	require.NoError(t, err)

	job := &models.Job{
		ID:          "job_1",
		Action:      models.ActionSend,
		FireAt:      time.Now().Add(time.Hour),
		Body:        "Party at eight tonight",
		TargetGroup: "123",
	}

	log.Parse("1234567890", "100", models.KindSend, nil)
	log.Parse("1234567890", "100", "", errors.New("malformed"))
	log.Authorization("1234567890", "100", true)
	log.Authorization("1234567890", "300", false)
	log.Scheduled(job)
	log.Cancelled("job_1", models.CancelOutcomeCancelled)
	log.Fired(job, "777", nil)
	log.Fired(job, "", errors.New("transport down"))
	require.NoError(t, log.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 8)

	assert.Equal(t, "parse", entries[0]["event"])
	assert.Equal(t, "authorization", entries[2]["event"])
	assert.Equal(t, "scheduled", entries[4]["event"])
	assert.Equal(t, "Part...****", entries[4]["body"])
	assert.Equal(t, "cancel", entries[5]["event"])
	assert.Equal(t, "fired", entries[6]["event"])
	assert.Equal(t, "777", entries[6]["messageId"])

	// User ids are masked in every entry that carries one.
	assert.Equal(t, "******7890", entries[0]["user"])
	assert.Equal(t, "******7890", entries[3]["user"])
}

func TestAuditLogEmptyPathDiscards(t *testing.T) {
	log, err := New("")
	require.NoError(t, err)

	// Must not panic or write anywhere.
	log.Authorization("1", "2", false)
	require.NoError(t, log.Close())
}

func TestAuditLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	log, err := New(path)
	require.NoError(t, err)
	log.Cancelled("job_1", models.CancelOutcomeNotFound)
	require.NoError(t, log.Close())

	log, err = New(path)
	require.NoError(t, err)
	log.Cancelled("job_2", models.CancelOutcomeCancelled)
	require.NoError(t, log.Close())

	entries := readEntries(t, path)
	assert.Len(t, entries, 2)
}
