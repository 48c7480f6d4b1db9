package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sendlater/internal/models"
)

func TestIsCommand(t *testing.T) {
	assert.True(t, IsCommand("[sendmessage][0][Hello][123]"))
	assert.True(t, IsCommand("  [schedulemessage][][][]  "))
	assert.False(t, IsCommand("hello there"))
	assert.False(t, IsCommand("[sendmessage][0][Hello]"))
	assert.False(t, IsCommand("message"))
}

func TestParseSend(t *testing.T) {
	cmd, err := Parse("[sendmessage][0][Hello][123]", "")
	require.NoError(t, err)
	assert.Equal(t, models.KindSend, cmd.Kind)
	assert.Equal(t, models.WhenImmediate, cmd.When.Kind)
	assert.Equal(t, "Hello", cmd.Body)
	assert.Equal(t, "123", cmd.TargetGroup)
}

func TestParseSendScheduled(t *testing.T) {
	cmd, err := Parse("[sendmessage][20991231235900][Party][123]", "")
	require.NoError(t, err)
	assert.Equal(t, models.WhenAt, cmd.When.Kind)

	want := time.Date(2099, 12, 31, 23, 59, 0, 0, time.Local)
	assert.True(t, cmd.When.At.Equal(want))
}

func TestParseTwelveDigitTimestamp(t *testing.T) {
	cmd, err := Parse("[sendmessage][209912312359][Party][123]", "")
	require.NoError(t, err)

	want := time.Date(2099, 12, 31, 23, 59, 0, 0, time.Local)
	assert.True(t, cmd.When.At.Equal(want))
}

func TestParseSendMultilineBody(t *testing.T) {
	cmd, err := Parse(`[sendmessage][0][{at_all}\n大家好][123]`, "")
	require.NoError(t, err)
	assert.Equal(t, `{at_all}\n大家好`, cmd.Body)
}

func TestParseForward(t *testing.T) {
	cmd, err := Parse("[forwardmessage][0][][456]", "98765")
	require.NoError(t, err)
	assert.Equal(t, models.KindForward, cmd.Kind)
	assert.Equal(t, "98765", cmd.MessageRef)
	assert.Equal(t, "456", cmd.TargetGroup)
}

func TestParseForwardWithoutReply(t *testing.T) {
	_, err := Parse("[forwardmessage][0][][456]", "")
	require.Error(t, err)
	assert.Equal(t, ReasonArityMismatch, FailureReason(err))
}

func TestParseRecall(t *testing.T) {
	t.Run("from reply context", func(t *testing.T) {
		cmd, err := Parse("[recallmessage][0][][]", "55555")
		require.NoError(t, err)
		assert.Equal(t, models.KindRecall, cmd.Kind)
		assert.Equal(t, "55555", cmd.MessageRef)
	})

	t.Run("from body", func(t *testing.T) {
		cmd, err := Parse("[recallmessage][0][55555][]", "")
		require.NoError(t, err)
		assert.Equal(t, "55555", cmd.MessageRef)
	})

	t.Run("reply context wins over body", func(t *testing.T) {
		cmd, err := Parse("[recallmessage][0][11111][]", "22222")
		require.NoError(t, err)
		assert.Equal(t, "22222", cmd.MessageRef)
	})

	t.Run("missing reference", func(t *testing.T) {
		_, err := Parse("[recallmessage][0][][]", "")
		require.Error(t, err)
		assert.Equal(t, ReasonArityMismatch, FailureReason(err))
	})
}

func TestParseQuery(t *testing.T) {
	t.Run("all filters empty", func(t *testing.T) {
		cmd, err := Parse("[schedulemessage][][][]", "")
		require.NoError(t, err)
		assert.Equal(t, models.KindQuery, cmd.Kind)
		assert.Equal(t, models.WhenNone, cmd.When.Kind)
	})

	t.Run("with filters", func(t *testing.T) {
		cmd, err := Parse("[schedulemessage][20991231235900][Party.*][123]", "")
		require.NoError(t, err)
		assert.Equal(t, models.WhenAt, cmd.When.Kind)
		assert.Equal(t, "Party.*", cmd.Body)
		assert.Equal(t, "123", cmd.TargetGroup)
	})
}

func TestParseCancel(t *testing.T) {
	cmd, err := Parse("[cancelmessage][-1][job_20260101120000.000000000_123][]", "")
	require.NoError(t, err)
	assert.Equal(t, models.KindCancel, cmd.Kind)
	assert.Equal(t, "job_20260101120000.000000000_123", cmd.JobID)
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason Reason
	}{
		{"three bracket groups", "[sendmessage][0][Hello]", ReasonMalformedBrackets},
		{"no brackets", "sendmessage 0 Hello 123", ReasonMalformedBrackets},
		{"unknown kind", "[pingmessage][0][Hello][123]", ReasonUnknownKind},
		{"uppercase kind", "[SendMessage][0][Hello][123]", ReasonUnknownKind},
		{"month 13", "[sendmessage][20991331235900][Hi][123]", ReasonBadTimestamp},
		{"thirteen digit timestamp", "[sendmessage][2099123123590][Hi][123]", ReasonBadTimestamp},
		{"non numeric when", "[sendmessage][tomorrow][Hi][123]", ReasonBadTimestamp},
		{"empty when for send", "[sendmessage][][Hi][123]", ReasonArityMismatch},
		{"cancel sentinel for send", "[sendmessage][-1][Hi][123]", ReasonArityMismatch},
		{"immediate for cancel", "[cancelmessage][0][job_x][]", ReasonArityMismatch},
		{"timestamp for cancel", "[cancelmessage][20991231235900][job_x][]", ReasonArityMismatch},
		{"cancel without job id", "[cancelmessage][-1][][]", ReasonArityMismatch},
		{"send without target", "[sendmessage][0][Hi][]", ReasonArityMismatch},
		{"send with non numeric target", "[sendmessage][0][Hi][abc]", ReasonArityMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input, "")
			require.Error(t, err)
			assert.Equal(t, tt.reason, FailureReason(err))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("20260830120000")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 8, 30, 12, 0, 0, 0, time.Local)))

	got, err = ParseTimestamp("202608301200")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 8, 30, 12, 0, 0, 0, time.Local)))

	_, err = ParseTimestamp("20261301120000")
	assert.Error(t, err)

	_, err = ParseTimestamp("2026")
	assert.Error(t, err)
}
