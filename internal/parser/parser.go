// Package parser turns raw bracket-syntax text into typed commands.
//
// The grammar is four bracket groups in fixed order:
//
//	[kind][when][body][target]
//
// kind is one of the five command literals, when is "0" (immediate),
// "-1" (cancel sentinel), an absolute YYYYMMDDHHMMSS / YYYYMMDDHHMM
// timestamp, or empty (query only). Parsing is a pure function of the
// input text plus the reply context captured with the message; it has
// no side effects and rejects malformed input before any command is
// constructed.
package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "sendlater/internal/errors"
	"sendlater/internal/models"
)

// Reason identifies which grammar rule rejected the input.
type Reason string

const (
	ReasonMalformedBrackets Reason = "malformed_brackets"
	ReasonUnknownKind       Reason = "unknown_kind"
	ReasonBadTimestamp      Reason = "bad_timestamp"
	ReasonArityMismatch     Reason = "arity_mismatch"
)

var commandRe = regexp.MustCompile(`(?s)^\[(.*?)\]\[(.*?)\]\[(.*?)\]\[(.*?)\]$`)

var digitsRe = regexp.MustCompile(`^[0-9]+$`)

// IsCommand reports whether text looks like a bracket command at all.
// Used by the inbound dispatcher to ignore unrelated chatter.
func IsCommand(text string) bool {
	return commandRe.MatchString(strings.TrimSpace(text))
}

// FailureReason extracts the grammar rule behind a parse error, or ""
// for non-parse errors.
func FailureReason(err error) Reason {
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.ErrCodeParse {
		return ""
	}
	if r, ok := appErr.Context["reason"].(Reason); ok {
		return r
	}
	return ""
}

func parseError(reason Reason, userMsg string) *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeParse, string(reason)).
		WithContext("reason", reason).
		WithUserMessage(userMsg)
}

// Parse produces a Command from raw text. replyRef is the message id
// of the message the operator replied to, or empty; it supplies the
// source reference for forward and recall when the body omits it.
func Parse(text, replyRef string) (models.Command, error) {
	var cmd models.Command

	m := commandRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return cmd, parseError(ReasonMalformedBrackets,
			"Invalid command format. Expected [kind][when][body][target].")
	}

	kind := models.CommandKind(strings.TrimSpace(m[1]))
	whenStr := strings.TrimSpace(m[2])
	body := m[3]
	target := strings.TrimSpace(m[4])

	switch kind {
	case models.KindSend, models.KindForward, models.KindRecall, models.KindQuery, models.KindCancel:
	default:
		return cmd, parseError(ReasonUnknownKind,
			fmt.Sprintf("Unknown command type %q.", m[1]))
	}
	cmd.Kind = kind

	when, err := parseWhen(kind, whenStr)
	if err != nil {
		return cmd, err
	}
	cmd.When = when

	switch kind {
	case models.KindSend:
		cmd.Body = body
		cmd.TargetGroup = target
		if target == "" || !digitsRe.MatchString(target) {
			return cmd, parseError(ReasonArityMismatch, "Invalid target group number.")
		}

	case models.KindForward:
		// The forwarded message always comes from the reply context.
		cmd.MessageRef = replyRef
		cmd.TargetGroup = target
		if replyRef == "" {
			return cmd, parseError(ReasonArityMismatch,
				"The forwardmessage command must be used by replying to a message.")
		}
		if target == "" || !digitsRe.MatchString(target) {
			return cmd, parseError(ReasonArityMismatch, "Invalid target group number.")
		}

	case models.KindRecall:
		// Reply context wins; the body is a fallback message id.
		cmd.TargetGroup = target
		if replyRef != "" {
			cmd.MessageRef = replyRef
		} else {
			ref := strings.TrimSpace(body)
			if ref == "" || !digitsRe.MatchString(ref) {
				return cmd, parseError(ReasonArityMismatch,
					"Invalid MessageID. Provide a numeric MessageID or reply to the message to recall.")
			}
			cmd.MessageRef = ref
		}

	case models.KindQuery:
		// All three remaining groups are optional filters.
		cmd.Body = body
		if target != "" && !digitsRe.MatchString(target) {
			return cmd, parseError(ReasonArityMismatch, "Invalid target group number.")
		}
		cmd.TargetGroup = target

	case models.KindCancel:
		id := strings.TrimSpace(body)
		if id == "" {
			return cmd, parseError(ReasonArityMismatch,
				"Provide the JobID of the task to cancel.")
		}
		cmd.JobID = id
	}

	return cmd, nil
}

func parseWhen(kind models.CommandKind, s string) (models.When, error) {
	switch s {
	case "0":
		if kind == models.KindCancel {
			return models.When{}, parseError(ReasonArityMismatch,
				"To cancel a task, the timestamp must be -1.")
		}
		return models.When{Kind: models.WhenImmediate}, nil

	case "-1":
		if kind != models.KindCancel {
			return models.When{}, parseError(ReasonArityMismatch,
				"The -1 timestamp is only valid for cancelmessage.")
		}
		return models.When{Kind: models.WhenNone}, nil

	case "":
		if kind != models.KindQuery {
			return models.When{}, parseError(ReasonArityMismatch,
				"A timestamp is required for this command.")
		}
		return models.When{Kind: models.WhenNone}, nil
	}

	if kind == models.KindCancel {
		return models.When{}, parseError(ReasonArityMismatch,
			"To cancel a task, the timestamp must be -1.")
	}

	at, err := ParseTimestamp(s)
	if err != nil {
		return models.When{}, parseError(ReasonBadTimestamp,
			"Invalid timestamp format. Please use YYYYMMDDHHMMSS or YYYYMMDDHHMM.")
	}
	return models.When{Kind: models.WhenAt, At: at}, nil
}

// ParseTimestamp accepts the canonical 14-digit YYYYMMDDHHMMSS form
// and the 12-digit YYYYMMDDHHMM form (seconds default to 00). Invalid
// calendar values such as month 13 are rejected.
func ParseTimestamp(s string) (time.Time, error) {
	if !digitsRe.MatchString(s) {
		return time.Time{}, fmt.Errorf("timestamp is not numeric: %q", s)
	}
	switch len(s) {
	case 14:
		return time.ParseInLocation("20060102150405", s, time.Local)
	case 12:
		return time.ParseInLocation("200601021504", s, time.Local)
	}
	return time.Time{}, fmt.Errorf("timestamp must be 12 or 14 digits, got %d", len(s))
}
