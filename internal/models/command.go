package models

import "time"

// CommandKind is one of the five bracket-command literals, matched
// case-sensitively.
type CommandKind string

const (
	KindSend    CommandKind = "sendmessage"
	KindForward CommandKind = "forwardmessage"
	KindRecall  CommandKind = "recallmessage"
	KindQuery   CommandKind = "schedulemessage"
	KindCancel  CommandKind = "cancelmessage"
)

type WhenKind int

const (
	// WhenImmediate is the literal "0": execute on receipt.
	WhenImmediate WhenKind = iota
	// WhenAt carries an absolute fire time.
	WhenAt
	// WhenNone is the "-1" sentinel (cancel) or an empty group (query).
	WhenNone
)

// When is the parsed second bracket group.
type When struct {
	Kind WhenKind
	At   time.Time
}

// Command is one parsed operator instruction, prior to authorization
// or persistence. Exactly one target interpretation is populated per
// kind: TargetGroup for send/forward and as a query filter,
// MessageRef for recall/forward sources, JobID for cancel.
type Command struct {
	Kind        CommandKind
	When        When
	Body        string
	TargetGroup string
	MessageRef  string
	JobID       string
}
