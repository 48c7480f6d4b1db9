package types

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Segment is one OneBot v11 message segment (array message format).
type Segment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

func Text(text string) Segment {
	return Segment{Type: "text", Data: map[string]string{"text": text}}
}

// AtAll mentions every member of the target group.
func AtAll() Segment {
	return Segment{Type: "at", Data: map[string]string{"qq": "all"}}
}

func Image(url string) Segment {
	return Segment{Type: "image", Data: map[string]string{"file": url}}
}

// APIResponse is the envelope every OneBot HTTP API call returns.
type APIResponse struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Msg     string          `json:"msg,omitempty"`
	Wording string          `json:"wording,omitempty"`
	Data    json.RawMessage `json:"data"`
}

func (r *APIResponse) OK() bool {
	return r.RetCode == 0
}

// SendGroupMsgData is the payload of a successful send_group_msg call.
type SendGroupMsgData struct {
	MessageID int64 `json:"message_id"`
}

// GetMsgData is the payload of a successful get_msg call.
type GetMsgData struct {
	MessageID int64     `json:"message_id"`
	Message   []Segment `json:"message"`
}

// Sender identifies the author of an inbound message event.
type Sender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

// Event is an OneBot v11 push event. Only the message fields this
// service consumes are mapped; everything else stays in the raw JSON.
type Event struct {
	PostType    string          `json:"post_type"`
	MessageType string          `json:"message_type"`
	SubType     string          `json:"sub_type"`
	MessageID   int64           `json:"message_id"`
	GroupID     int64           `json:"group_id"`
	UserID      int64           `json:"user_id"`
	SelfID      int64           `json:"self_id"`
	RawMessage  string          `json:"raw_message"`
	Message     json.RawMessage `json:"message"`
	Sender      Sender          `json:"sender"`
	Time        int64           `json:"time"`
}

// IsGroupMessage reports whether the event is a normal group message.
func (e *Event) IsGroupMessage() bool {
	return e.PostType == "message" && e.MessageType == "group"
}

// GroupMessage is the digested form of a group message event.
type GroupMessage struct {
	Text      string // concatenated plain text segments, trimmed
	ReplyRef  string // message id of the replied-to message, if any
	Mentioned bool   // true when the bot itself was @-mentioned
}

// ParseGroupMessage extracts the plain text, the reply reference and
// the self-mention flag from the event's segment array. Backends that
// push string-format messages fall back to RawMessage with no mention
// detection beyond an exact CQ at-code match.
func (e *Event) ParseGroupMessage() GroupMessage {
	var gm GroupMessage

	var segments []Segment
	if len(e.Message) > 0 && json.Unmarshal(e.Message, &segments) == nil {
		var b strings.Builder
		self := strconv.FormatInt(e.SelfID, 10)
		for _, seg := range segments {
			switch seg.Type {
			case "text":
				b.WriteString(seg.Data["text"])
			case "at":
				if seg.Data["qq"] == self {
					gm.Mentioned = true
				}
			case "reply":
				gm.ReplyRef = seg.Data["id"]
			}
		}
		gm.Text = strings.TrimSpace(b.String())
		return gm
	}

	gm.Text = strings.TrimSpace(e.RawMessage)
	if strings.Contains(e.RawMessage, "[CQ:at,qq="+strconv.FormatInt(e.SelfID, 10)+"]") {
		gm.Mentioned = true
		gm.Text = strings.TrimSpace(strings.ReplaceAll(gm.Text, "[CQ:at,qq="+strconv.FormatInt(e.SelfID, 10)+"]", ""))
	}
	return gm
}

// FormatID renders a numeric OneBot id the way the engine stores it.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseID converts a stored id back to the numeric form the API wants.
func ParseID(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}
