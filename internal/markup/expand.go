// Package markup renders operator message bodies into outbound OneBot
// segments. Expansion happens exactly once, at fire time; persisted
// bodies always keep the source form so a recovered or requeued job
// never double-converts already-expanded text.
package markup

import (
	"regexp"
	"strings"

	"sendlater/pkg/onebot/types"
)

var tagRe = regexp.MustCompile(`\{at_all\}|\{:Image\(url="(.*?)"\)\}`)

var imageURLRe = regexp.MustCompile(`^\{:Image\(url="(.*?)"\)\}$`)

// Render expands the literal \n escape and the {at_all} and
// {:Image(url="...")} tags. Plain text between tags is passed through
// verbatim.
func Render(body string) []types.Segment {
	body = strings.ReplaceAll(body, `\n`, "\n")

	var segments []types.Segment
	last := 0
	for _, loc := range tagRe.FindAllStringIndex(body, -1) {
		if loc[0] > last {
			segments = append(segments, types.Text(body[last:loc[0]]))
		}
		segments = append(segments, tagSegment(body[loc[0]:loc[1]]))
		last = loc[1]
	}
	if last < len(body) {
		segments = append(segments, types.Text(body[last:]))
	}

	if segments == nil {
		segments = []types.Segment{types.Text(body)}
	}
	return segments
}

func tagSegment(tag string) types.Segment {
	if tag == "{at_all}" {
		return types.AtAll()
	}
	if m := imageURLRe.FindStringSubmatch(tag); m != nil {
		return types.Image(m[1])
	}
	return types.Text(tag)
}

// PlainText flattens rendered segments back to display text. Used for
// log previews, never for delivery.
func PlainText(segments []types.Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		switch seg.Type {
		case "text":
			b.WriteString(seg.Data["text"])
		case "at":
			b.WriteString("@all")
		case "image":
			b.WriteString("[image]")
		}
	}
	return b.String()
}
