package bridge

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"jirabridge/pkg/chatfmt"
)

// DefaultIconURL is the fallback avatar and thumbnail when the payload
// carries none and no override is configured.
const DefaultIconURL = "https://raw.githubusercontent.com/jirabridge/assets/main/icon-default.png"

// BodyMaxRunes caps description and comment bodies in rendered attachments.
const BodyMaxRunes = 140

// Attachment is the rendered notification for one event, shared by every
// recipient of that event.
type Attachment struct {
	AuthorName string
	AuthorIcon string
	ThumbURL   string
	Timestamp  string
	Text       string
}

// BuildAttachment renders the notification for a classified event.
// The second return is false when the kind produces no notification
// (unknown events, or an issue update whose changelog is empty).
func BuildAttachment(kind EventKind, p Parsed, env Envelope, st Settings) (Attachment, bool) {
	actor := eventActor(kind, env)

	att := Attachment{
		AuthorName: actor.DisplayLabel(),
		AuthorIcon: actor.AvatarURL(),
		ThumbURL:   issueTypeIcon(p),
		Timestamp:  mapString(p.Fields, "created"),
	}
	if att.AuthorIcon == "" {
		att.AuthorIcon = st.DefaultIconURL
	}
	if att.ThumbURL == "" {
		att.ThumbURL = st.DefaultIconURL
	}

	head := summaryLine(p, actor)

	switch kind {
	case EventIssueCreated:
		att.Text = "*Created* " + head
		if body := mapString(p.Fields, "description"); body != "" {
			att.Text += "\n" + chatfmt.TruncRunes(body, BodyMaxRunes)
		}
	case EventIssueDeleted:
		att.Text = "*Deleted* " + head
	case EventIssueUpdated:
		changes := renderChangelog(env)
		if changes == "" {
			return Attachment{}, false
		}
		att.Text = "*Updated* " + head + "\n" + changes
	case EventCommentCreated:
		att.Text = "*Comment added* " + head + commentBody(env)
	case EventCommentUpdated:
		att.Text = "*Comment updated* " + head + commentBody(env)
	case EventCommentDeleted:
		att.Text = "*Comment deleted* " + head
	default:
		return Attachment{}, false
	}
	return att, true
}

// eventActor picks the reference rendered as the attachment author. Comment
// events credit the comment author; everything else credits the envelope
// user that triggered the webhook.
func eventActor(kind EventKind, env Envelope) UserRef {
	if kind.IsComment() {
		if comment := asMap(env["comment"]); comment != nil {
			if kind == EventCommentUpdated {
				if author := asMap(comment["updateAuthor"]); author != nil {
					return UserRef(author)
				}
			}
			if author := asMap(comment["author"]); author != nil {
				return UserRef(author)
			}
		}
	}
	return UserRef(asMap(env["user"]))
}

// summaryLine builds the linked header: issue key, summary, priority, and an
// "assigned to" suffix when the assignee is someone other than the actor.
func summaryLine(p Parsed, actor UserRef) string {
	var b strings.Builder

	key := p.IssueKey
	if key == "" {
		key = "(unknown issue)"
	}
	if link := TicketURL(p); link != "" {
		fmt.Fprintf(&b, "[%s](%s)", key, link)
	} else {
		b.WriteString(key)
	}

	if p.Summary != "" {
		b.WriteString(" ")
		b.WriteString(p.Summary)
	}
	if prio := priorityName(p.Fields); prio != "" {
		b.WriteString(" · ")
		b.WriteString(prio)
	}

	assignee := UserRef(asMap(p.Fields["assignee"]))
	if label := assignee.DisplayLabel(); label != "" && assignee.IdentityKey() != actor.IdentityKey() {
		b.WriteString(" · assigned to ")
		b.WriteString(label)
	}
	return b.String()
}

// priorityName reads fields.priority.name with the leading ordinal prefix
// ("3 - Medium" style) stripped.
func priorityName(fields map[string]any) string {
	name := mapString(asMap(fields["priority"]), "name")
	return strings.TrimLeft(name, "0123456789 .-")
}

// issueTypeIcon returns the issue-type icon URL when present.
func issueTypeIcon(p Parsed) string {
	return mapString(asMap(p.Fields["issuetype"]), "iconUrl")
}

// commentBody renders the truncated comment text on its own line.
func commentBody(env Envelope) string {
	body := mapString(asMap(env["comment"]), "body")
	if body == "" {
		return ""
	}
	return "\n" + chatfmt.TruncRunes(body, BodyMaxRunes)
}

// renderChangelog lists each changelog item as "field changed from X to Y",
// one per line. Description changes render the new value (truncated) instead
// of the from/to pair. Empty when the changelog carries no items.
func renderChangelog(env Envelope) string {
	changelog := asMap(env["changelog"])
	if changelog == nil {
		return ""
	}

	var lines []string
	for _, raw := range asSlice(changelog["items"]) {
		item := asMap(raw)
		if item == nil {
			continue
		}
		field := mapString(item, "field")
		if field == "" {
			continue
		}
		if field == "description" {
			lines = append(lines, "description set to: "+chatfmt.TruncRunes(mapString(item, "toString"), BodyMaxRunes))
			continue
		}
		from := mapString(item, "fromString")
		to := mapString(item, "toString")
		if from == "" {
			from = "(empty)"
		}
		if to == "" {
			to = "(empty)"
		}
		lines = append(lines, fmt.Sprintf("%s changed from %s to %s", field, from, to))
	}
	return strings.Join(lines, "\n")
}

// TicketURL computes the user-facing issue URL from the issue's REST self
// link. Service-desk issues link to the customer portal when a request-type
// field exposes the service-desk identifier; everything else links to the
// standard browse page.
func TicketURL(p Parsed) string {
	self := mapString(p.Issue, "self")
	if self == "" || p.IssueKey == "" {
		return ""
	}
	u, err := url.Parse(self)
	if err != nil || u.Host == "" {
		return ""
	}
	base := u.Scheme + "://" + u.Host

	if projectType(p) == "service_desk" {
		if id := serviceDeskID(p.Fields); id != "" {
			return base + "/servicedesk/customer/portal/" + id + "/" + p.IssueKey
		}
	}
	return base + "/browse/" + p.IssueKey
}

func projectType(p Parsed) string {
	return mapString(asMap(p.Fields["project"]), "projectTypeKey")
}

// serviceDeskID scans every field for a request-type object carrying a
// service-desk identifier. Service-desk request fields live under
// installation-specific custom field keys, so a scan is the only option.
func serviceDeskID(fields map[string]any) string {
	for _, v := range fields {
		value := asMap(v)
		if value == nil {
			continue
		}
		rt := asMap(value["requestType"])
		if rt == nil {
			continue
		}
		if id := numberOrString(rt["serviceDeskId"]); id != "" {
			return id
		}
	}
	return ""
}

// numberOrString formats an identifier that JSON decoding may surface as
// either a string or a float64.
func numberOrString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
