package bridge

// EventKind enumerates the event shapes the formatter knows how to render.
// Keeping this an explicit enum (instead of cascading string compares) lets
// tests assert full coverage of the known event-type vocabulary.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventIssueCreated
	EventIssueDeleted
	EventIssueUpdated // field changes via changelog
	EventCommentCreated
	EventCommentUpdated
	EventCommentDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventIssueCreated:
		return "issue-created"
	case EventIssueDeleted:
		return "issue-deleted"
	case EventIssueUpdated:
		return "issue-updated"
	case EventCommentCreated:
		return "comment-created"
	case EventCommentUpdated:
		return "comment-updated"
	case EventCommentDeleted:
		return "comment-deleted"
	default:
		return "unknown"
	}
}

// IsComment reports whether the kind carries a comment body (and is therefore
// subject to internal-comment suppression).
func (k EventKind) IsComment() bool {
	return k == EventCommentCreated || k == EventCommentUpdated || k == EventCommentDeleted
}

// commentSubEvents maps the umbrella issue-updated secondary discriminator to
// comment kinds. Both server-style ("issue_commented") and cloud-style
// ("comment_created") spellings exist in the wild depending on the source
// deployment; keep both explicitly rather than normalizing upstream.
var commentSubEvents = map[string]EventKind{
	"issue_commented":       EventCommentCreated,
	"comment_created":       EventCommentCreated,
	"issue_comment_edited":  EventCommentUpdated,
	"comment_updated":       EventCommentUpdated,
	"comment_edited":        EventCommentUpdated,
	"issue_comment_deleted": EventCommentDeleted,
	"comment_deleted":       EventCommentDeleted,
}

// Classify resolves the event kind from the primary event type plus, for the
// umbrella "issue updated" event, the secondary issue_event_type_name
// discriminator.
func Classify(eventType string, env Envelope) EventKind {
	switch eventType {
	case "jira:issue_created", "issue_created":
		return EventIssueCreated
	case "jira:issue_deleted", "issue_deleted":
		return EventIssueDeleted
	case "jira:issue_updated", "issue_updated":
		secondary := asString(env["issue_event_type_name"])
		if kind, ok := commentSubEvents[secondary]; ok {
			return kind
		}
		return EventIssueUpdated
	case "comment_created":
		return EventCommentCreated
	case "comment_updated", "comment_edited":
		return EventCommentUpdated
	case "comment_deleted":
		return EventCommentDeleted
	default:
		return EventUnknown
	}
}
