package bridge

// Envelope is a raw tracker webhook payload. Trackers emit wildly
// heterogeneous shapes across versions and deployment types, so the
// envelope stays an untyped map and every access tolerates missing or
// differently typed values.
type Envelope map[string]any

// Parsed is the canonical (issue, fields, eventType) view of an envelope.
type Parsed struct {
	Issue     map[string]any
	Fields    map[string]any
	IssueKey  string
	Summary   string
	EventType string
}

// Parse normalizes an envelope. It never fails: absent attributes yield
// empty maps / empty strings which downstream stages tolerate.
func Parse(env Envelope) Parsed {
	issue := asMap(env["issue"])
	if issue == nil {
		issue = map[string]any{}
	}
	fields := asMap(issue["fields"])
	if fields == nil {
		fields = map[string]any{}
	}

	eventType := asString(env["webhookEvent"])
	if eventType == "" {
		eventType = asString(env["issue_event_type_name"])
	}

	return Parsed{
		Issue:     issue,
		Fields:    fields,
		IssueKey:  asString(issue["key"]),
		Summary:   asString(fields["summary"]),
		EventType: eventType,
	}
}

// ---- tolerant accessors ----

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// mapString reads a string attribute from a possibly-nil map.
func mapString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	return asString(m[key])
}
