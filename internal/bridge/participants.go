package bridge

// UserRef is a loosely-typed tracker-side identity reference. The only
// contract is "has at least one identifying attribute"; everything else
// is best-effort.
type UserRef map[string]any

// IdentityKey derives the deduplication key: accountId, else emailAddress,
// else name. Empty when the reference carries none of them.
func (u UserRef) IdentityKey() string {
	if u == nil {
		return ""
	}
	if v := mapString(u, "accountId"); v != "" {
		return v
	}
	if v := mapString(u, "emailAddress"); v != "" {
		return v
	}
	return mapString(u, "name")
}

// Attr reads a string attribute by name (used by the mapping-field lookup).
func (u UserRef) Attr(name string) string {
	if u == nil {
		return ""
	}
	return mapString(u, name)
}

// DisplayLabel picks a human-readable label for rendering.
func (u UserRef) DisplayLabel() string {
	if u == nil {
		return ""
	}
	if v := mapString(u, "displayName"); v != "" {
		return v
	}
	if v := mapString(u, "name"); v != "" {
		return v
	}
	return mapString(u, "emailAddress")
}

// AvatarURL resolves the avatar from the shapes trackers actually produce:
// avatarUrls (sized map), avatarUrl, or a nested avatar object.
func (u UserRef) AvatarURL() string {
	if u == nil {
		return ""
	}
	if sizes := asMap(u["avatarUrls"]); sizes != nil {
		for _, key := range []string{"48x48", "32x32", "24x24", "16x16"} {
			if v := asString(sizes[key]); v != "" {
				return v
			}
		}
	}
	if v := mapString(u, "avatarUrl"); v != "" {
		return v
	}
	if av := asMap(u["avatar"]); av != nil {
		if v := mapString(av, "url"); v != "" {
			return v
		}
	}
	return ""
}

// ExtractParticipants walks standard fields, the native approver list and the
// admin-configured custom field keys, producing a deduplicated, order-stable
// list of candidate recipients.
//
// Dedup policy: first occurrence per identity key wins; references without a
// derivable key are dropped entirely. Malformed shapes are skipped rather
// than errored; tracker payloads are heterogeneous and this is expected noise.
func ExtractParticipants(p Parsed, env Envelope, customFields []string) []UserRef {
	var collected []UserRef

	add := func(v any) {
		if m := asMap(v); m != nil {
			collected = append(collected, UserRef(m))
		}
	}

	// Fixed order: assignee, reporter, creator, watchers, approvers, actor.
	add(p.Fields["assignee"])
	add(p.Fields["reporter"])
	add(p.Fields["creator"])
	if watches := asMap(p.Fields["watches"]); watches != nil {
		for _, w := range asSlice(watches["watchers"]) {
			add(w)
		}
	}
	for _, a := range asSlice(env["approvers"]) {
		add(a)
	}
	add(env["user"])

	for _, key := range customFields {
		collectCustomField(p.Fields[key], add)
	}

	// First occurrence wins.
	seen := map[string]struct{}{}
	out := make([]UserRef, 0, len(collected))
	for _, ref := range collected {
		key := ref.IdentityKey()
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// collectCustomField interprets one custom field value. Recognized shapes:
//   - list of approval objects (first element has an "approvers" array)
//   - plain list of user references
//   - single approval object
//   - single user reference
//
// Anything else (null, primitives) is skipped.
func collectCustomField(value any, add func(any)) {
	switch {
	case isApprovalList(value):
		for _, item := range asSlice(value) {
			flattenApprovers(asMap(item), add)
		}
	case asSlice(value) != nil:
		for _, item := range asSlice(value) {
			add(item)
		}
	case asMap(value) != nil && asSlice(asMap(value)["approvers"]) != nil:
		flattenApprovers(asMap(value), add)
	case asMap(value) != nil:
		add(value)
	}
}

func isApprovalList(value any) bool {
	list := asSlice(value)
	if len(list) == 0 {
		return false
	}
	first := asMap(list[0])
	return first != nil && asSlice(first["approvers"]) != nil
}

// flattenApprovers appends the nested "approver" reference of each wrapper
// in the object's "approvers" array. Wrappers without one are skipped.
func flattenApprovers(obj map[string]any, add func(any)) {
	if obj == nil {
		return
	}
	for _, wrapper := range asSlice(obj["approvers"]) {
		w := asMap(wrapper)
		if w == nil {
			continue
		}
		if approver := asMap(w["approver"]); approver != nil {
			add(approver)
		}
	}
}
