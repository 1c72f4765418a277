package bridge

import (
	"context"
	"fmt"

	logx "jirabridge/pkg/logx"
)

// Failure tags recorded on resolutions and delivery outcomes.
const (
	TagNoIdentifier       = "no-identifier"
	TagNotFound           = "not-found"
	TagLookupError        = "lookup-error"
	TagUnhandledEvent     = "unhandled-event"
	TagInternalComment    = "internal-comment-suppressed"
	TagAppIdentity        = "app-identity-unavailable"
	TagConversationFailed = "conversation-error"
	TagSendFailed         = "send-error"
)

// Resolution is the outcome of mapping one participant to a destination
// account. Every participant yields exactly one resolution, success or not;
// participants are never silently dropped.
type Resolution struct {
	Participant UserRef
	Username    string
	Account     *Account // non-nil iff Tag is empty
	Tag         string
}

func (r Resolution) OK() bool { return r.Tag == "" }

// ResolveAll maps participants to destination accounts, preserving input
// order. The mapping table and mapping field come from the settings snapshot;
// directory lookups go through the injected capability.
//
// Returned warnings describe lookup errors in operator-readable form.
func ResolveAll(ctx context.Context, participants []UserRef, st Settings, dir Directory, log logx.Logger) ([]Resolution, []string) {
	results := make([]Resolution, 0, len(participants))
	var warnings []string

	for _, ref := range participants {
		res := Resolution{Participant: ref}

		rawKey := ref.Attr(st.MappingField)
		username := rawKey
		if rawKey != "" {
			if mapped, ok := st.Mapping[rawKey]; ok {
				username = mapped
			}
		}

		if username == "" {
			res.Tag = TagNoIdentifier
			log.Debug("participant has no usable identifier", logx.String("mapping_field", st.MappingField), logx.String("identity_key", ref.IdentityKey()))
			results = append(results, res)
			continue
		}
		res.Username = username

		acct, err := dir.FindUserByUsername(ctx, username)
		switch {
		case err != nil:
			res.Tag = TagLookupError
			warnings = append(warnings, fmt.Sprintf("directory lookup failed for %q: %v", username, err))
			log.Warn("directory lookup failed", logx.String("username", username), logx.Err(err))
		case acct == nil:
			res.Tag = TagNotFound
			log.Debug("no destination account", logx.String("username", username))
		default:
			res.Account = acct
		}
		results = append(results, res)
	}

	return results, warnings
}
