package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Account is a destination-platform account handle.
type Account struct {
	Username    string
	DisplayName string
	ChatID      int64
}

// Conversation is a direct-message channel between the application identity
// and one recipient.
type Conversation struct {
	ChatID int64
}

// Directory looks up destination-platform accounts.
// A (nil, nil) return means "not found" (distinct from lookup failure).
type Directory interface {
	FindUserByUsername(ctx context.Context, username string) (*Account, error)
}

// Conversations manages direct-message channels and message dispatch.
// FindDirect returns (nil, nil) when no conversation exists yet.
type Conversations interface {
	FindDirect(ctx context.Context, members []string) (*Conversation, error)
	CreateDirect(ctx context.Context, creator string, members []string) error
	SendMessage(ctx context.Context, conv *Conversation, sender string, att Attachment) error
}

// AppIdentity reports the sending application's own account.
// A (nil, nil) return means the identity is unavailable.
type AppIdentity interface {
	AppAccount(ctx context.Context) (*Account, error)
}

// Capabilities bundles the host-provided collaborators the pipeline consumes.
type Capabilities struct {
	Directory     Directory
	Conversations Conversations
	Identity      AppIdentity
}

// Settings is the per-invocation configuration snapshot. It is resolved once
// before any stage runs and applied uniformly to all participants, so a
// concurrent config reload never produces a half-updated event.
type Settings struct {
	// Mapping is the explicit identity mapping table (tracker key -> destination
	// username). Keys absent from the table fall through unchanged.
	Mapping map[string]string

	// MappingField names the participant attribute used as the mapping key.
	MappingField string

	// CustomFields are the additional field keys scanned for participants.
	CustomFields []string

	// SkipInternalComments suppresses delivery of non-public comments.
	SkipInternalComments bool

	// DefaultIconURL is the fallback avatar/thumbnail.
	DefaultIconURL string
}

// ParseSettings builds a Settings snapshot from raw configuration values.
//
// Malformed mapping JSON is recovered locally: the pipeline proceeds with an
// empty table and the problem is surfaced as a warning in the final response
// rather than aborting the event.
func ParseSettings(mappingJSON, mappingField, customFields string, skipInternal bool, defaultIcon string) (Settings, []string) {
	var warnings []string

	st := Settings{
		Mapping:              map[string]string{},
		MappingField:         strings.TrimSpace(mappingField),
		SkipInternalComments: skipInternal,
		DefaultIconURL:       defaultIcon,
	}
	if st.MappingField == "" {
		st.MappingField = "name"
	}
	if st.DefaultIconURL == "" {
		st.DefaultIconURL = DefaultIconURL
	}

	if raw := strings.TrimSpace(mappingJSON); raw != "" {
		if err := json.Unmarshal([]byte(raw), &st.Mapping); err != nil {
			st.Mapping = map[string]string{}
			warnings = append(warnings, fmt.Sprintf("user mapping is not valid JSON, using empty mapping: %v", err))
		}
	}

	for _, key := range strings.Split(customFields, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		st.CustomFields = append(st.CustomFields, key)
	}

	return st, warnings
}
