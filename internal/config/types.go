package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Webhook  WebhookConfig  `json:"webhook"`
	Bridge   BridgeConfig   `json:"bridge"`
	Storage  StorageConfig  `json:"storage"`
	Audit    *AuditConfig   `json:"audit,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// WebhookConfig controls the inbound HTTP endpoint.
//
// Security note:
//   - Prefer binding to localhost behind a reverse proxy.
//   - If you bind to a non-loopback address, set a token or explicitly
//     allow_insecure.
type WebhookConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:8077"
	Path          string `json:"path,omitempty"`  // default: "/webhook"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// Server timeouts (Go duration strings).
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	// RatePerSec bounds accepted events per second (burst = same value).
	// 0 keeps the default of 10.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// BridgeConfig holds the notification pipeline settings.
//
// These map 1:1 onto the per-event settings snapshot; they can be hot-reloaded
// and each incoming event sees a consistent view.
type BridgeConfig struct {
	// UserMapping is a JSON object string mapping tracker-side identifiers to
	// Telegram-side usernames, e.g. {"jdoe": "john.doe"}. Identifiers not in
	// the map fall through unchanged.
	UserMapping string `json:"user_mapping,omitempty"`

	// MappingField names the tracker user attribute used as the mapping key
	// ("name", "emailAddress", "accountId", ...). Default: "name".
	MappingField string `json:"mapping_field,omitempty"`

	// CustomFields is a comma-separated list of custom field keys
	// (e.g. "customfield_10100,customfield_10230") scanned for extra
	// participants, including approval-style wrappers.
	CustomFields string `json:"custom_fields,omitempty"`

	// SkipInternalComments suppresses delivery for comments flagged
	// non-public by the tracker.
	SkipInternalComments bool `json:"skip_internal_comments,omitempty"`

	// DefaultIconURL overrides the built-in fallback avatar/thumbnail icon.
	DefaultIconURL string `json:"default_icon_url,omitempty"`
}

// StorageConfig controls the account directory database.
type StorageConfig struct {
	Path        string `json:"path,omitempty"`         // default: "./jirabridge.db"
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// AuditConfig controls the delivery audit trail.
//
// If the whole section is omitted, auditing defaults to enabled.
type AuditConfig struct {
	Enabled bool `json:"enabled"`
	// Retention is a Go duration string; audit rows older than this are
	// pruned. "0s" disables pruning. Default: "720h" (30 days).
	Retention string `json:"retention,omitempty"`
	// PruneSchedule is a cron spec for the retention job. Default: "17 3 * * *".
	PruneSchedule string `json:"prune_schedule,omitempty"`
}
