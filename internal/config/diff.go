package config

import (
	"strings"

	logx "jirabridge/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections plus safe
// structured attrs for logging. Secrets (tokens) are never included, only
// whether they are set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Webhook != newCfg.Webhook {
		changed = append(changed, "webhook")
		attrs = append(attrs,
			logx.Bool("webhook.enabled", newCfg.Webhook.Enabled),
			logx.String("webhook.addr", strings.TrimSpace(newCfg.Webhook.Addr)),
			logx.String("webhook.path", strings.TrimSpace(newCfg.Webhook.Path)),
			logx.Bool("webhook.token_set", strings.TrimSpace(newCfg.Webhook.Token) != ""),
			logx.Int("webhook.rate_per_sec", newCfg.Webhook.RatePerSec),
		)
	}

	if oldCfg.Bridge != newCfg.Bridge {
		changed = append(changed, "bridge")
		attrs = append(attrs,
			logx.String("bridge.mapping_field", newCfg.Bridge.MappingField),
			logx.Bool("bridge.mapping_set", strings.TrimSpace(newCfg.Bridge.UserMapping) != ""),
			logx.String("bridge.custom_fields", newCfg.Bridge.CustomFields),
			logx.Bool("bridge.skip_internal_comments", newCfg.Bridge.SkipInternalComments),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.path", strings.TrimSpace(newCfg.Storage.Path)))
	}

	oldAudit, newAudit := AuditConfig{Enabled: true}, AuditConfig{Enabled: true}
	if oldCfg.Audit != nil {
		oldAudit = *oldCfg.Audit
	}
	if newCfg.Audit != nil {
		newAudit = *newCfg.Audit
	}
	if oldAudit != newAudit {
		changed = append(changed, "audit")
		attrs = append(attrs,
			logx.Bool("audit.enabled", newAudit.Enabled),
			logx.String("audit.retention", newAudit.Retention),
		)
	}

	return changed, attrs
}
