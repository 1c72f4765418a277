package app

import (
	"time"

	"jirabridge/internal/audit"
	"jirabridge/internal/bridge"
	"jirabridge/internal/config"
	"jirabridge/internal/directory"
	"jirabridge/internal/webhook"
	logx "jirabridge/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapWebhookConfig(cfg *config.Config) (webhook.Config, error) {
	read, err := config.ParseDurationOrDefault("webhook.read_timeout", cfg.Webhook.ReadTimeout, 10*time.Second)
	if err != nil {
		return webhook.Config{}, err
	}
	write, err := config.ParseDurationOrDefault("webhook.write_timeout", cfg.Webhook.WriteTimeout, 30*time.Second)
	if err != nil {
		return webhook.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("webhook.idle_timeout", cfg.Webhook.IdleTimeout, time.Minute)
	if err != nil {
		return webhook.Config{}, err
	}
	return webhook.Config{
		Enabled:       cfg.Webhook.Enabled,
		Addr:          cfg.Webhook.Addr,
		Path:          cfg.Webhook.Path,
		Token:         cfg.Webhook.Token,
		AllowInsecure: cfg.Webhook.AllowInsecure,
		ReadTimeout:   read,
		WriteTimeout:  write,
		IdleTimeout:   idle,
		RatePerSec:    cfg.Webhook.RatePerSec,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (directory.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return directory.Config{}, err
	}
	path := cfg.Storage.Path
	if path == "" {
		path = "./jirabridge.db"
	}
	return directory.Config{Path: path, BusyTimeout: busy}, nil
}

func mapAuditConfig(cfg *config.Config) (audit.Config, error) {
	// Auditing defaults to enabled when the section is omitted.
	if cfg.Audit == nil {
		return audit.Config{Enabled: true}, nil
	}
	retention, err := config.ParseDurationOrDefault("audit.retention", cfg.Audit.Retention, 0)
	if err != nil {
		return audit.Config{}, err
	}
	return audit.Config{
		Enabled:       cfg.Audit.Enabled,
		Retention:     retention,
		PruneSchedule: cfg.Audit.PruneSchedule,
	}, nil
}

// settingsSource builds the per-event settings snapshot from the live config,
// so hot reloads apply to the next event without restarting anything.
func settingsSource(cfgm *config.Manager) func() (bridge.Settings, []string) {
	return func() (bridge.Settings, []string) {
		cfg := cfgm.Get()
		if cfg == nil {
			return bridge.ParseSettings("", "", "", false, "")
		}
		return bridge.ParseSettings(
			cfg.Bridge.UserMapping,
			cfg.Bridge.MappingField,
			cfg.Bridge.CustomFields,
			cfg.Bridge.SkipInternalComments,
			cfg.Bridge.DefaultIconURL,
		)
	}
}
