package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate checks a parsed config before it is committed. It is used both at
// startup and as the hot-reload validator, so a broken edit never replaces a
// working config.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}

	if _, err := ParseDurationOrDefault("telegram.poll_timeout", c.Telegram.PollTimeout, 0); err != nil {
		return err
	}
	for _, d := range []struct{ path, raw string }{
		{"webhook.read_timeout", c.Webhook.ReadTimeout},
		{"webhook.write_timeout", c.Webhook.WriteTimeout},
		{"webhook.idle_timeout", c.Webhook.IdleTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
	} {
		if _, err := ParseDurationOrDefault(d.path, d.raw, 0); err != nil {
			return err
		}
	}
	if c.Webhook.RatePerSec < 0 {
		return errors.New("webhook.rate_per_sec must not be negative")
	}

	if m := strings.TrimSpace(c.Bridge.MappingField); m != "" && strings.ContainsAny(m, " \t") {
		return fmt.Errorf("bridge.mapping_field %q must be a single attribute name", m)
	}

	if c.Audit != nil {
		if _, err := ParseDurationOrDefault("audit.retention", c.Audit.Retention, 0); err != nil {
			return err
		}
		if spec := strings.TrimSpace(c.Audit.PruneSchedule); spec != "" {
			if _, err := cron.ParseStandard(spec); err != nil {
				return fmt.Errorf("audit.prune_schedule: %w", err)
			}
		}
	}
	return nil
}
