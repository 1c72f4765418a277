// Package audit records delivery outcomes published on the event bus and
// enforces a retention window on the audit trail.
package audit

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"jirabridge/internal/directory"
	"jirabridge/internal/eventbus"
	logx "jirabridge/pkg/logx"
)

// Config controls the audit trail.
type Config struct {
	Enabled bool
	// Retention prunes audit rows older than this. 0 disables pruning.
	Retention time.Duration
	// PruneSchedule is a five-field cron spec for the retention job.
	PruneSchedule string
}

func (c Config) withDefaults() Config {
	if c.Retention == 0 {
		c.Retention = 30 * 24 * time.Hour
	}
	if c.PruneSchedule == "" {
		c.PruneSchedule = "17 3 * * *"
	}
	return c
}

type Service struct {
	cfg   Config
	store *directory.Store
	bus   *eventbus.Bus
	log   logx.Logger

	c *cron.Cron
}

func New(cfg Config, store *directory.Store, bus *eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg.withDefaults(),
		store: store,
		bus:   bus,
		log:   log.With(logx.String("comp", "audit")),
	}
}

// Run subscribes to delivery events and blocks until ctx is cancelled.
// The retention job runs on its own cron schedule while Run is active.
func (s *Service) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		<-ctx.Done()
		return ctx.Err()
	}

	if s.cfg.Retention > 0 {
		s.c = cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		)))
		if _, err := s.c.AddFunc(s.cfg.PruneSchedule, func() { s.prune(ctx) }); err != nil {
			return err
		}
		s.c.Start()
		defer s.c.Stop()
	}

	sub := s.bus.Subscribe(64)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			s.record(ctx, ev)
		}
	}
}

func (s *Service) record(ctx context.Context, ev eventbus.Event) {
	if ev.Type != "bridge.delivered" && ev.Type != "bridge.failed" {
		return
	}
	data, _ := ev.Data.(map[string]any)
	entry := directory.AuditEntry{
		At:       ev.Time,
		Event:    ev.Type,
		Issue:    str(data["issue"]),
		Username: str(data["username"]),
		Tag:      str(data["tag"]),
	}
	if err := s.store.AppendAudit(ctx, entry); err != nil {
		s.log.Warn("audit append failed", logx.String("event", ev.Type), logx.Err(err))
	}
}

func (s *Service) prune(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.Retention)
	n, err := s.store.PruneAudit(ctx, cutoff)
	if err != nil {
		s.log.Warn("audit prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Info("audit pruned", logx.Int64("rows", n), logx.Time("cutoff", cutoff))
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
