// Package app wires configuration, storage, the chat adapter, the inbound
// webhook endpoint and the background services into one process.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jirabridge/internal/audit"
	"jirabridge/internal/bridge"
	"jirabridge/internal/config"
	"jirabridge/internal/directory"
	"jirabridge/internal/eventbus"
	"jirabridge/internal/linker"
	rtsup "jirabridge/internal/runtime/supervisor"
	kit "jirabridge/internal/transport"
	telegram "jirabridge/internal/transport/telegram"
	"jirabridge/internal/webhook"
	logx "jirabridge/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   *eventbus.Bus
	store *directory.Store

	adapter  *telegram.Adapter
	pipeline *bridge.Pipeline
	hook     *webhook.Service
	auditor  *audit.Service
	linker   *linker.Service

	messages chan kit.Message
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	storeCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := directory.Open(storeCfg, log.With(logx.String("comp", "directory")))
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	pipeline := bridge.New(log.With(logx.String("comp", "bridge")), bus)

	hookCfg, err := mapWebhookConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	hook := webhook.New(hookCfg, webhook.Deps{
		Processor: pipeline,
		Capabilities: bridge.Capabilities{
			Directory:     store,
			Conversations: directory.NewConversations(store, adapter),
			Identity:      directory.NewIdentity(adapter),
		},
		Settings: settingsSource(cfgm),
	}, log)

	auditCfg, err := mapAuditConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		adapter:  adapter,
		pipeline: pipeline,
		hook:     hook,
		auditor:  audit.New(auditCfg, store, bus, log),
		linker:   linker.New(store, adapter, log),
		messages: make(chan kit.Message, 256),
	}, nil
}

// Done is closed when the app supervisor context is cancelled (fatal error
// or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// Transactional hot-reload: a config that fails validation is never
	// committed or published.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if _, err := mapWebhookConfig(cfg); err != nil {
			return err
		}
		if _, err := mapAuditConfig(cfg); err != nil {
			return err
		}
		if _, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 0); err != nil {
			return err
		}
		return nil
	})

	if err := a.adapter.Start(a.sup.Context(), a.messages); err != nil {
		return err
	}

	a.hook.Start(a.sup.Context())

	a.sup.Go("linker.run", func(c context.Context) error {
		return a.linker.Run(c, a.messages)
	})
	a.sup.Go("audit.run", func(c context.Context) error {
		err := a.auditor.Run(c)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// reloadLoop applies committed config updates: logging level/sinks and the
// webhook listener. Bridge settings need no push, each event snapshots them
// from the live config; storage changes need a restart.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			sections, attrs := config.SummarizeConfigChange(lastApplied, newCfg)
			lastApplied = newCfg

			for _, s := range sections {
				switch s {
				case "storage":
					a.log.Warn("storage config changed; restart required for changes to take effect")
				case "telegram":
					a.log.Warn("telegram config changed; restart required for changes to take effect")
				case "audit":
					a.log.Warn("audit config changed; restart required for changes to take effect")
				}
			}

			a.logs.Apply(mapLoggingConfig(newCfg))

			if hookCfg, err := mapWebhookConfig(newCfg); err != nil {
				a.log.Warn("invalid webhook config; keeping previous", logx.Err(err))
			} else {
				a.hook.Reconfigure(ctx, hookCfg)
			}

			if len(sections) > 0 {
				fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
				a.log.Info("config reloaded", fields...)
			} else {
				a.log.Debug("config reload received, but no effective changes detected")
			}
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Bounded shutdown steps so one component cannot stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
	}

	step("webhook", 2*time.Second, func(c context.Context) error { a.hook.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
