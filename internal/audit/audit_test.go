package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"jirabridge/internal/directory"
	"jirabridge/internal/eventbus"
	"jirabridge/pkg/logx"
)

func newTestService(t *testing.T, cfg Config) (*Service, *directory.Store, *eventbus.Bus) {
	t.Helper()
	store, err := directory.Open(directory.Config{Path: filepath.Join(t.TempDir(), "audit.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	bus := eventbus.New()
	return New(cfg, store, bus, logx.Nop()), store, bus
}

func auditRows(t *testing.T, store *directory.Store) int64 {
	t.Helper()
	// Prune with a future cutoff counts (and clears) everything recorded.
	n, err := store.PruneAudit(context.Background(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PruneAudit: %v", err)
	}
	return n
}

func TestRecordDeliveryEvents(t *testing.T) {
	t.Parallel()
	svc, store, _ := newTestService(t, Config{Enabled: true})
	ctx := context.Background()

	svc.record(ctx, eventbus.Event{
		Type: "bridge.delivered",
		Time: time.Now(),
		Data: map[string]any{"issue": "PRJ-1", "username": "bob"},
	})
	svc.record(ctx, eventbus.Event{
		Type: "bridge.failed",
		Time: time.Now(),
		Data: map[string]any{"issue": "PRJ-1", "username": "carol", "tag": "send-error"},
	})
	// Unrelated bus traffic is ignored.
	svc.record(ctx, eventbus.Event{Type: "config.reloaded"})

	if n := auditRows(t, store); n != 2 {
		t.Fatalf("rows = %d, want 2", n)
	}
}

func TestRunConsumesBus(t *testing.T) {
	t.Parallel()
	svc, store, bus := newTestService(t, Config{Enabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Run(ctx)
	}()

	// Events published before the subscription is live are dropped, so
	// publish until one lands.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		bus.Publish(eventbus.Event{
			Type: "bridge.delivered",
			Data: map[string]any{"issue": "PRJ-9", "username": "bob"},
		})
		if n := auditRows(t, store); n >= 1 {
			cancel()
			<-done
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("event was not recorded in time")
}

func TestDisabledDoesNothing(t *testing.T) {
	t.Parallel()
	svc, store, bus := newTestService(t, Config{Enabled: false})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = svc.Run(ctx)

	bus.Publish(eventbus.Event{Type: "bridge.delivered", Data: map[string]any{"issue": "X"}})
	if n := auditRows(t, store); n != 0 {
		t.Fatalf("rows = %d, want 0 when disabled", n)
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg := Config{Enabled: true}.withDefaults()
	if cfg.Retention != 30*24*time.Hour {
		t.Fatalf("Retention = %v", cfg.Retention)
	}
	if cfg.PruneSchedule != "17 3 * * *" {
		t.Fatalf("PruneSchedule = %q", cfg.PruneSchedule)
	}
}
