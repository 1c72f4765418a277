package linker

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"jirabridge/internal/directory"
	"jirabridge/internal/transport"
	"jirabridge/pkg/logx"
)

type fakeAdapter struct {
	sent   []string
	sentTo []int64
}

func (a *fakeAdapter) Start(context.Context, chan<- transport.Message) error { return nil }
func (a *fakeAdapter) Stop(context.Context) error                            { return nil }
func (a *fakeAdapter) Me() (transport.BotIdentity, bool) {
	return transport.BotIdentity{ID: 1, Username: "bridgebot"}, true
}

func (a *fakeAdapter) SendText(_ context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	a.sent = append(a.sent, text)
	a.sentTo = append(a.sentTo, to.ChatID)
	return transport.MessageRef{ChatID: to.ChatID}, nil
}

func newTestService(t *testing.T) (*Service, *directory.Store, *fakeAdapter) {
	t.Helper()
	store, err := directory.Open(directory.Config{Path: filepath.Join(t.TempDir(), "registry.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ad := &fakeAdapter{}
	return New(store, ad, logx.Nop()), store, ad
}

func msg(chatID int64, text string) transport.Message {
	return transport.Message{ChatID: chatID, FromUsername: "tg_user", Text: text}
}

func TestLinkCommand(t *testing.T) {
	t.Parallel()
	svc, store, ad := newTestService(t)
	ctx := context.Background()

	svc.handle(ctx, msg(42, "/link jdoe"))

	acct, err := store.FindUserByUsername(ctx, "jdoe")
	if err != nil || acct == nil {
		t.Fatalf("account not stored: %+v, %v", acct, err)
	}
	if acct.ChatID != 42 {
		t.Fatalf("ChatID = %d, want 42", acct.ChatID)
	}
	if len(ad.sent) != 1 || !strings.Contains(ad.sent[0], "jdoe") {
		t.Fatalf("reply = %v", ad.sent)
	}
	if ad.sentTo[0] != 42 {
		t.Fatalf("reply chat = %d", ad.sentTo[0])
	}
}

func TestLinkUsage(t *testing.T) {
	t.Parallel()
	svc, store, ad := newTestService(t)
	ctx := context.Background()

	svc.handle(ctx, msg(42, "/link"))
	svc.handle(ctx, msg(42, "/link two words"))

	if accounts, _ := store.LinkedAccounts(ctx); len(accounts) != 0 {
		t.Fatalf("accounts = %v, want none", accounts)
	}
	for _, reply := range ad.sent {
		if !strings.Contains(reply, "Usage") {
			t.Fatalf("reply = %q, want usage hint", reply)
		}
	}
}

func TestUnlinkCommand(t *testing.T) {
	t.Parallel()
	svc, store, ad := newTestService(t)
	ctx := context.Background()

	if err := store.Link(ctx, "jdoe", "", 42); err != nil {
		t.Fatalf("Link: %v", err)
	}
	svc.handle(ctx, msg(42, "/unlink jdoe"))

	if acct, _ := store.FindUserByUsername(ctx, "jdoe"); acct != nil {
		t.Fatalf("account still present: %+v", acct)
	}
	if len(ad.sent) != 1 || !strings.Contains(ad.sent[0], "Unlinked") {
		t.Fatalf("reply = %v", ad.sent)
	}

	svc.handle(ctx, msg(42, "/unlink ghost"))
	if !strings.Contains(ad.sent[1], "not linked") {
		t.Fatalf("reply = %q", ad.sent[1])
	}
}

func TestUnlinkAllForChat(t *testing.T) {
	t.Parallel()
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_ = store.Link(ctx, "a", "", 42)
	_ = store.Link(ctx, "b", "", 42)
	_ = store.Link(ctx, "c", "", 99)

	svc.handle(ctx, msg(42, "/unlink"))

	left, _ := store.LinkedAccounts(ctx)
	if len(left) != 1 || left[0].Username != "c" {
		t.Fatalf("accounts = %v, want only c", left)
	}
}

func TestListCommand(t *testing.T) {
	t.Parallel()
	svc, store, ad := newTestService(t)
	ctx := context.Background()

	svc.handle(ctx, msg(42, "/list"))
	if !strings.Contains(ad.sent[0], "No tracker usernames") {
		t.Fatalf("empty reply = %q", ad.sent[0])
	}

	_ = store.Link(ctx, "jdoe", "", 42)
	_ = store.Link(ctx, "other", "", 99)
	svc.handle(ctx, msg(42, "/list"))
	if !strings.Contains(ad.sent[1], "jdoe") || strings.Contains(ad.sent[1], "other") {
		t.Fatalf("list reply = %q", ad.sent[1])
	}
}

func TestIgnoresGroupAndPlainText(t *testing.T) {
	t.Parallel()
	svc, _, ad := newTestService(t)
	ctx := context.Background()

	ch := make(chan transport.Message, 2)
	ch <- transport.Message{ChatID: 1, Text: "/link jdoe", IsGroup: true}
	ch <- transport.Message{ChatID: 1, Text: "hello there"}
	close(ch)
	if err := svc.Run(ctx, ch); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ad.sent) != 0 {
		t.Fatalf("replies = %v, want none", ad.sent)
	}
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, cmd, arg string
	}{
		{"/link jdoe", "/link", "jdoe"},
		{"/link@bridgebot jdoe", "/link", "jdoe"},
		{"/LIST", "/list", ""},
		{"  /unlink  ", "/unlink", ""},
		{"hello", "", "hello"},
	}
	for _, tt := range tests {
		cmd, arg := splitCommand(tt.in)
		if cmd != tt.cmd || arg != tt.arg {
			t.Fatalf("splitCommand(%q) = %q, %q", tt.in, cmd, arg)
		}
	}
}
