// Package linker handles the chat-side commands that populate the account
// registry: users link their tracker username to their private chat so the
// bridge knows where to deliver notifications.
package linker

import (
	"context"
	"fmt"
	"strings"

	"jirabridge/internal/directory"
	"jirabridge/internal/transport"
	"jirabridge/pkg/chatfmt"
	logx "jirabridge/pkg/logx"
)

// The tracker side is the source of truth for what a username looks like;
// the length cap only rejects obviously broken input.
const maxUsernameLen = 128

type Service struct {
	store   *directory.Store
	adapter transport.Adapter
	log     logx.Logger
}

func New(store *directory.Store, adapter transport.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: store, adapter: adapter, log: log.With(logx.String("comp", "linker"))}
}

// Run consumes inbound chat messages until ctx is cancelled or the channel
// closes. Only private chats are served; the bridge never posts to groups.
func (s *Service) Run(ctx context.Context, in <-chan transport.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			if msg.IsGroup {
				continue
			}
			s.handle(ctx, msg)
		}
	}
}

func (s *Service) handle(ctx context.Context, msg transport.Message) {
	cmd, arg := splitCommand(msg.Text)

	var reply chatfmt.H
	switch cmd {
	case "/start", "/help":
		reply = helpText()
	case "/link":
		reply = s.link(ctx, msg, arg)
	case "/unlink":
		reply = s.unlink(ctx, msg, arg)
	case "/list":
		reply = s.list(ctx, msg)
	default:
		return
	}

	_, err := s.adapter.SendText(ctx, transport.ChatTarget{ChatID: msg.ChatID}, reply.String(), &transport.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	if err != nil {
		s.log.Warn("reply failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
	}
}

func (s *Service) link(ctx context.Context, msg transport.Message, arg string) chatfmt.H {
	username := strings.TrimSpace(arg)
	if username == "" || len(username) > maxUsernameLen || strings.ContainsAny(username, " \t\n") {
		return chatfmt.Esc("Usage: /link <tracker username>")
	}

	if err := s.store.Link(ctx, username, msg.FromUsername, msg.ChatID); err != nil {
		s.log.Error("link failed", logx.String("username", username), logx.Err(err))
		return chatfmt.Esc("Could not save the link, try again later.")
	}
	s.log.Info("account linked", logx.String("username", username), logx.Int64("chat_id", msg.ChatID))
	return chatfmt.JoinH(" ", chatfmt.Esc("Linked"), chatfmt.B(username), chatfmt.Esc("to this chat. Issue notifications will arrive here."))
}

func (s *Service) unlink(ctx context.Context, msg transport.Message, arg string) chatfmt.H {
	username := strings.TrimSpace(arg)

	if username == "" {
		n, err := s.store.UnlinkChat(ctx, msg.ChatID)
		if err != nil {
			s.log.Error("unlink failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
			return chatfmt.Esc("Could not remove the links, try again later.")
		}
		return chatfmt.Esc(fmt.Sprintf("Removed %d linked username(s) from this chat.", n))
	}

	removed, err := s.store.Unlink(ctx, username)
	if err != nil {
		s.log.Error("unlink failed", logx.String("username", username), logx.Err(err))
		return chatfmt.Esc("Could not remove the link, try again later.")
	}
	if !removed {
		return chatfmt.JoinH(" ", chatfmt.B(username), chatfmt.Esc("was not linked."))
	}
	return chatfmt.JoinH(" ", chatfmt.Esc("Unlinked"), chatfmt.B(username), chatfmt.Esc("from this chat."))
}

func (s *Service) list(ctx context.Context, msg transport.Message) chatfmt.H {
	accounts, err := s.store.AccountsByChat(ctx, msg.ChatID)
	if err != nil {
		s.log.Error("list failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
		return chatfmt.Esc("Could not read the registry, try again later.")
	}
	if len(accounts) == 0 {
		return chatfmt.Esc("No tracker usernames are linked to this chat. Use /link <username>.")
	}

	parts := make([]chatfmt.H, 0, len(accounts)+1)
	parts = append(parts, chatfmt.Esc("Linked usernames:"))
	for _, a := range accounts {
		parts = append(parts, chatfmt.B(a.Username))
	}
	return chatfmt.JoinH("\n", parts...)
}

func helpText() chatfmt.H {
	return chatfmt.JoinH("\n",
		chatfmt.Esc("I deliver issue-tracker notifications as direct messages."),
		chatfmt.Esc("/link <username> links your tracker username to this chat"),
		chatfmt.Esc("/unlink [username] removes one link, or all links of this chat"),
		chatfmt.Esc("/list shows the usernames linked to this chat"),
	)
}

// splitCommand separates "/cmd arg..." and strips a "@botname" suffix from
// the command itself.
func splitCommand(text string) (cmd, arg string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, arg, _ = strings.Cut(text, " ")
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}
