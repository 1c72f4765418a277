package directory

import (
	"context"
	"errors"
	"fmt"

	"jirabridge/internal/bridge"
	"jirabridge/internal/transport"
)

// Conversations implements the pipeline's conversation capability on top of
// the registry and a chat adapter. A "direct conversation" is the recipient's
// private chat with the application, recorded once in the conversations table.
type Conversations struct {
	store   *Store
	adapter transport.Adapter
}

func NewConversations(store *Store, adapter transport.Adapter) *Conversations {
	return &Conversations{store: store, adapter: adapter}
}

func (c *Conversations) FindDirect(ctx context.Context, members []string) (*bridge.Conversation, error) {
	return c.store.findConversation(ctx, members)
}

// CreateDirect records the direct conversation for a member pair. The chat
// handle comes from the recipient's registration; the platform itself opens
// the private chat when the user first talks to the application, so there is
// no outbound call here.
func (c *Conversations) CreateDirect(ctx context.Context, creator string, members []string) error {
	recipient := ""
	for _, m := range members {
		if m != creator {
			recipient = m
			break
		}
	}
	if recipient == "" {
		return errors.New("directory: conversation needs a recipient besides the creator")
	}

	acct, err := c.store.FindUserByUsername(ctx, recipient)
	if err != nil {
		return err
	}
	if acct == nil {
		return fmt.Errorf("directory: %q is not linked", recipient)
	}
	return c.store.createConversation(ctx, members, acct.ChatID)
}

func (c *Conversations) SendMessage(ctx context.Context, conv *bridge.Conversation, _ string, att bridge.Attachment) error {
	if conv == nil {
		return errors.New("directory: nil conversation")
	}
	_, err := c.adapter.SendText(ctx, transport.ChatTarget{ChatID: conv.ChatID}, RenderHTML(att), &transport.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	return err
}

// Identity implements the pipeline's application-identity capability from the
// adapter's live session.
type Identity struct {
	adapter transport.Adapter
}

func NewIdentity(adapter transport.Adapter) *Identity {
	return &Identity{adapter: adapter}
}

func (i *Identity) AppAccount(context.Context) (*bridge.Account, error) {
	me, ok := i.adapter.Me()
	if !ok || me.Username == "" {
		return nil, nil
	}
	return &bridge.Account{Username: me.Username, DisplayName: me.Username, ChatID: me.ID}, nil
}
