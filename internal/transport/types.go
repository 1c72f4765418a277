package transport

import "context"

// Message is an inbound chat message (used for account linking commands).
type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// BotIdentity describes the sending application account on the chat platform.
type BotIdentity struct {
	ID       int64
	Username string
}

// Adapter is the chat-platform boundary. Implementations must be safe for
// concurrent SendText calls.
type Adapter interface {
	Start(ctx context.Context, out chan<- Message) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)

	// Me reports the application's own identity, if the platform session is
	// established. ok is false when the identity is unavailable.
	Me() (id BotIdentity, ok bool)
}
