// Package gateway is the chat transport: inbound messages and outgoing prompts.
package gateway

import (
	"context"

	"telegram-emotion-diary/internal/models"
)

// Update is one inbound text message.
type Update struct {
	UserID int64
	Text   string
	// Command is set when Text is a bot command, without the leading slash.
	Command string
}

// Sender delivers a prompt to a user.
type Sender interface {
	Send(ctx context.Context, userID int64, p models.Prompt) error
}

// Gateway is a Sender that also produces the inbound message stream.
type Gateway interface {
	Sender
	// Updates yields messages in arrival order until ctx is done. It can be called once.
	Updates(ctx context.Context) <-chan Update
}
