// Package messaging provides the pluggable chat transport abstraction used
// by the dialogue controller.
package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/vmoreyra/registrobot/internal/models"
)

// Constants shared by service implementations
const (
	// DefaultChannelBufferSize defines the default buffer size for the responses channel
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// Service defines a pluggable message delivery abstraction.
// It supports sending messages, optionally with a flat list of suggested
// replies, and provides a channel of incoming participant responses.
type Service interface {
	// SendMessage sends a plain text message to a conversation.
	SendMessage(ctx context.Context, to string, body string) error

	// SendMenu sends a message offering a flat list of suggested replies.
	// Transports without keyboards degrade to enumerating the options in
	// the message body; any free text remains an acceptable reply.
	SendMenu(ctx context.Context, to string, body string, options []string) error

	// Start begins any background processing (e.g., polling for updates).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming participant responses.
	Responses() <-chan models.Response
}
