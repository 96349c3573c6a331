package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/vmoreyra/registrobot/internal/models"
	"github.com/vmoreyra/registrobot/internal/telegram"
)

// menuColumns is how many options share one keyboard row.
const menuColumns = 2

// TelegramService implements Service using the Telegram Bot API client.
// Conversation ids are Telegram chat ids rendered as decimal strings.
type TelegramService struct {
	client    *telegram.Client
	responses chan models.Response
	done      chan struct{}
	mu        sync.RWMutex
	stopped   bool
}

// NewTelegramService creates a new TelegramService wrapping the given client.
func NewTelegramService(client *telegram.Client) *TelegramService {
	return &TelegramService{
		client:    client,
		responses: make(chan models.Response, DefaultChannelBufferSize),
		done:      make(chan struct{}),
	}
}

func parseChatID(to string) (int64, error) {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", to, err)
	}
	return chatID, nil
}

// SendMessage sends a plain text message to a chat.
func (s *TelegramService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	chatID, err := parseChatID(to)
	if err != nil {
		slog.Error("TelegramService SendMessage invalid recipient", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, chatID, body)
}

// SendMenu sends a message with the options rendered as a one-time reply
// keyboard, two per row.
func (s *TelegramService) SendMenu(ctx context.Context, to string, body string, options []string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	chatID, err := parseChatID(to)
	if err != nil {
		slog.Error("TelegramService SendMenu invalid recipient", "error", err, "to", to)
		return err
	}
	if len(options) == 0 {
		return s.client.SendMessage(ctx, chatID, body)
	}

	var rows [][]string
	for i := 0; i < len(options); i += menuColumns {
		end := i + menuColumns
		if end > len(options) {
			end = len(options)
		}
		rows = append(rows, options[i:end])
	}
	return s.client.SendMessageWithKeyboard(ctx, chatID, body, rows)
}

// Start launches the long-poll loop feeding inbound messages into the
// responses channel. It returns immediately; polling runs until the context
// is cancelled or Stop is called.
func (s *TelegramService) Start(ctx context.Context) error {
	slog.Debug("TelegramService Start invoked")
	if _, err := s.client.GetMe(ctx); err != nil {
		slog.Error("TelegramService startup authentication failed", "error", err)
		return fmt.Errorf("telegram authentication failed: %w", err)
	}
	go s.pollUpdates(ctx)
	return nil
}

func (s *TelegramService) pollUpdates(ctx context.Context) {
	slog.Debug("TelegramService poll loop starting")
	var offset int64
	for {
		select {
		case <-ctx.Done():
			slog.Info("TelegramService poll loop stopping", "reason", "context cancelled")
			return
		case <-s.done:
			slog.Info("TelegramService poll loop stopping", "reason", "service stopped")
			return
		default:
		}

		updates, err := s.client.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("TelegramService GetUpdates failed, backing off", "error", err)
			time.Sleep(2 * time.Second)
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.Text == "" {
				slog.Debug("TelegramService ignoring non-text update", "update_id", u.UpdateID)
				continue
			}
			resp := models.Response{
				From: strconv.FormatInt(u.Message.Chat.ID, 10),
				Body: u.Message.Text,
				Time: u.Message.Date,
			}
			if u.Message.From != nil {
				resp.Username = u.Message.From.Username
				resp.DisplayName = u.Message.From.FirstName
			}
			s.safeEmitResponse(resp)
		}
	}
}

// Stop closes channels and stops the service.
func (s *TelegramService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.responses)
	}()

	slog.Info("TelegramService stopped")
	return nil
}

// Responses returns the channel of incoming participant responses.
func (s *TelegramService) Responses() <-chan models.Response {
	return s.responses
}

func (s *TelegramService) safeEmitResponse(resp models.Response) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("TelegramService dropping inbound response (service stopped)", "from", resp.From)
		return
	}

	select {
	case s.responses <- resp:
		slog.Debug("TelegramService emitted inbound response", "from", resp.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TelegramService responses channel blocked, dropping message", "from", resp.From)
	}
}
