// Package telegram wraps the Telegram Bot API for registrobot.
//
// It provides methods for sending messages (optionally with a reply
// keyboard) and long-polling for updates. The Bot API is spoken directly
// over HTTP and JSON; no SDK is involved.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Constants for Telegram client configuration
const (
	// DefaultBaseURL is the public Bot API endpoint.
	DefaultBaseURL = "https://api.telegram.org"
	// DefaultPollTimeout is the long-poll timeout passed to getUpdates.
	DefaultPollTimeout = 30 * time.Second
)

// Opts holds configuration options for the Telegram client.
type Opts struct {
	Token       string
	BaseURL     string
	HTTPClient  *http.Client
	PollTimeout time.Duration
}

// Option defines a configuration option for the Telegram client.
type Option func(*Opts)

// WithToken sets the bot authentication token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithBaseURL overrides the Bot API endpoint (used by tests).
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithPollTimeout sets the getUpdates long-poll timeout.
func WithPollTimeout(d time.Duration) Option {
	return func(o *Opts) { o.PollTimeout = d }
}

// User is a Telegram user as reported on inbound messages.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	IsBot     bool   `json:"is_bot,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID int64 `json:"id"`
}

// Message is an inbound or outbound Telegram message.
type Message struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text,omitempty"`
	Chat      Chat   `json:"chat"`
	From      *User  `json:"from,omitempty"`
	Date      int64  `json:"date"`
}

// Update is one entry from getUpdates.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// ReplyKeyboardMarkup renders a one-time suggested-reply keyboard.
type ReplyKeyboardMarkup struct {
	Keyboard        [][]string `json:"keyboard"`
	OneTimeKeyboard bool       `json:"one_time_keyboard"`
	ResizeKeyboard  bool       `json:"resize_keyboard"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

type sendMessageRequest struct {
	ChatID      int64                `json:"chat_id"`
	Text        string               `json:"text"`
	ReplyMarkup *ReplyKeyboardMarkup `json:"reply_markup,omitempty"`
}

type getUpdatesRequest struct {
	Offset  int64 `json:"offset,omitempty"`
	Timeout int   `json:"timeout,omitempty"`
}

// Client is a minimal Telegram Bot API client.
type Client struct {
	token       string
	baseURL     string
	httpClient  *http.Client
	pollTimeout time.Duration
}

// NewClient creates a new Telegram client, applying any provided options.
// The token is required; everything else has sane defaults.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Telegram NewClient options set", "token_set", cfg.Token != "", "base_url_set", cfg.BaseURL != "")

	if cfg.Token == "" {
		slog.Error("Telegram client token not set")
		return nil, fmt.Errorf("bot token must be provided")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		// Long polls must outlive the poll timeout itself.
		cfg.HTTPClient = &http.Client{Timeout: DefaultPollTimeout + 15*time.Second}
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}

	return &Client{
		token:       cfg.Token,
		baseURL:     cfg.BaseURL,
		httpClient:  cfg.HTTPClient,
		pollTimeout: cfg.PollTimeout,
	}, nil
}

// call performs one Bot API method call and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !apiResp.OK {
		slog.Error("Telegram API call rejected", "method", method, "error_code", apiResp.ErrorCode, "description", apiResp.Description)
		return fmt.Errorf("telegram %s failed: %s (code %d)", method, apiResp.Description, apiResp.ErrorCode)
	}

	if out != nil {
		if err := json.Unmarshal(apiResp.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// GetMe verifies the token by fetching the bot's own identity.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", struct{}{}, &me); err != nil {
		return nil, err
	}
	slog.Info("Telegram bot authenticated", "username", me.Username)
	return &me, nil
}

// SendMessage sends a plain text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	slog.Debug("Telegram SendMessage invoked", "chat_id", chatID, "body_length", len(text))
	return c.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text}, nil)
}

// SendMessageWithKeyboard sends a message with a one-time reply keyboard.
func (c *Client) SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, rows [][]string) error {
	slog.Debug("Telegram SendMessageWithKeyboard invoked", "chat_id", chatID, "rows", len(rows))
	req := sendMessageRequest{
		ChatID: chatID,
		Text:   text,
		ReplyMarkup: &ReplyKeyboardMarkup{
			Keyboard:        rows,
			OneTimeKeyboard: true,
			ResizeKeyboard:  true,
		},
	}
	return c.call(ctx, "sendMessage", req, nil)
}

// GetUpdates long-polls for updates with an id greater than or equal to
// offset. It returns when updates arrive or the poll timeout elapses.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	var updates []Update
	req := getUpdatesRequest{Offset: offset, Timeout: int(c.pollTimeout.Seconds())}
	if err := c.call(ctx, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	slog.Debug("Telegram GetUpdates returned", "count", len(updates), "offset", offset)
	return updates, nil
}
