package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vmoreyra/registrobot/internal/messaging"
	"github.com/vmoreyra/registrobot/internal/models"
	"github.com/vmoreyra/registrobot/internal/store"
)

// Commands recognized outside the state machine.
const (
	CommandStart   = "/start"
	CommandCancel  = "/cancel"
	CommandSummary = "/resumen"
)

// User-facing prompts. The bot speaks Spanish, matching its deployment.
const (
	msgMenu            = "¡Hola! ¿Qué acción querés realizar?"
	msgMenuInvalid     = "Por favor, elegí una opción válida."
	msgCancelled       = "Operación cancelada."
	msgNoSession       = "Enviá /start para comenzar."
	msgInternalError   = "⚠️ Ocurrió un error procesando tu mensaje. Enviá /start para comenzar de nuevo."
	msgTimestampLayout = "2006-01-02 15:04:05"
)

// menuOptions is the top-level action keyboard.
var menuOptions = []string{"Registrar una venta", "Registrar un paciente", "Registrar gasto"}

// stepResult is what a state handler produces: the outgoing reply, the next
// state, and whether the flow reached its end (session discarded).
type stepResult struct {
	reply   string
	options []string     // non-empty renders a suggested-reply keyboard
	next    models.State // ignored when done
	done    bool
}

// handlerFunc processes the input for one state. Handlers mutate the session
// data only; the controller persists the session and delivers the reply, so
// every transition is testable without driving a transport.
type handlerFunc func(ctx context.Context, c *Controller, sess *models.Session, resp models.Response) (stepResult, error)

// transitions is the state × input dispatch table.
var transitions = map[models.State]handlerFunc{
	models.StateMenu:            handleMenu,
	models.StateProduct:         handleProduct,
	models.StateSaleQuantity:    handleSaleQuantity,
	models.StatePrice:           handlePrice,
	models.StateName:            handlePatientName,
	models.StateAge:             handlePatientAge,
	models.StateIDNumber:        handlePatientID,
	models.StatePatientQuantity: handlePatientQuantity,
	models.StateExpenseType:     handleExpenseType,
	models.StateExpenseAmount:   handleExpenseAmount,
	models.StateExpenseDetail:   handleExpenseDetail,
}

// Opts holds configuration options for the dialogue controller.
type Opts struct {
	StockTracking bool
}

// Option defines a configuration option for the dialogue controller.
type Option func(*Opts)

// WithStockTracking toggles the stock-aware sale flow. When enabled, sales
// decrement tracked stock and abort on insufficiency.
func WithStockTracking(enabled bool) Option {
	return func(o *Opts) { o.StockTracking = enabled }
}

// Controller routes each inbound message to the handler for the
// conversation's current state, owns the sessions, and performs the commit
// side effects at the end of each flow.
type Controller struct {
	sessions      SessionManager
	store         store.Store
	svc           messaging.Service
	stockTracking bool
}

// NewController creates a dialogue controller.
func NewController(sessions SessionManager, st store.Store, svc messaging.Service, opts ...Option) *Controller {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Creating flow Controller", "stock_tracking", cfg.StockTracking)
	return &Controller{
		sessions:      sessions,
		store:         st,
		svc:           svc,
		stockTracking: cfg.StockTracking,
	}
}

// HandleResponse processes one inbound message end to end: command
// handling, state dispatch, session persistence, and reply delivery.
func (c *Controller) HandleResponse(ctx context.Context, resp models.Response) error {
	slog.Debug("Controller HandleResponse", "from", resp.From, "body_length", len(resp.Body))

	switch strings.ToLower(strings.TrimSpace(resp.Body)) {
	case CommandStart:
		return c.startConversation(ctx, resp)
	case CommandCancel:
		return c.cancelConversation(ctx, resp)
	case CommandSummary:
		return c.sendSummary(ctx, resp.From)
	}

	sess, err := c.sessions.Get(ctx, resp.From)
	if err != nil {
		slog.Error("Controller session lookup failed", "error", err, "from", resp.From)
		return fmt.Errorf("failed to load session for %s: %w", resp.From, err)
	}
	if sess == nil {
		slog.Debug("Controller no active session", "from", resp.From)
		return c.svc.SendMessage(ctx, resp.From, msgNoSession)
	}

	handler, ok := transitions[sess.State]
	if !ok {
		// Unknown state means a corrupted session. Discard it.
		slog.Error("Controller unknown session state", "from", resp.From, "state", sess.State)
		if delErr := c.sessions.Delete(ctx, resp.From); delErr != nil {
			slog.Error("Controller failed to discard corrupted session", "error", delErr, "from", resp.From)
		}
		return c.svc.SendMessage(ctx, resp.From, msgNoSession)
	}

	result, err := handler(ctx, c, sess, resp)
	if err != nil {
		return c.failConversation(ctx, resp.From, sess.State, err)
	}

	if result.done {
		if err := c.sessions.Delete(ctx, resp.From); err != nil {
			slog.Error("Controller failed to delete completed session", "error", err, "from", resp.From)
			return fmt.Errorf("failed to delete session for %s: %w", resp.From, err)
		}
	} else {
		sess.State = result.next
		if err := c.sessions.Put(ctx, sess); err != nil {
			slog.Error("Controller failed to persist session", "error", err, "from", resp.From)
			return fmt.Errorf("failed to persist session for %s: %w", resp.From, err)
		}
	}

	if result.reply == "" {
		return nil
	}
	if len(result.options) > 0 {
		return c.svc.SendMenu(ctx, resp.From, result.reply, result.options)
	}
	return c.svc.SendMessage(ctx, resp.From, result.reply)
}

// startConversation creates a fresh session parked at the menu. An existing
// session for the conversation is replaced.
func (c *Controller) startConversation(ctx context.Context, resp models.Response) error {
	sess := models.NewSession(resp.From, resp.Identity())
	if err := c.sessions.Put(ctx, sess); err != nil {
		slog.Error("Controller failed to create session", "error", err, "from", resp.From)
		return fmt.Errorf("failed to create session for %s: %w", resp.From, err)
	}
	slog.Info("Controller conversation started", "from", resp.From, "user", sess.User)
	return c.svc.SendMenu(ctx, resp.From, msgMenu, menuOptions)
}

// cancelConversation discards any session and acknowledges. Issued from any
// state; nothing is committed.
func (c *Controller) cancelConversation(ctx context.Context, resp models.Response) error {
	if err := c.sessions.Delete(ctx, resp.From); err != nil {
		slog.Error("Controller cancel failed to delete session", "error", err, "from", resp.From)
		return fmt.Errorf("failed to cancel session for %s: %w", resp.From, err)
	}
	slog.Info("Controller conversation cancelled", "from", resp.From)
	return c.svc.SendMessage(ctx, resp.From, msgCancelled)
}

// failConversation ends the engagement after a handler error. The session
// is discarded; partial side effects already committed are not rolled back.
func (c *Controller) failConversation(ctx context.Context, from string, state models.State, cause error) error {
	slog.Error("Controller handler failed", "error", cause, "from", from, "state", state)
	if err := c.sessions.Delete(ctx, from); err != nil {
		slog.Error("Controller failed to discard session after error", "error", err, "from", from)
	}
	if err := c.svc.SendMessage(ctx, from, msgInternalError); err != nil {
		slog.Error("Controller failed to send error message", "error", err, "from", from)
	}
	return fmt.Errorf("handler for state %s failed: %w", state, cause)
}

// handleMenu dispatches the initial menu choice by case-insensitive keyword
// match. Unrecognized input re-prompts without a state change.
func handleMenu(ctx context.Context, c *Controller, sess *models.Session, resp models.Response) (stepResult, error) {
	text := strings.ToLower(resp.Body)
	switch {
	case strings.Contains(text, "venta"):
		return enterSaleFlow(ctx, c)
	case strings.Contains(text, "paciente"):
		return stepResult{reply: msgAskPatientName, next: models.StateName}, nil
	case strings.Contains(text, "gasto"):
		return stepResult{reply: msgAskExpenseType, options: expenseTypeOptions, next: models.StateExpenseType}, nil
	case strings.Contains(text, "resumen"):
		if err := c.sendSummary(ctx, sess.ConversationID); err != nil {
			return stepResult{}, err
		}
		return stepResult{next: models.StateMenu}, nil
	default:
		return stepResult{reply: msgMenuInvalid, options: menuOptions, next: models.StateMenu}, nil
	}
}
