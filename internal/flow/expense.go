package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmoreyra/registrobot/internal/models"
)

// Expense flow prompts. The type keyboard is a hint; any text is accepted,
// and the amount stays opaque text (summary parses-or-skips it).
const (
	msgAskExpenseType   = "🧾 ¿Qué tipo de gasto querés registrar?"
	msgAskExpenseAmount = "¿Cuál es el monto del gasto?"
	msgAskExpenseDetail = "Ingresá una breve descripción del gasto:"
)

// expenseTypeOptions is the fixed three-option hint keyboard.
var expenseTypeOptions = []string{"Insumos club", "Insumos obra", "Insumos personal"}

func handleExpenseType(ctx context.Context, c *Controller, sess *models.Session, resp models.Response) (stepResult, error) {
	sess.Set(models.DataKeyExpenseType, resp.Body)
	return stepResult{reply: msgAskExpenseAmount, next: models.StateExpenseAmount}, nil
}

func handleExpenseAmount(ctx context.Context, c *Controller, sess *models.Session, resp models.Response) (stepResult, error) {
	sess.Set(models.DataKeyExpenseAmount, resp.Body)
	return stepResult{reply: msgAskExpenseDetail, next: models.StateExpenseDetail}, nil
}

// handleExpenseDetail captures the description and commits the record.
func handleExpenseDetail(ctx context.Context, c *Controller, sess *models.Session, resp models.Response) (stepResult, error) {
	record := models.ExpenseRecord{
		Category:    sess.Get(models.DataKeyExpenseType),
		Amount:      sess.Get(models.DataKeyExpenseAmount),
		Description: resp.Body,
		Timestamp:   time.Now(),
		User:        resp.Identity(),
	}
	if err := record.Validate(); err != nil {
		return stepResult{}, fmt.Errorf("invalid expense record: %w", err)
	}

	if err := c.store.AddExpense(record); err != nil {
		return stepResult{}, fmt.Errorf("failed to append expense: %w", err)
	}

	slog.Info("Expense committed", "category", record.Category, "user", record.User)
	reply := fmt.Sprintf(
		"✅ Gasto registrado:\nTipo: %s\nMonto: $%s\nDetalle: %s\nFecha: %s\nUsuario: %s",
		record.Category, record.Amount, record.Description,
		record.Timestamp.Format(msgTimestampLayout), record.User,
	)
	return stepResult{reply: reply, done: true}, nil
}
