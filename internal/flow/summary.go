package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vmoreyra/registrobot/internal/models"
	"github.com/vmoreyra/registrobot/internal/store"
)

// parseAmount is the parse-or-skip combinator applied to every numeric
// column the summary aggregates: a malformed value contributes 0 instead of
// failing the whole scan.
func parseAmount(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Summarize performs a full scan of the three record tables and returns the
// aggregates: summed sale totals, summed expense amounts, patient count.
// It is independent of any session and can run at any time.
func Summarize(ctx context.Context, st store.Store) (models.Summary, error) {
	var summary models.Summary

	sales, err := st.ListSales()
	if err != nil {
		return summary, fmt.Errorf("failed to scan sales: %w", err)
	}
	for _, s := range sales {
		summary.SalesTotal += s.Total
	}

	expenses, err := st.ListExpenses()
	if err != nil {
		return summary, fmt.Errorf("failed to scan expenses: %w", err)
	}
	skipped := 0
	for _, e := range expenses {
		amount, ok := parseAmount(e.Amount)
		if !ok {
			skipped++
			continue
		}
		summary.ExpensesTotal += amount
	}
	if skipped > 0 {
		slog.Warn("Summary skipped malformed expense amounts", "skipped", skipped)
	}

	patients, err := st.ListPatients()
	if err != nil {
		return summary, fmt.Errorf("failed to scan patients: %w", err)
	}
	summary.PatientCount = len(patients)

	slog.Debug("Summary computed",
		"sales_total", summary.SalesTotal,
		"expenses_total", summary.ExpensesTotal,
		"patient_count", summary.PatientCount)
	return summary, nil
}

// sendSummary computes and delivers the aggregate report to a conversation.
func (c *Controller) sendSummary(ctx context.Context, to string) error {
	summary, err := Summarize(ctx, c.store)
	if err != nil {
		slog.Error("Controller summary failed", "error", err, "to", to)
		return fmt.Errorf("failed to build summary: %w", err)
	}
	body := fmt.Sprintf(
		"📊 Resumen general:\n\n- Total ventas: $%.2f\n- Pacientes registrados: %d\n- Total gastos: $%.2f",
		summary.SalesTotal, summary.PatientCount, summary.ExpensesTotal,
	)
	return c.svc.SendMessage(ctx, to, body)
}
