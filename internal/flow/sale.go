package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/vmoreyra/registrobot/internal/models"
)

// Sale flow prompts.
const (
	msgAskProduct       = "🛒 ¿Qué producto se vendió?"
	msgAskSaleQuantity  = "¿Cuántas unidades se vendieron?"
	msgAskUnitPrice     = "¿Cuál fue el precio unitario?"
	msgInvalidQuantity  = "Ingresá un número entero válido. ¿Cuántas unidades se vendieron?"
	msgInvalidPrice     = "Ingresá un precio válido. ¿Cuál fue el precio unitario?"
	msgNoStockAvailable = "⚠️ No hay productos con stock disponible. No se puede registrar la venta."
)

// enterSaleFlow starts the sale flow from the menu. In the stock-aware
// variant the available products are offered as the keyboard, and an empty
// set ends the flow immediately with no commit.
func enterSaleFlow(ctx context.Context, c *Controller) (stepResult, error) {
	if !c.stockTracking {
		return stepResult{reply: msgAskProduct, next: models.StateProduct}, nil
	}

	available, err := c.store.AvailableStock()
	if err != nil {
		return stepResult{}, fmt.Errorf("failed to read available stock: %w", err)
	}
	if len(available) == 0 {
		slog.Info("Sale flow aborted, no stock available")
		return stepResult{reply: msgNoStockAvailable, done: true}, nil
	}

	products := make([]string, len(available))
	for i, e := range available {
		products[i] = e.Product
	}
	return stepResult{reply: msgAskProduct, options: products, next: models.StateProduct}, nil
}

// handleProduct captures the product name.
func handleProduct(ctx context.Context, c *Controller, sess *models.Session, resp models.Response) (stepResult, error) {
	sess.Set(models.DataKeyProduct, resp.Body)
	return stepResult{reply: msgAskSaleQuantity, next: models.StateSaleQuantity}, nil
}

// handleSaleQuantity parses the unit count, re-prompting on bad input.
func handleSaleQuantity(ctx context.Context, c *Controller, sess *models.Session, resp models.Response) (stepResult, error) {
	qty, err := strconv.Atoi(resp.Body)
	if err != nil || qty <= 0 {
		slog.Debug("Sale quantity rejected", "input", resp.Body)
		return stepResult{reply: msgInvalidQuantity, next: models.StateSaleQuantity}, nil
	}
	sess.Set(models.DataKeyQuantity, strconv.Itoa(qty))
	return stepResult{reply: msgAskUnitPrice, next: models.StatePrice}, nil
}

// handlePrice parses the unit price and commits the sale: stock is
// decremented first (when tracked), then the record is appended. An
// insufficient decrement aborts with no commit and no mutation.
func handlePrice(ctx context.Context, c *Controller, sess *models.Session, resp models.Response) (stepResult, error) {
	price, err := strconv.ParseFloat(resp.Body, 64)
	if err != nil || price < 0 {
		slog.Debug("Unit price rejected", "input", resp.Body)
		return stepResult{reply: msgInvalidPrice, next: models.StatePrice}, nil
	}

	product := sess.Get(models.DataKeyProduct)
	qty, err := strconv.Atoi(sess.Get(models.DataKeyQuantity))
	if err != nil {
		return stepResult{}, fmt.Errorf("corrupted session quantity %q: %w", sess.Get(models.DataKeyQuantity), err)
	}

	record := models.SaleRecord{
		Product:   product,
		Quantity:  qty,
		UnitPrice: price,
		Total:     float64(qty) * price,
		Timestamp: time.Now(),
		User:      resp.Identity(),
	}
	if err := record.Validate(); err != nil {
		return stepResult{}, fmt.Errorf("invalid sale record: %w", err)
	}

	if c.stockTracking {
		if err := c.store.DecrementStock(product, qty); err != nil {
			if errors.Is(err, models.ErrInsufficientStock) || errors.Is(err, models.ErrUnknownProduct) {
				slog.Info("Sale aborted on stock check", "product", product, "quantity", qty, "reason", err)
				reply := fmt.Sprintf("⚠️ Stock insuficiente para %s. La venta no fue registrada.", product)
				return stepResult{reply: reply, done: true}, nil
			}
			return stepResult{}, fmt.Errorf("stock decrement failed: %w", err)
		}
	}

	// A failed append after a successful decrement is not rolled back.
	if err := c.store.AddSale(record); err != nil {
		return stepResult{}, fmt.Errorf("failed to append sale: %w", err)
	}

	slog.Info("Sale committed", "product", product, "quantity", qty, "total", record.Total, "user", record.User)
	reply := fmt.Sprintf(
		"✅ Venta registrada:\nProducto: %s\nCantidad: %d\nPrecio: $%v\nTotal: $%v\nFecha: %s\nUsuario: %s",
		record.Product, record.Quantity, record.UnitPrice, record.Total,
		record.Timestamp.Format(msgTimestampLayout), record.User,
	)
	return stepResult{reply: reply, done: true}, nil
}
