package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/vmoreyra/registrobot/internal/models"
	"github.com/vmoreyra/registrobot/internal/store"
)

// mockService records outgoing messages without any transport.
type mockService struct {
	messages []sentMessage
}

type sentMessage struct {
	to      string
	body    string
	options []string
}

func (m *mockService) SendMessage(ctx context.Context, to, body string) error {
	m.messages = append(m.messages, sentMessage{to: to, body: body})
	return nil
}

func (m *mockService) SendMenu(ctx context.Context, to, body string, options []string) error {
	m.messages = append(m.messages, sentMessage{to: to, body: body, options: options})
	return nil
}

func (m *mockService) Start(ctx context.Context) error { return nil }
func (m *mockService) Stop() error                     { return nil }
func (m *mockService) Responses() <-chan models.Response {
	return nil
}

func (m *mockService) last(t *testing.T) sentMessage {
	t.Helper()
	if len(m.messages) == 0 {
		t.Fatal("no messages sent")
	}
	return m.messages[len(m.messages)-1]
}

const testChat = "12345"

func newTestController(t *testing.T, opts ...Option) (*Controller, *store.InMemoryStore, *mockService) {
	t.Helper()
	st := store.NewInMemoryStore()
	svc := &mockService{}
	c := NewController(NewInMemorySessionManager(), st, svc, opts...)
	return c, st, svc
}

// drive feeds a sequence of user inputs through the controller.
func drive(t *testing.T, c *Controller, inputs ...string) {
	t.Helper()
	for _, input := range inputs {
		resp := models.Response{From: testChat, Username: "tester", Body: input}
		if err := c.HandleResponse(context.Background(), resp); err != nil {
			t.Fatalf("HandleResponse(%q) failed: %v", input, err)
		}
	}
}

func TestSaleFlowCommitsRecord(t *testing.T) {
	c, st, svc := newTestController(t, WithStockTracking(true))
	if err := st.UpsertStock(models.StockEntry{Product: "Widget", Quantity: 10}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	drive(t, c, "/start", "venta", "Widget", "3", "10.0")

	sales, err := st.ListSales()
	if err != nil {
		t.Fatalf("ListSales: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected 1 sale, got %d", len(sales))
	}
	s := sales[0]
	if s.Product != "Widget" || s.Quantity != 3 || s.UnitPrice != 10.0 {
		t.Errorf("unexpected sale record: %+v", s)
	}
	if s.Total != 30.0 {
		t.Errorf("expected total 30.0, got %v", s.Total)
	}
	if s.User != "tester" {
		t.Errorf("expected user tester, got %q", s.User)
	}

	stock, err := st.ListStock()
	if err != nil {
		t.Fatalf("ListStock: %v", err)
	}
	if len(stock) != 1 || stock[0].Quantity != 7 {
		t.Errorf("expected stock 7 after sale, got %+v", stock)
	}

	if !strings.Contains(svc.last(t).body, "✅ Venta registrada") {
		t.Errorf("expected confirmation message, got %q", svc.last(t).body)
	}
}

func TestSaleFlowInsufficientStock(t *testing.T) {
	c, st, svc := newTestController(t, WithStockTracking(true))
	if err := st.UpsertStock(models.StockEntry{Product: "Widget", Quantity: 5}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	drive(t, c, "/start", "venta", "Widget", "100", "10.0")

	sales, _ := st.ListSales()
	if len(sales) != 0 {
		t.Fatalf("expected no sales, got %d", len(sales))
	}
	stock, _ := st.ListStock()
	if stock[0].Quantity != 5 {
		t.Errorf("stock must be untouched, got %d", stock[0].Quantity)
	}
	if !strings.Contains(svc.last(t).body, "Stock insuficiente") {
		t.Errorf("expected insufficiency message, got %q", svc.last(t).body)
	}

	// The flow ended; the next message needs a fresh /start.
	drive(t, c, "hola")
	if svc.last(t).body != msgNoSession {
		t.Errorf("expected session to be gone, got %q", svc.last(t).body)
	}
}

func TestSaleFlowNoAvailableStockEndsImmediately(t *testing.T) {
	c, st, svc := newTestController(t, WithStockTracking(true))
	if err := st.UpsertStock(models.StockEntry{Product: "Widget", Quantity: 0}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	drive(t, c, "/start", "venta")
	if svc.last(t).body != msgNoStockAvailable {
		t.Errorf("expected out-of-stock message, got %q", svc.last(t).body)
	}

	drive(t, c, "Widget")
	if svc.last(t).body != msgNoSession {
		t.Errorf("expected flow to have ended, got %q", svc.last(t).body)
	}
}

func TestSaleFlowOffersAvailableProducts(t *testing.T) {
	c, st, svc := newTestController(t, WithStockTracking(true))
	st.UpsertStock(models.StockEntry{Product: "Widget", Quantity: 3})
	st.UpsertStock(models.StockEntry{Product: "Gadget", Quantity: 0})

	drive(t, c, "/start", "venta")

	msg := svc.last(t)
	if len(msg.options) != 1 || msg.options[0] != "Widget" {
		t.Errorf("expected only in-stock products offered, got %v", msg.options)
	}
}

func TestSaleFlowWithoutStockTracking(t *testing.T) {
	c, st, _ := newTestController(t)

	drive(t, c, "/start", "venta", "Widget", "2", "3.5")

	sales, _ := st.ListSales()
	if len(sales) != 1 || sales[0].Total != 7.0 {
		t.Fatalf("expected committed sale with total 7.0, got %+v", sales)
	}
}

func TestSaleQuantityRepromptsOnBadInput(t *testing.T) {
	c, st, svc := newTestController(t)

	drive(t, c, "/start", "venta", "Widget", "tres")
	if svc.last(t).body != msgInvalidQuantity {
		t.Errorf("expected quantity re-prompt, got %q", svc.last(t).body)
	}

	// The flow continues from the same state.
	drive(t, c, "3", "10")
	sales, _ := st.ListSales()
	if len(sales) != 1 || sales[0].Quantity != 3 {
		t.Fatalf("expected sale after re-prompt, got %+v", sales)
	}
}

func TestPriceRepromptsOnBadInput(t *testing.T) {
	c, st, svc := newTestController(t)

	drive(t, c, "/start", "venta", "Widget", "3", "diez")
	if svc.last(t).body != msgInvalidPrice {
		t.Errorf("expected price re-prompt, got %q", svc.last(t).body)
	}

	drive(t, c, "10.0")
	sales, _ := st.ListSales()
	if len(sales) != 1 || sales[0].Total != 30.0 {
		t.Fatalf("expected sale after re-prompt, got %+v", sales)
	}
}

func TestPatientFlowCommitsRecord(t *testing.T) {
	c, st, svc := newTestController(t)

	drive(t, c, "/start", "paciente", "Ana López", "34", "28555111", "2 sesiones")

	patients, err := st.ListPatients()
	if err != nil {
		t.Fatalf("ListPatients: %v", err)
	}
	if len(patients) != 1 {
		t.Fatalf("expected 1 patient, got %d", len(patients))
	}
	p := patients[0]
	if p.Name != "Ana López" || p.Age != "34" || p.IDNumber != "28555111" || p.Quantity != "2 sesiones" {
		t.Errorf("unexpected patient record: %+v", p)
	}
	if !strings.Contains(svc.last(t).body, "✅ Paciente registrado") {
		t.Errorf("expected confirmation, got %q", svc.last(t).body)
	}
}

func TestExpenseFlowCommitsRecord(t *testing.T) {
	c, st, svc := newTestController(t)

	drive(t, c, "/start", "gasto", "Insumos club", "1500.50", "vendas y alcohol")

	expenses, err := st.ListExpenses()
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(expenses) != 1 {
		t.Fatalf("expected 1 expense, got %d", len(expenses))
	}
	e := expenses[0]
	if e.Category != "Insumos club" || e.Amount != "1500.50" || e.Description != "vendas y alcohol" {
		t.Errorf("unexpected expense record: %+v", e)
	}
	if !strings.Contains(svc.last(t).body, "✅ Gasto registrado") {
		t.Errorf("expected confirmation, got %q", svc.last(t).body)
	}
}

func TestExpenseTypeOffersFixedOptions(t *testing.T) {
	c, _, svc := newTestController(t)

	drive(t, c, "/start", "gasto")
	msg := svc.last(t)
	if len(msg.options) != 3 {
		t.Fatalf("expected 3 expense options, got %v", msg.options)
	}
}

func TestMenuKeywordRouting(t *testing.T) {
	cases := []struct {
		input      string
		wantPrompt string
	}{
		{"Registrar una venta", msgAskProduct},
		{"VENTA ya mismo", msgAskProduct},
		{"Registrar un paciente", msgAskPatientName},
		{"nuevo PACIENTE", msgAskPatientName},
		{"Registrar gasto", msgAskExpenseType},
		{"un gasto más", msgAskExpenseType},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			c, _, svc := newTestController(t)
			drive(t, c, "/start", tc.input)
			if svc.last(t).body != tc.wantPrompt {
				t.Errorf("input %q: expected %q, got %q", tc.input, tc.wantPrompt, svc.last(t).body)
			}
		})
	}
}

func TestMenuInvalidInputReprompts(t *testing.T) {
	c, st, svc := newTestController(t)

	drive(t, c, "/start", "algo raro")
	if svc.last(t).body != msgMenuInvalid {
		t.Errorf("expected re-prompt, got %q", svc.last(t).body)
	}

	// Still at the menu: a valid keyword now routes normally.
	drive(t, c, "venta")
	if svc.last(t).body != msgAskProduct {
		t.Errorf("expected product prompt after re-prompt, got %q", svc.last(t).body)
	}
	sales, _ := st.ListSales()
	if len(sales) != 0 {
		t.Errorf("no records expected, got %d sales", len(sales))
	}
}

func TestCancelDiscardsSessionWithoutCommit(t *testing.T) {
	c, st, svc := newTestController(t)

	drive(t, c, "/start", "venta", "Widget", "3", "/cancel")
	if svc.last(t).body != msgCancelled {
		t.Errorf("expected cancellation ack, got %q", svc.last(t).body)
	}

	sales, _ := st.ListSales()
	if len(sales) != 0 {
		t.Errorf("cancel must not commit, got %d sales", len(sales))
	}

	drive(t, c, "10.0")
	if svc.last(t).body != msgNoSession {
		t.Errorf("expected session gone after cancel, got %q", svc.last(t).body)
	}
}

func TestSummaryCommandOnEmptyStore(t *testing.T) {
	c, _, svc := newTestController(t)

	drive(t, c, "/resumen")
	body := svc.last(t).body
	for _, want := range []string{"Total ventas: $0.00", "Pacientes registrados: 0", "Total gastos: $0.00"} {
		if !strings.Contains(body, want) {
			t.Errorf("summary missing %q in %q", want, body)
		}
	}
}

func TestSummaryFromMenuKeyword(t *testing.T) {
	c, st, svc := newTestController(t)
	st.AddSale(models.SaleRecord{Product: "Widget", Quantity: 3, UnitPrice: 10, Total: 30})

	drive(t, c, "/start", "resumen")
	if !strings.Contains(svc.last(t).body, "Total ventas: $30.00") {
		t.Errorf("expected sales total in %q", svc.last(t).body)
	}

	// Summary is not a flow: conversation remains at the menu.
	drive(t, c, "venta")
	if svc.last(t).body != msgAskProduct {
		t.Errorf("expected menu still active, got %q", svc.last(t).body)
	}
}

func TestMessageWithoutSessionPromptsStart(t *testing.T) {
	c, _, svc := newTestController(t)

	drive(t, c, "hola")
	if svc.last(t).body != msgNoSession {
		t.Errorf("expected start hint, got %q", svc.last(t).body)
	}
}

func TestStartShowsMenu(t *testing.T) {
	c, _, svc := newTestController(t)

	drive(t, c, "/start")
	msg := svc.last(t)
	if msg.body != msgMenu {
		t.Errorf("expected menu message, got %q", msg.body)
	}
	if len(msg.options) != 3 {
		t.Errorf("expected 3 menu options, got %v", msg.options)
	}
}

func TestAnonymousIdentityFallback(t *testing.T) {
	c, st, _ := newTestController(t)

	for _, input := range []string{"/start", "venta", "Widget", "1", "5"} {
		resp := models.Response{From: testChat, Body: input}
		if err := c.HandleResponse(context.Background(), resp); err != nil {
			t.Fatalf("HandleResponse(%q) failed: %v", input, err)
		}
	}

	sales, _ := st.ListSales()
	if len(sales) != 1 || sales[0].User != models.AnonymousUser {
		t.Fatalf("expected anonymous user, got %+v", sales)
	}
}
