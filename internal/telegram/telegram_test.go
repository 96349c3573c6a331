package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fakeAPI is an httptest Bot API endpoint recording the last request body
// per method and replying with canned results.
type fakeAPI struct {
	t        *testing.T
	server   *httptest.Server
	requests map[string]json.RawMessage
	results  map[string]string // method -> raw JSON result
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		t:        t,
		requests: make(map[string]json.RawMessage),
		results:  make(map[string]string),
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Path shape: /bot<token>/<method>
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding %s request: %v", method, err)
		}
		f.requests[method] = body

		result, ok := f.results[method]
		if !ok {
			result = "{}"
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":` + result + `}`))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) newClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(
		WithToken("test-token"),
		WithBaseURL(f.server.URL),
		WithPollTimeout(time.Second),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestSendMessageWireFormat(t *testing.T) {
	f := newFakeAPI(t)
	c := f.newClient(t)

	if err := c.SendMessage(context.Background(), 12345, "hola"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	var req sendMessageRequest
	if err := json.Unmarshal(f.requests["sendMessage"], &req); err != nil {
		t.Fatalf("decoding request: %v", err)
	}
	if req.ChatID != 12345 || req.Text != "hola" {
		t.Errorf("unexpected request: %+v", req)
	}
	if req.ReplyMarkup != nil {
		t.Error("plain message must not carry a keyboard")
	}
}

func TestSendMessageWithKeyboard(t *testing.T) {
	f := newFakeAPI(t)
	c := f.newClient(t)

	rows := [][]string{{"Registrar una venta", "Registrar un paciente"}, {"Registrar gasto"}}
	if err := c.SendMessageWithKeyboard(context.Background(), 12345, "¿Qué acción?", rows); err != nil {
		t.Fatalf("SendMessageWithKeyboard: %v", err)
	}

	var req sendMessageRequest
	if err := json.Unmarshal(f.requests["sendMessage"], &req); err != nil {
		t.Fatalf("decoding request: %v", err)
	}
	if req.ReplyMarkup == nil {
		t.Fatal("expected reply keyboard")
	}
	if !req.ReplyMarkup.OneTimeKeyboard || !req.ReplyMarkup.ResizeKeyboard {
		t.Errorf("keyboard flags wrong: %+v", req.ReplyMarkup)
	}
	if len(req.ReplyMarkup.Keyboard) != 2 || len(req.ReplyMarkup.Keyboard[0]) != 2 {
		t.Errorf("unexpected keyboard layout: %+v", req.ReplyMarkup.Keyboard)
	}
}

func TestGetUpdatesParsesMessages(t *testing.T) {
	f := newFakeAPI(t)
	f.results["getUpdates"] = `[
		{"update_id": 7, "message": {"message_id": 1, "text": "venta", "date": 1700000000,
			"chat": {"id": 12345}, "from": {"id": 99, "username": "tester", "first_name": "Ana"}}}
	]`
	c := f.newClient(t)

	updates, err := c.GetUpdates(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	u := updates[0]
	if u.UpdateID != 7 || u.Message == nil || u.Message.Text != "venta" {
		t.Errorf("unexpected update: %+v", u)
	}
	if u.Message.Chat.ID != 12345 || u.Message.From.Username != "tester" {
		t.Errorf("unexpected message envelope: %+v", u.Message)
	}

	var req getUpdatesRequest
	if err := json.Unmarshal(f.requests["getUpdates"], &req); err != nil {
		t.Fatalf("decoding request: %v", err)
	}
	if req.Offset != 5 {
		t.Errorf("expected offset 5, got %d", req.Offset)
	}
}

func TestAPIErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer server.Close()

	c, err := NewClient(WithToken("bad"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.GetMe(context.Background()); err == nil {
		t.Fatal("expected error from rejected call")
	}
}
