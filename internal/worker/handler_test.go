package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joao-fontenele/foodhub/internal/domain"
)

type sentEmail struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func emailServer(t *testing.T, status int, sent *[]sentEmail) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send" {
			t.Errorf("expected /send, got %s", r.URL.Path)
		}
		var email sentEmail
		if err := json.NewDecoder(r.Body).Decode(&email); err != nil {
			t.Errorf("decode email: %v", err)
		}
		*sent = append(*sent, email)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestHandler(server *httptest.Server, opsEmail string) *NotificationHandler {
	return NewNotificationHandler(server.URL+"/", "inr", opsEmail, server.Client(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func orderCreatedPayload(t *testing.T) []byte {
	t.Helper()

	payload, err := json.Marshal(domain.OrderCreatedEvent{
		OrderID:      "order-1",
		UserID:       "user-1",
		RestaurantID: "rest-1",
		Items: []domain.CartItem{
			{MenuID: "menu-biryani", Name: "Biryani", Price: 24900, Quantity: 2},
			{MenuID: "menu-naan", Name: "Naan & Raita", Price: 4900, Quantity: 3},
		},
		DeliveryDetails: domain.DeliveryDetails{Name: "Asha", Email: "asha@example.com", Address: "12 MG Road", City: "Bengaluru"},
		TotalAmount:     64500,
		Timestamp:       time.Now(),
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func TestNotificationHandler_HandleOrderCreated(t *testing.T) {
	t.Run("emails the delivery address", func(t *testing.T) {
		var sent []sentEmail
		handler := newTestHandler(emailServer(t, http.StatusOK, &sent), "")

		if err := handler.HandleOrderCreated(context.Background(), orderCreatedPayload(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(sent) != 1 {
			t.Fatalf("expected 1 email, got %d", len(sent))
		}
		email := sent[0]
		if email.To != "asha@example.com" {
			t.Errorf("unexpected recipient %s", email.To)
		}
		for _, want := range []string{"order-1", "INR 645.00", "INR 498.00", "Naan &amp; Raita", "Bengaluru"} {
			if !strings.Contains(email.HTML, want) {
				t.Errorf("expected %q in body:\n%s", want, email.HTML)
			}
		}
	})

	t.Run("email service failure is retried by the consumer", func(t *testing.T) {
		var sent []sentEmail
		handler := newTestHandler(emailServer(t, http.StatusBadGateway, &sent), "")

		if err := handler.HandleOrderCreated(context.Background(), orderCreatedPayload(t)); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("bad payload", func(t *testing.T) {
		var sent []sentEmail
		handler := newTestHandler(emailServer(t, http.StatusOK, &sent), "")

		if err := handler.HandleOrderCreated(context.Background(), []byte("{")); err == nil {
			t.Fatal("expected error")
		}
		if len(sent) != 0 {
			t.Errorf("expected no email, got %d", len(sent))
		}
	})
}

func TestNotificationHandler_HandlePaymentFlagged(t *testing.T) {
	payload, _ := json.Marshal(domain.PaymentFlaggedEvent{
		OrderID:   "order-1",
		SessionID: "cs_test_1",
		Reason:    "async payment failed",
		Timestamp: time.Now(),
	})

	t.Run("emails ops", func(t *testing.T) {
		var sent []sentEmail
		handler := newTestHandler(emailServer(t, http.StatusOK, &sent), "ops@foodhub.dev")

		if err := handler.HandlePaymentFlagged(context.Background(), payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sent) != 1 || sent[0].To != "ops@foodhub.dev" {
			t.Fatalf("unexpected emails %+v", sent)
		}
		if !strings.Contains(sent[0].HTML, "cs_test_1") {
			t.Errorf("expected session id in body: %s", sent[0].HTML)
		}
	})

	t.Run("no ops address configured", func(t *testing.T) {
		var sent []sentEmail
		handler := newTestHandler(emailServer(t, http.StatusOK, &sent), "")

		if err := handler.HandlePaymentFlagged(context.Background(), payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sent) != 0 {
			t.Errorf("expected no email, got %d", len(sent))
		}
	})
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		minor    int64
		currency string
		want     string
	}{
		{64500, "inr", "INR 645.00"},
		{4905, "usd", "USD 49.05"},
		{7, "gbp", "GBP 0.07"},
		{-250, "inr", "INR -2.50"},
		{1500, "jpy", "JPY 1500"},
		{48000, "KRW", "KRW 48000"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.minor, tt.currency); got != tt.want {
			t.Errorf("FormatAmount(%d, %s) = %s, want %s", tt.minor, tt.currency, got, tt.want)
		}
	}
}
