package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

// mockWebhookHandler records calls and returns err.
type mockWebhookHandler struct {
	called bool
	source string
	body   []byte
	err    error
}

func (m *mockWebhookHandler) HandleWebhook(_ context.Context, source string, body []byte, _ http.Header) error {
	m.called = true
	m.source = source
	m.body = body
	return m.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func signPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(d *WebhookDispatcher, source string, body []byte, sig string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Post("/webhooks/{source}", d.ServeHTTP)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+source, bytes.NewReader(body))
	if sig != "" {
		req.Header.Set("X-Signature-256", sig)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestWebhookDispatcher(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":"p1","data":{}}`)
	tests := []struct {
		name       string
		source     string
		secret     string
		sig        string
		handlerErr error
		wantCode   int
		wantCalled bool
	}{
		{"valid signature", "posts", "s3cret", signPayload(body, "s3cret"), nil, http.StatusAccepted, true},
		{"no secret configured", "posts", "", "", nil, http.StatusAccepted, true},
		{"bad signature", "posts", "s3cret", "sha256=invalid", nil, http.StatusUnauthorized, false},
		{"missing signature", "posts", "s3cret", "", nil, http.StatusUnauthorized, false},
		{"unknown source", "other", "", "", nil, http.StatusNotFound, false},
		{"bad payload", "posts", "", "", fmt.Errorf("%w: missing id", ErrBadPayload), http.StatusBadRequest, true},
		{"handler failure", "posts", "", "", errors.New("publish failed"), http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := &mockWebhookHandler{err: tt.handlerErr}
			d := NewWebhookDispatcher(testLogger(), nil)
			d.Register("posts", handler)
			if tt.secret != "" {
				d.SetSecret("posts", tt.secret)
			}

			rr := postWebhook(d, tt.source, body, tt.sig)
			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if handler.called != tt.wantCalled {
				t.Errorf("called = %v, want %v", handler.called, tt.wantCalled)
			}
			if tt.wantCalled && string(handler.body) != string(body) {
				t.Errorf("body = %q, want %q", handler.body, body)
			}
		})
	}
}

func TestWebhookDispatcher_CountsOutcomes(t *testing.T) {
	t.Parallel()

	m := &Metrics{}
	d := NewWebhookDispatcher(testLogger(), m)
	d.Register("posts", &mockWebhookHandler{})
	d.SetSecret("posts", "k")

	body := []byte(`{}`)
	postWebhook(d, "posts", body, signPayload(body, "k"))
	postWebhook(d, "posts", body, "sha256=nope")

	snap := m.Snapshot()
	if snap.Webhooks != 1 || snap.Rejected != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestWebhookDispatcher_BodyTooLarge(t *testing.T) {
	t.Parallel()

	handler := &mockWebhookHandler{}
	d := NewWebhookDispatcher(testLogger(), nil)
	d.maxBody = 8
	d.Register("posts", handler)

	rr := postWebhook(d, "posts", []byte(strings.Repeat("x", 64)), "")
	if rr.Code != http.StatusBadRequest || handler.called {
		t.Errorf("status = %d, called = %v", rr.Code, handler.called)
	}
}

func TestWebhookDispatcher_WrongMethod(t *testing.T) {
	t.Parallel()

	d := NewWebhookDispatcher(testLogger(), nil)
	r := chi.NewRouter()
	r.Post("/webhooks/{source}", d.ServeHTTP)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhooks/posts", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}

func TestValidateHMAC(t *testing.T) {
	t.Parallel()

	body := []byte("payload")
	if !validateHMAC(body, signPayload(body, "k"), "k") {
		t.Error("valid HMAC should pass")
	}
	if validateHMAC(body, signPayload(body, "other"), "k") {
		t.Error("HMAC with wrong key should fail")
	}
	if validateHMAC(body, "", "k") {
		t.Error("empty signature should fail")
	}
}
