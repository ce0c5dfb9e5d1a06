package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// ErrBadPayload may be wrapped by a WebhookHandler to answer 400 instead of 500.
var ErrBadPayload = errors.New("gateway: bad webhook payload")

// WebhookHandler processes a validated webhook payload.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, source string, body []byte, headers http.Header) error
}

// WebhookDispatcher routes incoming webhooks to registered handlers with HMAC validation.
type WebhookDispatcher struct {
	mu       sync.RWMutex
	handlers map[string]WebhookHandler
	secrets  map[string]string
	maxBody  int64
	metrics  *Metrics
	logger   *slog.Logger
}

// NewWebhookDispatcher creates a ready-to-use dispatcher. metrics may be nil.
func NewWebhookDispatcher(logger *slog.Logger, metrics *Metrics) *WebhookDispatcher {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &WebhookDispatcher{
		handlers: make(map[string]WebhookHandler),
		secrets:  make(map[string]string),
		maxBody:  1 << 20,
		metrics:  metrics,
		logger:   logger,
	}
}

// SetSecret requires an HMAC signature for source. Secrets come from
// configuration and may be set before or after the handler registers.
func (d *WebhookDispatcher) SetSecret(source, secret string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.secrets[source] = secret
}

// Register adds a handler for the given source.
func (d *WebhookDispatcher) Register(source string, h WebhookHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[source] = h
}

// ServeHTTP implements http.Handler. It extracts the source from the chi URL param,
// validates HMAC if configured, and dispatches to the registered handler.
func (d *WebhookDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	source := chi.URLParam(r, "source")
	if source == "" {
		http.Error(w, "missing source", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, d.maxBody))
	if err != nil {
		d.metrics.RecordRejected()
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	d.mu.RLock()
	handler, ok := d.handlers[source]
	secret := d.secrets[source]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("gateway: webhook received for unregistered source", "source", source)
		http.Error(w, "unknown source", http.StatusNotFound)
		return
	}

	if secret != "" && !validateHMAC(body, r.Header.Get("X-Signature-256"), secret) {
		d.metrics.RecordRejected()
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	if err := handler.HandleWebhook(r.Context(), source, body, r.Header); err != nil {
		if errors.Is(err, ErrBadPayload) {
			d.metrics.RecordRejected()
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		d.metrics.RecordError()
		d.logger.Error("gateway: webhook handler failed", "source", source, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	d.metrics.RecordWebhook()
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

// validateHMAC checks HMAC-SHA256 signature in constant time.
func validateHMAC(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
