package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	defaultWriteTimeout = 5 * time.Second
	recipientParam      = "recipient"
	tokenParam          = "token"
)

// ErrNoRecipient is returned when a websocket client connects without a
// recipient identifier.
var ErrNoRecipient = errors.New("notify: missing recipient")

// Hub pushes notifications to websocket clients subscribed by recipient ID.
// A client must present a token from SignRecipient for that recipient.
// Recipients without a live connection are handed to the fallback.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	secret   string
	fallback Sender
	logger   *slog.Logger

	// WriteTimeout bounds a single push to one connection.
	WriteTimeout time.Duration
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // serialises writes on conn
}

// Compile-time interface checks.
var (
	_ Sender       = (*Hub)(nil)
	_ http.Handler = (*Hub)(nil)
)

// NewHub creates a hub that accepts tokens signed with secret. An empty
// secret rejects every connection. A nil fallback logs undelivered
// notifications.
func NewHub(secret string, fallback Sender, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if fallback == nil {
		fallback = NewLogSender(logger)
	}
	return &Hub{
		clients:      make(map[string]map[*client]struct{}),
		secret:       secret,
		fallback:     fallback,
		logger:       logger,
		WriteTimeout: defaultWriteTimeout,
	}
}

// Send implements Sender. It pushes to every live connection of the
// recipient and succeeds if at least one push succeeds.
func (h *Hub) Send(ctx context.Context, recipientID, message string) error {
	conns := h.connections(recipientID)
	if len(conns) == 0 {
		return h.fallback.Send(ctx, recipientID, message)
	}

	n := NewNotification(recipientID, message)
	var errs []error
	delivered := false
	for _, c := range conns {
		if err := h.write(ctx, c, n); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered = true
	}
	if delivered {
		return nil
	}
	return fmt.Errorf("notify: push to %s: %w", recipientID, errors.Join(errs...))
}

func (h *Hub) write(ctx context.Context, c *client, n Notification) error {
	writeCtx, cancel := context.WithTimeout(ctx, h.WriteTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	return wsjson.Write(writeCtx, c.conn, n)
}

func (h *Hub) connections(recipientID string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.clients[recipientID]
	out := make([]*client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Connected returns the number of live connections for a recipient.
func (h *Hub) Connected(recipientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[recipientID])
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the client disconnects. The "recipient" and "token" query parameters
// identify the subscriber; the token is checked before the upgrade.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recipientID := q.Get(recipientParam)
	if recipientID == "" {
		http.Error(w, ErrNoRecipient.Error(), http.StatusBadRequest)
		return
	}
	if err := VerifyRecipient(h.secret, recipientID, q.Get(tokenParam), time.Now()); err != nil {
		h.logger.Warn("notify: socket rejected", "recipient", recipientID, "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("notify: websocket accept failed", "error", err)
		return
	}

	c := &client{conn: conn}
	h.add(recipientID, c)
	h.logger.Debug("notify: client connected", "recipient", recipientID)

	// Clients only receive; CloseRead drains control frames and cancels
	// ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	<-ctx.Done()

	h.remove(recipientID, c)
	_ = conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Debug("notify: client disconnected", "recipient", recipientID)
}

func (h *Hub) add(recipientID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[recipientID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[recipientID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) remove(recipientID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[recipientID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, recipientID)
	}
}

// Close disconnects all clients. The close handshakes run after the
// registry is cleared and unlocked, so Send falls back instead of waiting.
func (h *Hub) Close() {
	h.mu.Lock()
	var conns []*client
	for _, set := range h.clients {
		for c := range set {
			conns = append(conns, c)
		}
	}
	h.clients = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Go(func() { _ = c.conn.Close(websocket.StatusGoingAway, "server shutting down") })
	}
	wg.Wait()
}
