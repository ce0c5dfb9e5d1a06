package push

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flemzord/ephemera/internal/core"
	"github.com/flemzord/ephemera/internal/notify"
)

func newCtx(t *testing.T) *core.AppContext {
	t.Helper()
	return core.NewAppContext(slog.New(slog.DiscardHandler), t.TempDir())
}

func TestModule_Transports(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		config      Config
		wantHandler bool
		wantErr     bool
	}{
		{name: "default is log", config: Config{}},
		{name: "log", config: Config{Transport: TransportLog}},
		{name: "websocket", config: Config{Transport: TransportWebsocket, WriteTimeout: time.Second, Secret: "s"}, wantHandler: true},
		{name: "unknown", config: Config{Transport: "carrier-pigeon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := newCtx(t)
			m := &Module{config: tt.config}

			err := m.Provision(ctx)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("provision: %v", err)
			}
			t.Cleanup(func() { _ = m.Stop(context.Background()) })

			sender, ok := core.Lookup[notify.Sender](ctx, ServiceSender)
			if !ok {
				t.Fatal("sender not registered")
			}
			if err := sender.Send(context.Background(), "u1", "hello"); err != nil {
				t.Errorf("send to offline recipient: %v", err)
			}

			_, ok = core.Lookup[http.Handler](ctx, ServiceHandler)
			if ok != tt.wantHandler {
				t.Errorf("handler registered = %v, want %v", ok, tt.wantHandler)
			}
		})
	}
}

func TestModule_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"log", Config{Transport: TransportLog}, false},
		{"negative timeout", Config{Transport: TransportLog, WriteTimeout: -time.Second}, true},
		{"websocket without secret", Config{Transport: TransportWebsocket}, true},
		{"websocket with secret", Config{Transport: TransportWebsocket, Secret: "s"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := &Module{config: tt.config}
			if err := m.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestModule_WebsocketRequiresToken(t *testing.T) {
	t.Parallel()
	ctx := newCtx(t)
	m := &Module{config: Config{Transport: TransportWebsocket, Secret: "s"}}
	if err := m.Provision(ctx); err != nil {
		t.Fatalf("provision: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	h, _ := core.Lookup[http.Handler](ctx, ServiceHandler)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws/notifications?recipient=alice", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}
