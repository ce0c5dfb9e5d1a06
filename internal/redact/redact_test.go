package redact

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestRedactor_Redact(t *testing.T) {
	t.Parallel()
	r := New("hunter2-webhook", "", "hunter2-webhook")
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "nothing to see", want: "nothing to see"},
		{in: "sig with hunter2-webhook inside", want: "sig with " + Placeholder + " inside"},
		{in: "Authorization: Bearer abcdefgh12345", want: "Authorization: Bearer " + Placeholder},
		{in: "basic dXNlcjpwYXNzd29yZA==", want: "basic " + Placeholder},
		{in: "bearer short", want: "bearer short"},
	}
	for _, tt := range tests {
		if got := r.Redact(tt.in); got != tt.want {
			t.Errorf("Redact(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCollectSecrets(t *testing.T) {
	t.Parallel()

	raw := `
gateway.http:
  bind: 127.0.0.1:8080
  auth:
    bearer_token: admin-tok
    basic_user: ops
    basic_pass: pw
  webhooks:
    posts:
      secret: whsec
    other:
      secret: ""
docstore.sqlite:
  path: /var/lib/e.db
`
	var modules map[string]yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &modules); err != nil {
		t.Fatal(err)
	}

	got := CollectSecrets(modules)
	slices.Sort(got)
	want := []string{"admin-tok", "pw", "whsec"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewHandler(inner, New("whsec-123")))

	logger.With("preset", "whsec-123").WithGroup("req").Info("signature whsec-123 rejected",
		"secret", "whsec-123",
		"error", errors.New("hmac whsec-123 mismatch"),
		slog.Group("nested", "v", "whsec-123"),
		"safe", "visible",
	)

	out := buf.String()
	if strings.Contains(out, "whsec-123") {
		t.Errorf("secret leaked: %s", out)
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, Placeholder) {
		t.Errorf("unexpected output: %s", out)
	}
}
