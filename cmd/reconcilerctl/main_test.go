//go:build !integration

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/infra/api"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("expected config file, but got: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCmd(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ADMIN_JWT_SECRET", "")

	t.Run("should mint a token the server accepts", func(t *testing.T) {
		// --- Arrange ---
		cfg := writeConfig(t, "database:\n  url: postgres://localhost/db\nadmin:\n  jwt_secret: s3cret\n")

		// --- Act ---
		out, err := run(t, "token", "--config", cfg, "--subject", "alice")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		tok := strings.TrimSpace(out)
		if strings.Count(tok, ".") != 2 {
			t.Fatalf("expected a JWT, but got %q", tok)
		}
		req := httptest.NewRequest(http.MethodPost, "/admin/sweep", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		claims, err := api.NewAuthManager("s3cret", time.Minute).ParseFromRequest(req)
		if err != nil || claims.Subject != "alice" {
			t.Fatalf("expected a valid token for alice, but got %+v / %v", claims, err)
		}
	})

	t.Run("should refuse without a configured secret", func(t *testing.T) {
		cfg := writeConfig(t, "database:\n  url: postgres://localhost/db\n")

		if _, err := run(t, "token", "--config", cfg); err == nil {
			t.Fatal("expected an error, but got nil")
		}
	})
}

func TestReconcileCmd_Validation(t *testing.T) {
	t.Run("should require a provider payment id", func(t *testing.T) {
		_, err := run(t, "reconcile", "--status", "paid")
		if err == nil || !strings.Contains(err.Error(), "provider-payment-id") {
			t.Fatalf("expected a missing flag error, but got: %v", err)
		}
	})

	t.Run("should reject unknown statuses before touching the database", func(t *testing.T) {
		_, err := run(t, "reconcile", "--provider-payment-id", "tr_1", "--status", "refunded")
		if err == nil || !strings.Contains(err.Error(), "--status") {
			t.Fatalf("expected a status error, but got: %v", err)
		}
	})
}

func TestManualEvent(t *testing.T) {
	t.Run("should audit operator reconciles as admin", func(t *testing.T) {
		// --- Arrange ---
		details := filepath.Join(t.TempDir(), "details.json")
		if err := os.WriteFile(details, []byte(`{"note":"dashboard shows paid"}`), 0o600); err != nil {
			t.Fatalf("expected details file, but got: %v", err)
		}

		// --- Act ---
		ev, err := manualEvent("tr_123", "paid", "manual", details)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if ev.Origin() != model.AuditSourceAdmin {
			t.Errorf("expected source admin, but got %s", ev.Origin())
		}
		if ev.Status != model.ReportedPaid || string(ev.Details) != `{"note":"dashboard shows paid"}` {
			t.Errorf("unexpected event: %+v", ev)
		}
	})

	t.Run("should reject details that are not JSON", func(t *testing.T) {
		details := filepath.Join(t.TempDir(), "details.json")
		if err := os.WriteFile(details, []byte("not json"), 0o600); err != nil {
			t.Fatalf("expected details file, but got: %v", err)
		}
		if _, err := manualEvent("tr_123", "paid", "manual", details); err == nil {
			t.Fatal("expected an error, but got nil")
		}
	})
}

func TestOrderCreateCmd_Validation(t *testing.T) {
	t.Run("should require an email", func(t *testing.T) {
		_, err := run(t, "order", "create", "--provider-payment-id", "tr_1", "--user", "u1")
		if err == nil || !strings.Contains(err.Error(), "--email") {
			t.Fatalf("expected an email error, but got: %v", err)
		}
	})
}
