package extension

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestNewAppliesOptions(t *testing.T) {
	e := New(WithSeed(), WithDisableRoutes(), WithDisableMigrate())

	if !e.config.Seed || !e.config.DisableRoutes || !e.config.DisableMigrate {
		t.Fatalf("options not applied: %+v", e.config)
	}
	if !reflect.DeepEqual(e.config.AdminRoles, []string{"admin"}) {
		t.Fatalf("expected default admin roles, got %v", e.config.AdminRoles)
	}
	if e.Name() != ExtensionName {
		t.Fatalf("Name() = %q", e.Name())
	}
}

func TestWithConfigReplacesDefaults(t *testing.T) {
	e := New(WithConfig(Config{CacheTTL: time.Minute, AdminRoles: []string{"director"}}))
	if e.config.CacheTTL != time.Minute {
		t.Fatalf("CacheTTL = %v", e.config.CacheTTL)
	}
	if !reflect.DeepEqual(e.config.AdminRoles, []string{"director"}) {
		t.Fatalf("AdminRoles = %v", e.config.AdminRoles)
	}
}

func TestUninitializedExtension(t *testing.T) {
	e := New()
	ctx := context.Background()

	if err := e.Start(ctx); err == nil {
		t.Fatal("Start should fail before Register")
	}
	if err := e.Health(ctx); err == nil {
		t.Fatal("Health should fail before Register")
	}
	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop before Register: %v", err)
	}

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/modules", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAPIOptionsWarnsWithoutAdminRoles(t *testing.T) {
	tests := []struct {
		name     string
		roles    []string
		wantOpts int
		wantWarn bool
	}{
		{"default", []string{"admin"}, 1, false},
		{"empty", nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			e := New(WithConfig(Config{AdminRoles: tt.roles}))

			opts := e.apiOptions(logger)
			if len(opts) != tt.wantOpts {
				t.Fatalf("expected %d options, got %d", tt.wantOpts, len(opts))
			}
			if warned := strings.Contains(buf.String(), "no admin roles"); warned != tt.wantWarn {
				t.Fatalf("warned = %v, want %v; log: %s", warned, tt.wantWarn, buf.String())
			}
		})
	}
}
