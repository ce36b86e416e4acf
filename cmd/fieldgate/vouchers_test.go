package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/xraph/fieldgate"
	"github.com/xraph/fieldgate/seed"
	"github.com/xraph/fieldgate/store/memory"
)

func newSeededBook(t *testing.T) *voucherBook {
	t.Helper()
	eng, err := fieldgate.NewEngine(fieldgate.WithStore(memory.New()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := seed.ApplyDefault(context.Background(), eng); err != nil {
		t.Fatal(err)
	}
	return newVoucherBook(eng)
}

func TestApplyUpdate(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		voucher    string
		fields     map[string]any
		wantErr    error
		wantStatus string
		wantAmount any
	}{
		{"writer cannot change status", "accountant", "CP-0001",
			map[string]any{"paymentStatus": "paid"}, fieldgate.ErrAccessDenied, "pending", 1250000},
		{"status change rejects the whole update", "accountant", "CP-0001",
			map[string]any{"paymentStatus": "paid", "amount": 1}, fieldgate.ErrAccessDenied, "pending", 1250000},
		{"writer edits amount", "accountant", "CP-0001",
			map[string]any{"amount": 900000}, nil, "pending", 900000},
		{"administrator changes status", "director", "CP-0001",
			map[string]any{"paymentStatus": "paid"}, nil, "paid", 1250000},
		{"no role", "", "CP-0001",
			map[string]any{"amount": 1}, fieldgate.ErrNoRole, "pending", 1250000},
		{"unknown voucher", "director", "CP-9999",
			map[string]any{"amount": 1}, errVoucherNotFound, "pending", 1250000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newSeededBook(t)
			ctx := context.Background()
			if tt.role != "" {
				ctx = fieldgate.WithRole(ctx, tt.role)
			}

			_, err := b.applyUpdate(ctx, tt.voucher, tt.fields)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatal(err)
			}

			v, _ := b.lookup("CP-0001")
			if v[statusField] != tt.wantStatus {
				t.Fatalf("paymentStatus = %v, want %v", v[statusField], tt.wantStatus)
			}
			if v["amount"] != tt.wantAmount {
				t.Fatalf("amount = %v, want %v", v["amount"], tt.wantAmount)
			}
		})
	}
}

func TestReadHidesFields(t *testing.T) {
	b := newSeededBook(t)
	ctx := fieldgate.WithRole(context.Background(), "marketing_sales")

	out, err := b.read(ctx, "CP-0001")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out["amount"]; ok {
		t.Fatal("amount should be hidden from marketing_sales")
	}
	if out["voucherNo"] != "CP-0001" {
		t.Fatalf("voucherNo = %v", out["voucherNo"])
	}
	if _, err := b.read(context.Background(), "CP-0001"); !errors.Is(err, fieldgate.ErrNoRole) {
		t.Fatalf("expected ErrNoRole, got %v", err)
	}
}

func TestHTTPError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errVoucherNotFound, http.StatusNotFound},
		{fmt.Errorf("resolve: %w", fieldgate.ErrNoRole), http.StatusUnauthorized},
		{fmt.Errorf("approve: %w", fieldgate.ErrAccessDenied), http.StatusForbidden},
		{errors.New("store unavailable"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got := http.StatusInternalServerError
		var he interface{ StatusCode() int }
		if errors.As(httpError(tt.err), &he) {
			got = he.StatusCode()
		}
		if got != tt.want {
			t.Errorf("httpError(%v) status = %d, want %d", tt.err, got, tt.want)
		}
	}
}
