package store

import (
	"context"
	"testing"
	"time"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
	"github.com/shopspring/decimal"
)

func testInvoice(id, dest string) wow.Invoice {
	override := int64(3)
	return wow.Invoice{
		ID:          id,
		CryptoCode:  "WOW",
		Destination: dest,
		Amount:      decimal.RequireFromString("1.23456789"),
		Activated:   true,
		Speed:       wow.LowMediumSpeed,
		Status:      wow.InvoiceNew,
		Prompt: wow.PromptDetails{
			PaymentPromptDetails: wow.PaymentPromptDetails{AccountIndex: 2, InvoiceSettledConfirmationThreshold: &override},
			AddressIndex:         5,
			NetworkFee:           decimal.RequireFromString("0.00000001"),
			Configured:           true,
		},
		Created: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testPayment(invoiceID, txid string, amount string) wow.PaymentRecord {
	return wow.PaymentRecord{
		ID:          wow.PaymentID(txid, 2, 5),
		InvoiceID:   invoiceID,
		CryptoCode:  "WOW",
		Status:      wow.PaymentProcessing,
		Amount:      decimal.RequireFromString(amount),
		Destination: "Wdest",
		Created:     time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC),
		Data:        wow.PaymentData{SubaccountIndex: 2, SubaddressIndex: 5, TransactionID: txid, ConfirmationCount: 0, BlockHeight: 0},
	}
}

func newSQLite(t *testing.T) SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSQLiteInvoices(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	if err := s.StoreInvoice(ctx, testInvoice("inv1", "Wdest")); err != nil {
		t.Fatalf("StoreInvoice: %v", err)
	}
	err := s.StoreInvoice(ctx, testInvoice("inv1", "Wother"))
	if !wow.IsAlreadyExistsError(err) {
		t.Fatalf("expected already-exists, got %v", err)
	}

	inv, err := s.GetInvoice(ctx, "inv1")
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if inv.Speed != wow.LowMediumSpeed || !inv.Activated || inv.Prompt.AddressIndex != 5 ||
		*inv.Prompt.InvoiceSettledConfirmationThreshold != 3 || !inv.Paid.IsZero() {
		t.Errorf("invoice did not round-trip: %+v", inv)
	}
	if !inv.Created.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("created did not round-trip: %v", inv.Created)
	}

	if _, err := s.GetInvoice(ctx, "nope"); !wow.IsNotFoundError(err) {
		t.Errorf("expected not-found, got %v", err)
	}
	if _, err := s.GetInvoiceByDestination(ctx, "WOW", "Wnope"); !wow.IsNotFoundError(err) {
		t.Errorf("expected not-found, got %v", err)
	}

	// re-activation keeps the old destination resolvable
	prompt := inv.Prompt
	prompt.AddressIndex = 6
	if err := s.UpdateInvoicePrompt(ctx, "inv1", "Wnext", prompt); err != nil {
		t.Fatalf("UpdateInvoicePrompt: %v", err)
	}
	for _, addr := range []string{"Wdest", "Wnext"} {
		got, err := s.GetInvoiceByDestination(ctx, "WOW", addr)
		if err != nil || got.ID != "inv1" {
			t.Errorf("%s: %v", addr, err)
		}
	}
	inv, _ = s.ReloadInvoice(ctx, "inv1")
	if inv.Destination != "Wnext" || inv.Prompt.AddressIndex != 6 {
		t.Errorf("prompt not updated: %+v", inv)
	}

	monitored, err := s.GetMonitoredInvoices(ctx, "WOW")
	if err != nil || len(monitored) != 1 {
		t.Fatalf("GetMonitoredInvoices: %v %d", err, len(monitored))
	}
	if err := s.SetInvoiceStatus(ctx, "inv1", wow.InvoiceSettled); err != nil {
		t.Fatalf("SetInvoiceStatus: %v", err)
	}
	monitored, _ = s.GetMonitoredInvoices(ctx, "WOW")
	if len(monitored) != 0 {
		t.Errorf("settled invoice still monitored")
	}
	if err := s.SetInvoiceStatus(ctx, "nope", wow.InvoiceSettled); !wow.IsNotFoundError(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestSQLitePayments(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	if err := s.StoreInvoice(ctx, testInvoice("inv1", "Wdest")); err != nil {
		t.Fatalf("StoreInvoice: %v", err)
	}

	added, err := s.AddPayment(ctx, testPayment("inv1", "tx1", "1"), []string{"tx1"})
	if err != nil || added == nil {
		t.Fatalf("AddPayment: %v %v", added, err)
	}
	dup, err := s.AddPayment(ctx, testPayment("inv1", "tx1", "1"), []string{"tx1"})
	if err != nil || dup != nil {
		t.Fatalf("duplicate should be a nil no-op, got %v %v", dup, err)
	}
	if _, err := s.AddPayment(ctx, testPayment("inv1", "tx2", "0.23456789"), nil); err != nil {
		t.Fatalf("AddPayment: %v", err)
	}

	inv, _ := s.GetInvoice(ctx, "inv1")
	if !inv.Paid.Equal(decimal.RequireFromString("1.23456789")) || !inv.Due().IsZero() {
		t.Errorf("unexpected paid %v due %v", inv.Paid, inv.Due())
	}

	p := testPayment("inv1", "tx1", "1")
	p.Status = wow.PaymentSettled
	p.Data.ConfirmationCount = 4
	p.Data.BlockHeight = 900
	if err := s.UpdatePayments(ctx, []wow.PaymentRecord{p}); err != nil {
		t.Fatalf("UpdatePayments: %v", err)
	}
	payments, err := s.GetPayments(ctx, "inv1", "WOW")
	if err != nil || len(payments) != 2 {
		t.Fatalf("GetPayments: %v %d", err, len(payments))
	}
	for _, got := range payments {
		if got.ID == p.ID {
			if got.Status != wow.PaymentSettled || got.Data.ConfirmationCount != 4 || got.Data.BlockHeight != 900 {
				t.Errorf("payment not updated: %+v", got)
			}
			if !got.Amount.Equal(decimal.NewFromInt(1)) {
				t.Errorf("amount changed: %v", got.Amount)
			}
		}
	}
	if other, _ := s.GetPayments(ctx, "inv1", "XMR"); len(other) != 0 {
		t.Errorf("payments leaked across currencies")
	}
}
