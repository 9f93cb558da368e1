package paymethod

import (
	"context"
	"testing"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
	"github.com/dogecoinfoundation/wowpay/pkg/store"
	"github.com/shopspring/decimal"
)

type fakeWallet struct {
	wow.WalletRPC
	next   uint32
	labels []string
}

func (w *fakeWallet) GetFeeEstimate(ctx context.Context) (int64, error) {
	return 1024 * 5000, nil
}

func (w *fakeWallet) CreateAddress(ctx context.Context, account uint32, label string) (wow.CreatedAddress, error) {
	w.next++
	w.labels = append(w.labels, label)
	return wow.CreatedAddress{Address: "Wo" + string(rune('a'+w.next)), AddressIndex: w.next}, nil
}

type countingBus struct {
	sent map[wow.EventType]int
}

func (b *countingBus) Send(t wow.EventType, msg any, msgID ...string) error {
	b.sent[t]++
	return nil
}

func newHandler(available bool) (*Handler, *store.Mock, *fakeWallet, *countingBus) {
	s := store.NewMock()
	w := &fakeWallet{}
	bus := &countingBus{sent: map[wow.EventType]int{}}
	tracker := wow.NewAvailabilityTracker(nil)
	tracker.Update(wow.AvailabilitySummary{CryptoCode: "WOW", DaemonAvailable: true, WalletAvailable: available})
	return NewHandler("WOW", s, w, tracker, bus), s, w, bus
}

func TestConfigurePrompt(t *testing.T) {
	h, s, w, bus := newHandler(true)
	ctx := context.Background()
	ten := int64(10)
	inv, err := h.ConfigurePrompt(ctx, wow.Invoice{ID: "42", Amount: decimal.RequireFromString("3"), Speed: wow.MediumSpeed},
		wow.PaymentPromptDetails{AccountIndex: 1, InvoiceSettledConfirmationThreshold: &ten})
	if err != nil {
		t.Fatalf("ConfigurePrompt: %v", err)
	}
	if !inv.Activated || inv.Destination != "Wob" || inv.Prompt.AddressIndex != 1 || !inv.Prompt.Configured {
		t.Errorf("unexpected invoice %+v", inv)
	}
	if w.labels[0] != "invoice #42" {
		t.Errorf("unexpected address label %q", w.labels[0])
	}
	// 5000 piconero/byte * 100 bytes
	if wow.FormatWOW(inv.Prompt.NetworkFee) != "0.00000500000" {
		t.Errorf("unexpected network fee %s", wow.FormatWOW(inv.Prompt.NetworkFee))
	}
	stored, err := s.GetInvoiceByDestination(ctx, "WOW", "Wob")
	if err != nil || stored.ID != "42" {
		t.Fatalf("invoice not indexed by destination: %v", err)
	}
	if *stored.Prompt.InvoiceSettledConfirmationThreshold != 10 {
		t.Errorf("override not stored")
	}
	if bus.sent[wow.INV_CREATED] != 1 {
		t.Errorf("expected INV_CREATED")
	}
	if inv.PaymentLink() != "wownero:Wob?tx_amount=3.00000000000" {
		t.Errorf("unexpected payment link %s", inv.PaymentLink())
	}
}

func TestConfigurePromptUnavailable(t *testing.T) {
	h, _, w, _ := newHandler(false)
	_, err := h.ConfigurePrompt(context.Background(), wow.Invoice{ID: "1", Amount: decimal.NewFromInt(1)}, wow.PaymentPromptDetails{})
	if !wow.IsBackendUnavailable(err) {
		t.Fatalf("expected backend-unavailable, got %v", err)
	}
	if len(w.labels) != 0 {
		t.Errorf("address reserved while unavailable")
	}
}

func TestActivateReservesNewDestination(t *testing.T) {
	h, s, _, bus := newHandler(true)
	ctx := context.Background()
	_, err := h.ConfigurePrompt(ctx, wow.Invoice{ID: "7", Amount: decimal.NewFromInt(2)}, wow.PaymentPromptDetails{})
	if err != nil {
		t.Fatalf("ConfigurePrompt: %v", err)
	}
	if err := h.ActivateInvoicePaymentMethod(ctx, "7"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	inv, _ := s.GetInvoice(ctx, "7")
	if inv.Destination != "Woc" || inv.Prompt.AddressIndex != 2 {
		t.Errorf("expected new destination, got %s/%d", inv.Destination, inv.Prompt.AddressIndex)
	}
	for _, addr := range []string{"Wob", "Woc"} {
		if got, err := s.GetInvoiceByDestination(ctx, "WOW", addr); err != nil || got.ID != "7" {
			t.Errorf("%s does not resolve to the invoice: %v", addr, err)
		}
	}
	if bus.sent[wow.INV_ACTIVATED] != 1 {
		t.Errorf("expected INV_ACTIVATED")
	}
}

func TestParseThresholdChoice(t *testing.T) {
	cases := []struct {
		choice string
		custom int64
		want   int64
	}{
		{"zero", 0, 0},
		{"one", 0, 1},
		{"TEN", 0, 10},
		{"custom", 25, 25},
	}
	for _, c := range cases {
		got, err := ParseThresholdChoice(c.choice, c.custom)
		if err != nil || got == nil || *got != c.want {
			t.Errorf("%s: got %v, %v", c.choice, got, err)
		}
	}
	if got, err := ParseThresholdChoice("", 0); got != nil || err != nil {
		t.Errorf("empty choice should defer to the speed policy")
	}
	if _, err := ParseThresholdChoice("lots", 0); err == nil {
		t.Errorf("expected error for unknown choice")
	}
	if _, err := ParseThresholdChoice("custom", -1); err == nil {
		t.Errorf("expected error for negative custom threshold")
	}
}
