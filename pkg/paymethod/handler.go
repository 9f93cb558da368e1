package paymethod

import (
	"context"
	"fmt"
	"log"
	"strings"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
)

// feeTxSize is the assumed transaction size, in bytes, used to turn
// the daemon's per-kB estimate into a suggested network fee.
const feeTxSize = 100

// Handler configures WOW payment prompts: it reserves a sub-address per
// invoice and re-activates invoices that are only partially paid.
type Handler struct {
	cryptoCode string
	store      wow.Store
	wallet     wow.WalletRPC
	tracker    *wow.AvailabilityTracker
	bus        wow.EventSender
}

func NewHandler(cryptoCode string, store wow.Store, wallet wow.WalletRPC, tracker *wow.AvailabilityTracker, bus wow.EventSender) *Handler {
	return &Handler{cryptoCode: cryptoCode, store: store, wallet: wallet, tracker: tracker, bus: bus}
}

// ConfigurePrompt reserves a destination for a new invoice and stores it,
// activated. Fails fast with BackendUnavailable when the wallet or daemon
// is unreachable.
func (h *Handler) ConfigurePrompt(ctx context.Context, inv wow.Invoice, details wow.PaymentPromptDetails) (wow.Invoice, error) {
	if inv.ID == "" {
		return wow.Invoice{}, wow.NewErr(wow.BadRequest, "invoice id is required")
	}
	if !inv.Amount.IsPositive() {
		return wow.Invoice{}, wow.NewErr(wow.BadRequest, "invoice amount must be positive")
	}
	prompt, dest, err := h.reserve(ctx, inv.ID, details)
	if err != nil {
		return wow.Invoice{}, err
	}
	inv.CryptoCode = h.cryptoCode
	inv.Destination = dest
	inv.Prompt = prompt
	inv.Activated = true
	inv.Status = wow.InvoiceNew
	inv.Paid = wow.ZeroCoins
	if err := h.store.StoreInvoice(ctx, inv); err != nil {
		return wow.Invoice{}, err
	}
	log.Printf("PaymentMethod: invoice %s awaiting %s %s at %s\n", inv.ID, wow.FormatWOW(inv.Amount), h.cryptoCode, dest)
	h.send(wow.INV_CREATED, inv, inv.ID)
	return inv, nil
}

// ActivateInvoicePaymentMethod moves an invoice onto a fresh sub-address
// so the remaining due is paid to a new destination. The previous
// destination stays resolvable through the store's address index.
func (h *Handler) ActivateInvoicePaymentMethod(ctx context.Context, invoiceID string) error {
	inv, err := h.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv.CryptoCode != h.cryptoCode {
		return wow.NewErr(wow.BadRequest, "invoice %s is not a %s invoice", invoiceID, h.cryptoCode)
	}
	prompt, dest, err := h.reserve(ctx, inv.ID, inv.Prompt.PaymentPromptDetails)
	if err != nil {
		return err
	}
	if err := h.store.UpdateInvoicePrompt(ctx, inv.ID, dest, prompt); err != nil {
		return err
	}
	inv, err = h.store.ReloadInvoice(ctx, inv.ID)
	if err != nil {
		return err
	}
	log.Printf("PaymentMethod: invoice %s re-activated at %s, due %s\n", inv.ID, dest, wow.FormatWOW(inv.Due()))
	h.send(wow.INV_ACTIVATED, wow.InvoiceActivatedMessage{
		InvoiceID:   inv.ID,
		Destination: dest,
		PaymentLink: inv.PaymentLink(),
	}, inv.ID)
	return nil
}

func (h *Handler) reserve(ctx context.Context, invoiceID string, details wow.PaymentPromptDetails) (wow.PromptDetails, string, error) {
	if !h.tracker.IsAvailable(h.cryptoCode) {
		return wow.PromptDetails{}, "", wow.NewErr(wow.BackendUnavailable, "%s payment backend unavailable", h.cryptoCode)
	}
	feePerKB, err := h.wallet.GetFeeEstimate(ctx)
	if err != nil {
		return wow.PromptDetails{}, "", err
	}
	feePerByte := feePerKB / 1024
	addr, err := h.wallet.CreateAddress(ctx, details.AccountIndex, fmt.Sprintf("invoice #%s", invoiceID))
	if err != nil {
		return wow.PromptDetails{}, "", err
	}
	prompt := wow.PromptDetails{
		PaymentPromptDetails: details,
		AddressIndex:         addr.AddressIndex,
		NetworkFee:           wow.PiconeroToDecimal(feePerByte * feeTxSize),
		Configured:           true,
	}
	return prompt, addr.Address, nil
}

func (h *Handler) send(t wow.EventType, msg any, id string) {
	if h.bus == nil {
		return
	}
	if err := h.bus.Send(t, msg, id); err != nil {
		log.Println("PaymentMethod: bus error:", err)
	}
}

// ParseThresholdChoice maps the invoice-settled-confirmation choice to an
// override. An empty choice defers to the invoice's speed policy.
func ParseThresholdChoice(choice string, custom int64) (*int64, error) {
	var n int64
	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "":
		return nil, nil
	case "zero":
		n = 0
	case "one":
		n = 1
	case "ten":
		n = 10
	case "custom":
		if custom < 0 {
			return nil, wow.NewErr(wow.BadRequest, "custom confirmation threshold must not be negative")
		}
		n = custom
	default:
		return nil, wow.NewErr(wow.BadRequest, "unknown confirmation threshold: %q", choice)
	}
	return &n, nil
}
