package wow

import (
	"fmt"
	"time"
)

type InvoiceStatus string

const (
	InvoiceNew        InvoiceStatus = "New"
	InvoiceProcessing InvoiceStatus = "Processing"
	InvoiceSettled    InvoiceStatus = "Settled"
	InvoiceExpired    InvoiceStatus = "Expired"
)

// Invoice is a request for payment with a WOW prompt attached.
// The listener only reads invoices and asks the store to activate or reload them.
type Invoice struct {
	ID          string        `json:"id"`
	CryptoCode  string        `json:"crypto_code"`
	Destination string        `json:"destination"` // sub-address reserved for this invoice
	Amount      CoinAmount    `json:"amount"`
	Paid        CoinAmount    `json:"paid"`
	Activated   bool          `json:"activated"`
	Speed       SpeedPolicy   `json:"speed_policy"`
	Status      InvoiceStatus `json:"status"`
	Prompt      PromptDetails `json:"prompt"`
	Created     time.Time     `json:"created"`
}

// Due is the amount still outstanding on the invoice.
func (i Invoice) Due() CoinAmount {
	return i.Amount.Sub(i.Paid)
}

// PaymentLink is the wallet URI for paying the outstanding amount.
func (i Invoice) PaymentLink() string {
	return fmt.Sprintf("wownero:%s?tx_amount=%s", i.Destination, FormatWOW(i.Due()))
}

// PaymentPromptDetails is chosen when the prompt is created.
type PaymentPromptDetails struct {
	AccountIndex                        uint32 `json:"account_index"`
	InvoiceSettledConfirmationThreshold *int64 `json:"invoice_settled_confirmation_threshold,omitempty"`
}

// OnChainPaymentMethodDetails records the sub-address reserved for the prompt.
type OnChainPaymentMethodDetails struct {
	AccountIndex uint32 `json:"account_index"`
	AddressIndex uint32 `json:"address_index"`
}

// PromptDetails is immutable once the prompt has been configured.
type PromptDetails struct {
	PaymentPromptDetails
	AddressIndex uint32     `json:"address_index"`
	NetworkFee   CoinAmount `json:"network_fee"` // suggested per-payment fee
	Configured   bool       `json:"configured"`
}

func (p PromptDetails) OnChain() OnChainPaymentMethodDetails {
	return OnChainPaymentMethodDetails{AccountIndex: p.AccountIndex, AddressIndex: p.AddressIndex}
}

// ValidatePrompt reports MalformedConfig for invoices whose prompt
// was never configured or lost its destination.
func (i Invoice) ValidatePrompt() error {
	if !i.Prompt.Configured {
		return NewErr(MalformedConfig, "invoice %s: prompt details missing", i.ID)
	}
	if i.Destination == "" {
		return NewErr(MalformedConfig, "invoice %s: prompt has no destination", i.ID)
	}
	return nil
}
