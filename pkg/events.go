package wow

// WowPay event types

// bus.Send(INV_PAYMENT_RECEIVED, msg)
// bus.Send(NET_NEW_BLOCK, msg)

// Interface for any event
type EventType interface {
	Type() string
}

// slice of all msg types for config funcs lookup
var EVENT_TYPES []EventType = []EventType{EVENT_ALL("ALL"),
	EVENT_SYS("SYS"),
	EVENT_NET("NET"),
	EVENT_INV("INV")}

// Special category, do not use directly, represents *
type EVENT_ALL string

func (e EVENT_ALL) Type() string {
	return "ALL"
}

// System Events
type EVENT_SYS string

func (e EVENT_SYS) Type() string {
	return "SYS"
}

const (
	SYS_STARTUP EVENT_SYS = "STARTUP"
	SYS_ERR     EVENT_SYS = "ERR"
	SYS_MSG     EVENT_SYS = "MSG"
)

// Network Events: chain tip and backend reachability
type EVENT_NET string

func (e EVENT_NET) Type() string {
	return "NET"
}

const (
	NET_NEW_BLOCK            EVENT_NET = "NEW_BLOCK"
	NET_AVAILABILITY_CHANGED EVENT_NET = "AVAILABILITY_CHANGED"
)

// Invoice Events
type EVENT_INV string

func (e EVENT_INV) Type() string {
	return "INV"
}

const (
	INV_CREATED          EVENT_INV = "CREATED"
	INV_ACTIVATED        EVENT_INV = "ACTIVATED"
	INV_NEEDS_UPDATE     EVENT_INV = "NEEDS_UPDATE"
	INV_PAYMENT_RECEIVED EVENT_INV = "PAYMENT_RECEIVED"
	INV_STATUS_CHANGED   EVENT_INV = "STATUS_CHANGED"
)

// EventTypesFromNames maps configured category names ("ALL", "INV", ...)
// to EventTypes, returning any names that did not match.
func EventTypesFromNames(names []string) (types []EventType, invalid []string) {
	for _, n := range names {
		match := false
		for _, x := range EVENT_TYPES {
			if n == x.Type() {
				match = true
				types = append(types, x)
			}
		}
		if !match {
			invalid = append(invalid, n)
		}
	}
	return
}

// Payload for NET_NEW_BLOCK
type NewBlockMessage struct {
	PaymentMethodID string `json:"payment_method_id"`
	BlockHash       string `json:"block_hash"`
}

// Payload for NET_AVAILABILITY_CHANGED
type AvailabilityMessage struct {
	CryptoCode string `json:"crypto_code"`
	Available  bool   `json:"available"`
}

// Payload for INV_NEEDS_UPDATE
type InvoiceNeedUpdateMessage struct {
	InvoiceID string `json:"invoice_id"`
}

// Payload for INV_PAYMENT_RECEIVED
type PaymentReceivedMessage struct {
	InvoiceID string        `json:"invoice_id"`
	Payment   PaymentRecord `json:"payment"`
}

// Payload for INV_STATUS_CHANGED
type InvoiceStatusMessage struct {
	InvoiceID string        `json:"invoice_id"`
	Status    InvoiceStatus `json:"status"`
	Paid      CoinAmount    `json:"paid"`
	Due       CoinAmount    `json:"due"`
}

// Payload for INV_ACTIVATED
type InvoiceActivatedMessage struct {
	InvoiceID   string `json:"invoice_id"`
	Destination string `json:"destination"`
	PaymentLink string `json:"payment_link"`
}
