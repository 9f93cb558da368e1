package wow

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentProcessing PaymentStatus = "Processing"
	PaymentSettled    PaymentStatus = "Settled"
)

// PaymentRecord is a transfer attributed to an invoice.
// ID never changes once created; Status and Data follow the chain.
type PaymentRecord struct {
	ID          string        `json:"id"` // txid#subaccount#subaddress
	InvoiceID   string        `json:"invoice_id"`
	CryptoCode  string        `json:"crypto_code"`
	Status      PaymentStatus `json:"status"`
	Amount      CoinAmount    `json:"amount"`
	Destination string        `json:"destination"`
	Created     time.Time     `json:"created"`
	Data        PaymentData   `json:"data"`
}

// PaymentData is the details blob persisted with each PaymentRecord.
type PaymentData struct {
	SubaccountIndex                     uint32 `json:"subaccount_index"`
	SubaddressIndex                     uint32 `json:"subaddress_index"`
	TransactionID                       string `json:"transaction_id"`
	ConfirmationCount                   int64  `json:"confirmation_count"`
	BlockHeight                         int64  `json:"block_height"`
	LockTime                            int64  `json:"lock_time"`
	InvoiceSettledConfirmationThreshold *int64 `json:"invoice_settled_confirmation_threshold,omitempty"`
}

// PaymentID derives the identity of a transfer to one sub-address.
func PaymentID(txid string, subaccount, subaddress uint32) string {
	return fmt.Sprintf("%s#%d#%d", txid, subaccount, subaddress)
}

func ParsePaymentID(id string) (txid string, subaccount, subaddress uint32, err error) {
	parts := strings.Split(id, "#")
	if len(parts) != 3 || parts[0] == "" {
		return "", 0, 0, NewErr(BadRequest, "malformed payment id: %q", id)
	}
	acc, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return "", 0, 0, NewErr(BadRequest, "malformed payment id subaccount: %q", id)
	}
	addr, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return "", 0, 0, NewErr(BadRequest, "malformed payment id subaddress: %q", id)
	}
	return parts[0], uint32(acc), uint32(addr), nil
}
