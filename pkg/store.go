package wow

import "context"

// Store is the invoice and payment persistence used by the listener,
// the prompt handler and the invoice updater.
type Store interface {
	// StoreInvoice stores a new invoice and indexes its destination.
	StoreInvoice(ctx context.Context, invoice Invoice) error
	// GetInvoice returns the invoice with the given ID (NotFound if missing).
	// Paid is the sum of all recorded payments.
	GetInvoice(ctx context.Context, id string) (Invoice, error)
	// GetMonitoredInvoices returns New or Processing invoices for cryptoCode.
	GetMonitoredInvoices(ctx context.Context, cryptoCode string) ([]Invoice, error)
	// GetInvoiceByDestination resolves any sub-address ever reserved for an
	// invoice back to that invoice (NotFound if none).
	GetInvoiceByDestination(ctx context.Context, cryptoCode string, address string) (Invoice, error)
	// ReloadInvoice re-reads an invoice after activation or payment.
	ReloadInvoice(ctx context.Context, id string) (Invoice, error)
	// UpdateInvoicePrompt replaces the active destination and prompt details,
	// keeping the old destination resolvable.
	UpdateInvoicePrompt(ctx context.Context, id string, destination string, prompt PromptDetails) error
	// SetInvoiceStatus records the invoice's evaluated status.
	SetInvoiceStatus(ctx context.Context, id string, status InvoiceStatus) error

	// GetPayments returns the payments already recorded against an invoice.
	GetPayments(ctx context.Context, invoiceID string, cryptoCode string) ([]PaymentRecord, error)
	// AddPayment records a new payment. A nil record with nil error
	// means the identity was already present (duplicate).
	AddPayment(ctx context.Context, payment PaymentRecord, relatedTxIDs []string) (*PaymentRecord, error)
	// UpdatePayments writes status/data of existing payments in one transaction.
	UpdatePayments(ctx context.Context, payments []PaymentRecord) error

	Close()
}
