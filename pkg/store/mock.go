package store

import (
	"context"
	"sort"
	"sync"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
)

// interface guard ensures Mock implements wow.Store
var _ wow.Store = &Mock{}

// Mock is an in-memory wow.Store, used by tests and for dry runs.
type Mock struct {
	lock          sync.Mutex
	invoices      map[string]wow.Invoice
	byDestination map[string]string // cryptoCode/address -> invoice
	payments      map[string][]wow.PaymentRecord
	RelatedTxIDs  map[string][]string // payment ID -> related txids
	UpdateCalls   int
}

// NewMock returns a wow.Store implementor that stores invoices in memory
func NewMock() *Mock {
	return &Mock{
		invoices:      make(map[string]wow.Invoice, 10),
		byDestination: make(map[string]string, 10),
		payments:      make(map[string][]wow.PaymentRecord, 10),
		RelatedTxIDs:  make(map[string][]string, 10),
	}
}

func (m *Mock) Close() {}

func (m *Mock) StoreInvoice(ctx context.Context, inv wow.Invoice) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, ok := m.invoices[inv.ID]; ok {
		return wow.NewErr(wow.AlreadyExists, "invoice already exists: %v", inv.ID)
	}
	if inv.Destination != "" {
		key := inv.CryptoCode + "/" + inv.Destination
		if _, ok := m.byDestination[key]; ok {
			return wow.NewErr(wow.AlreadyExists, "destination already reserved: %v", inv.Destination)
		}
		m.byDestination[key] = inv.ID
	}
	m.invoices[inv.ID] = inv
	return nil
}

func (m *Mock) GetInvoice(ctx context.Context, id string) (wow.Invoice, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.getInvoice(id)
}

func (m *Mock) getInvoice(id string) (wow.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return wow.Invoice{}, wow.NewErr(wow.NotFound, "invoice not found: %v", id)
	}
	paid := wow.ZeroCoins
	for _, p := range m.payments[id] {
		paid = paid.Add(p.Amount)
	}
	inv.Paid = paid
	return inv, nil
}

func (m *Mock) ReloadInvoice(ctx context.Context, id string) (wow.Invoice, error) {
	return m.GetInvoice(ctx, id)
}

func (m *Mock) GetMonitoredInvoices(ctx context.Context, cryptoCode string) ([]wow.Invoice, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	var result []wow.Invoice
	for id, inv := range m.invoices {
		if inv.CryptoCode != cryptoCode {
			continue
		}
		if inv.Status != wow.InvoiceNew && inv.Status != wow.InvoiceProcessing {
			continue
		}
		inv, _ := m.getInvoice(id)
		result = append(result, inv)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Created.Equal(result[j].Created) {
			return result[i].ID < result[j].ID
		}
		return result[i].Created.Before(result[j].Created)
	})
	return result, nil
}

func (m *Mock) GetInvoiceByDestination(ctx context.Context, cryptoCode string, address string) (wow.Invoice, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	id, ok := m.byDestination[cryptoCode+"/"+address]
	if !ok {
		return wow.Invoice{}, wow.NewErr(wow.NotFound, "no invoice for address: %v", address)
	}
	return m.getInvoice(id)
}

func (m *Mock) UpdateInvoicePrompt(ctx context.Context, id string, destination string, prompt wow.PromptDetails) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return wow.NewErr(wow.NotFound, "invoice not found: %v", id)
	}
	key := inv.CryptoCode + "/" + destination
	if owner, ok := m.byDestination[key]; ok && owner != id {
		return wow.NewErr(wow.AlreadyExists, "destination already reserved: %v", destination)
	}
	m.byDestination[key] = id
	inv.Destination = destination
	inv.Prompt = prompt
	inv.Activated = true
	m.invoices[id] = inv
	return nil
}

func (m *Mock) SetInvoiceStatus(ctx context.Context, id string, status wow.InvoiceStatus) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return wow.NewErr(wow.NotFound, "invoice not found: %v", id)
	}
	inv.Status = status
	m.invoices[id] = inv
	return nil
}

func (m *Mock) GetPayments(ctx context.Context, invoiceID string, cryptoCode string) ([]wow.PaymentRecord, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	var result []wow.PaymentRecord
	for _, p := range m.payments[invoiceID] {
		if p.CryptoCode == cryptoCode {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *Mock) AddPayment(ctx context.Context, p wow.PaymentRecord, relatedTxIDs []string) (*wow.PaymentRecord, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, existing := range m.payments[p.InvoiceID] {
		if existing.ID == p.ID && existing.CryptoCode == p.CryptoCode {
			return nil, nil
		}
	}
	m.payments[p.InvoiceID] = append(m.payments[p.InvoiceID], p)
	m.RelatedTxIDs[p.ID] = append([]string(nil), relatedTxIDs...)
	return &p, nil
}

func (m *Mock) UpdatePayments(ctx context.Context, payments []wow.PaymentRecord) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.UpdateCalls++
	for _, p := range payments {
		list := m.payments[p.InvoiceID]
		found := false
		for i := range list {
			if list[i].ID == p.ID && list[i].CryptoCode == p.CryptoCode {
				list[i].Status = p.Status
				list[i].Data = p.Data
				found = true
			}
		}
		if !found {
			return wow.NewErr(wow.NotFound, "payment not found: %v", p.ID)
		}
	}
	return nil
}

// PaymentCount is the number of payments recorded for an invoice.
func (m *Mock) PaymentCount(invoiceID string) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.payments[invoiceID])
}
