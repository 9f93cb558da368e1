package listener

import (
	"context"
	"fmt"
	"log"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
)

type transferInput struct {
	address       string
	amount        int64 // piconero
	account       uint32
	subaddress    uint32
	txid          string
	confirmations int64
	height        int64
	lockTime      int64
}

// batch collects updated payments and the invoices touched by a pass.
type batch struct {
	updates  []wow.PaymentRecord
	byID     map[string]int
	invoices []string
	touched  map[string]bool
}

func newBatch() *batch {
	return &batch{byID: map[string]int{}, touched: map[string]bool{}}
}

func (b *batch) update(p wow.PaymentRecord) {
	if i, ok := b.byID[p.ID]; ok {
		b.updates[i] = p
	} else {
		b.byID[p.ID] = len(b.updates)
		b.updates = append(b.updates, p)
	}
	b.touch(p.InvoiceID)
}

func (b *batch) touch(invoiceID string) {
	if !b.touched[invoiceID] {
		b.touched[invoiceID] = true
		b.invoices = append(b.invoices, invoiceID)
	}
}

// applyTransfer evaluates one (invoice, transfer) pair. New payments are
// added to the store immediately; existing ones are mutated in place and
// queued on the batch.
func (l *Listener) applyTransfer(ctx context.Context, rc *reconcileContext, in transferInput, b *batch) error {
	data := wow.PaymentData{
		SubaccountIndex:                     in.account,
		SubaddressIndex:                     in.subaddress,
		TransactionID:                       in.txid,
		ConfirmationCount:                   in.confirmations,
		BlockHeight:                         in.height,
		LockTime:                            in.lockTime,
		InvoiceSettledConfirmationThreshold: rc.prompt.InvoiceSettledConfirmationThreshold,
	}
	status := wow.PaymentProcessing
	if wow.IsSettled(data, rc.invoice.Speed) {
		status = wow.PaymentSettled
	}
	id := wow.PaymentID(in.txid, in.account, in.subaddress)

	for i := range rc.payments {
		existing := &rc.payments[i]
		if existing.ID != id || existing.CryptoCode != l.cryptoCode {
			continue
		}
		if existing.Status == status && sameData(existing.Data, data) {
			return nil
		}
		existing.Status = status
		existing.Data = data
		b.update(*existing)
		l.metrics.Payments.WithLabelValues("updated").Inc()
		return nil
	}

	record := wow.PaymentRecord{
		ID:          id,
		InvoiceID:   rc.invoice.ID,
		CryptoCode:  l.cryptoCode,
		Status:      status,
		Amount:      wow.PiconeroToDecimal(in.amount),
		Destination: in.address,
		Created:     l.now().UTC(),
		Data:        data,
	}
	added, err := l.store.AddPayment(ctx, record, []string{in.txid})
	if err != nil {
		return fmt.Errorf("AddPayment %s: %w", id, err)
	}
	if added == nil {
		// lost a race with another writer; the next pass updates it.
		l.metrics.Payments.WithLabelValues("duplicate").Inc()
		return nil
	}
	l.metrics.Payments.WithLabelValues("created").Inc()
	rc.payments = append(rc.payments, *added)
	b.touch(rc.invoice.ID)
	l.receivedPayment(ctx, rc, *added)
	return nil
}

func (l *Listener) receivedPayment(ctx context.Context, rc *reconcileContext, payment wow.PaymentRecord) {
	rc.invoice.Paid = rc.invoice.Paid.Add(payment.Amount)
	inv := rc.invoice
	log.Printf("Listener: invoice %s received payment %s %s %s\n",
		inv.ID, wow.FormatWOW(payment.Amount), payment.CryptoCode, payment.ID)

	// only a payment to the invoice's current destination reserves a new one
	if l.activator != nil && inv.Activated && inv.Destination == payment.Destination && inv.Due().IsPositive() {
		if err := l.activator.ActivateInvoicePaymentMethod(ctx, inv.ID); err != nil {
			log.Printf("Listener: activating invoice %s: %v\n", inv.ID, err)
		} else if reloaded, err := l.store.ReloadInvoice(ctx, inv.ID); err != nil {
			log.Printf("Listener: reloading invoice %s: %v\n", inv.ID, err)
		} else {
			rc.invoice = reloaded
		}
	}

	msg := wow.PaymentReceivedMessage{InvoiceID: inv.ID, Payment: payment}
	if err := l.bus.Send(wow.INV_PAYMENT_RECEIVED, msg, payment.ID); err != nil {
		log.Println("Listener: bus error:", err)
	}
}

// commit writes the batched updates, then announces each touched invoice.
func (l *Listener) commit(ctx context.Context, b *batch) error {
	if len(b.updates) > 0 {
		if err := l.store.UpdatePayments(ctx, b.updates); err != nil {
			return fmt.Errorf("UpdatePayments: %w", err)
		}
	}
	for _, id := range b.invoices {
		if err := l.bus.Send(wow.INV_NEEDS_UPDATE, wow.InvoiceNeedUpdateMessage{InvoiceID: id}); err != nil {
			log.Println("Listener: bus error:", err)
		}
	}
	return nil
}

func sameData(a, b wow.PaymentData) bool {
	if (a.InvoiceSettledConfirmationThreshold == nil) != (b.InvoiceSettledConfirmationThreshold == nil) {
		return false
	}
	if a.InvoiceSettledConfirmationThreshold != nil &&
		*a.InvoiceSettledConfirmationThreshold != *b.InvoiceSettledConfirmationThreshold {
		return false
	}
	return a.SubaccountIndex == b.SubaccountIndex &&
		a.SubaddressIndex == b.SubaddressIndex &&
		a.TransactionID == b.TransactionID &&
		a.ConfirmationCount == b.ConfirmationCount &&
		a.BlockHeight == b.BlockHeight &&
		a.LockTime == b.LockTime
}
