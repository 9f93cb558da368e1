package services

import (
	"context"
	"encoding/json"
	"log"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
)

/*
 * InvoiceStamper keeps each invoice's status in step with its payments.
 * It listens for INV events on the bus, re-evaluates the invoice named
 * in NEEDS_UPDATE and PAYMENT_RECEIVED messages, stores any change and
 * announces it with INV_STATUS_CHANGED.
 */
type InvoiceStamper struct {
	// InvoiceStamper receives wow.Message via Rec
	Rec   chan wow.Message
	store wow.Store
	bus   wow.EventSender
}

func NewInvoiceStamper(store wow.Store, bus wow.EventSender) InvoiceStamper {
	return InvoiceStamper{
		Rec:   make(chan wow.Message, 100),
		store: store,
		bus:   bus,
	}
}

// Implements wow.MessageSubscriber
func (l InvoiceStamper) GetChan() chan wow.Message {
	return l.Rec
}

// Implements conductor.Service
func (l InvoiceStamper) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		started <- true
		for {
			select {
			// handle stopping the service
			case <-stop:
				close(stopped)
				return
			case msg, ok := <-l.Rec:
				if !ok {
					log.Println("InvoiceStamper: unsubscribed from the bus")
					<-stop
					close(stopped)
					return
				}
				l.handle(context.Background(), msg)
			}
		}
	}()
	return nil
}

func (l InvoiceStamper) handle(ctx context.Context, msg wow.Message) {
	switch msg.EventType {
	case wow.INV_NEEDS_UPDATE, wow.INV_PAYMENT_RECEIVED:
	default:
		return
	}
	var ref struct {
		InvoiceID string `json:"invoice_id"`
	}
	if err := json.Unmarshal(msg.Message, &ref); err != nil || ref.InvoiceID == "" {
		log.Println("InvoiceStamper: bad message:", msg.ID, err)
		return
	}
	if err := l.Stamp(ctx, ref.InvoiceID); err != nil {
		log.Println("InvoiceStamper:", err)
	}
}

// Stamp re-evaluates one invoice and records its status if it changed.
func (l InvoiceStamper) Stamp(ctx context.Context, invoiceID string) error {
	inv, err := l.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	payments, err := l.store.GetPayments(ctx, inv.ID, inv.CryptoCode)
	if err != nil {
		return err
	}
	status := invoiceStatus(inv, payments)
	if status == inv.Status {
		return nil
	}
	if err := l.store.SetInvoiceStatus(ctx, inv.ID, status); err != nil {
		return err
	}
	log.Printf("InvoiceStamper: invoice %s %s -> %s (paid %s of %s)\n",
		inv.ID, inv.Status, status, wow.FormatWOW(inv.Paid), wow.FormatWOW(inv.Amount))
	msg := wow.InvoiceStatusMessage{InvoiceID: inv.ID, Status: status, Paid: inv.Paid, Due: inv.Due()}
	if err := l.bus.Send(wow.INV_STATUS_CHANGED, msg, inv.ID); err != nil {
		log.Println("InvoiceStamper: bus error:", err)
	}
	return nil
}

// invoiceStatus: Settled once the full amount is paid and every payment
// has settled, Processing while any payment exists. Settled and Expired
// invoices never move.
func invoiceStatus(inv wow.Invoice, payments []wow.PaymentRecord) wow.InvoiceStatus {
	if inv.Status == wow.InvoiceSettled || inv.Status == wow.InvoiceExpired {
		return inv.Status
	}
	if len(payments) == 0 {
		return inv.Status
	}
	if inv.Paid.LessThan(inv.Amount) {
		return wow.InvoiceProcessing
	}
	for _, p := range payments {
		if p.Status != wow.PaymentSettled {
			return wow.InvoiceProcessing
		}
	}
	return wow.InvoiceSettled
}
