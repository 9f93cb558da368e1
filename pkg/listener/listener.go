package listener

import (
	"context"
	"log"
	"time"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
)

// Activator re-activates an invoice's payment method after a partial
// payment, reserving a fresh destination for the remaining due.
type Activator interface {
	ActivateInvoicePaymentMethod(ctx context.Context, invoiceID string) error
}

/*
 * Listener reconciles wallet transfers against monitored invoices.
 * It consumes NodeEvents (availability, block, tx) one at a time from
 * Events, so no two passes for the same currency ever overlap.
 * Each pass creates new payments as they are seen and batches updates
 * to existing ones, then announces the invoices that changed.
 */
type Listener struct {
	cryptoCode string
	store      wow.Store
	wallet     wow.WalletRPC
	bus        wow.EventSender
	tracker    *wow.AvailabilityTracker
	activator  Activator
	metrics    *Metrics
	now        func() time.Time

	// Events is the listener's only input queue.
	Events chan wow.NodeEvent
}

func NewListener(cryptoCode string, store wow.Store, wallet wow.WalletRPC, bus wow.EventSender,
	tracker *wow.AvailabilityTracker, activator Activator, metrics *Metrics, queue int) *Listener {
	if metrics == nil {
		metrics = NewMetrics()
	}
	l := &Listener{
		cryptoCode: cryptoCode,
		store:      store,
		wallet:     wallet,
		bus:        bus,
		tracker:    tracker,
		activator:  activator,
		metrics:    metrics,
		now:        time.Now,
		Events:     make(chan wow.NodeEvent, queue),
	}
	// called on the HealthProbe goroutine, so it must not block
	tracker.Subscribe(func(code string, available bool) {
		select {
		case l.Events <- wow.NewAvailabilityEvent(code, available):
		default:
			log.Printf("Listener: queue full, dropped %s availability=%v\n", code, available)
		}
	})
	return l
}

// Chan is the queue end handed to NodeEmitters.
func (l *Listener) Chan() chan<- wow.NodeEvent {
	return l.Events
}

// Implements conductor.Service
func (l *Listener) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		started <- true
		for {
			// shutdown is only observed between events: a pass in
			// progress always completes its batch write.
			select {
			case <-stop:
				close(stopped)
				return
			case e := <-l.Events:
				l.handle(context.Background(), e)
			}
		}
	}()
	return nil
}

// handle is the single dispatch over the event kind.
func (l *Listener) handle(ctx context.Context, e wow.NodeEvent) error {
	if e.CryptoCode != l.cryptoCode {
		return nil
	}
	var err error
	switch e.Type {
	case wow.AvailabilityChanged:
		if !e.Available {
			log.Printf("Listener: %s backend unavailable, reconciliation suspended\n", l.cryptoCode)
			return nil
		}
		if !l.available("availability") {
			return nil
		}
		err = l.Rescan(ctx)
		l.record("availability", err)
	case wow.Block:
		if e.ID == "" || !l.available("block") {
			return nil
		}
		err = l.Rescan(ctx)
		l.record("block", err)
		if err == nil {
			msg := wow.NewBlockMessage{PaymentMethodID: l.cryptoCode + "-CHAIN", BlockHash: e.ID}
			if berr := l.bus.Send(wow.NET_NEW_BLOCK, msg); berr != nil {
				log.Println("Listener: bus error:", berr)
			}
		}
	case wow.TX:
		if e.ID == "" || !l.available("tx") {
			return nil
		}
		err = l.TargetedLookup(ctx, e.ID)
		l.record("tx", err)
	default:
		log.Printf("Listener: ignoring unknown event type %v\n", e.Type)
	}
	return err
}

func (l *Listener) available(kind string) bool {
	if l.tracker.IsAvailable(l.cryptoCode) {
		return true
	}
	l.metrics.Passes.WithLabelValues(kind, "skipped").Inc()
	log.Printf("Listener: %s unavailable, skipping %s pass\n", l.cryptoCode, kind)
	return false
}

func (l *Listener) record(kind string, err error) {
	if err != nil {
		l.metrics.Passes.WithLabelValues(kind, "error").Inc()
		log.Printf("Listener: %s pass failed: %v\n", kind, err)
		return
	}
	l.metrics.Passes.WithLabelValues(kind, "ok").Inc()
}
