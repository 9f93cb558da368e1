package services

import (
	wow "github.com/dogecoinfoundation/wowpay/pkg"
	"github.com/tjstebbing/conductor"
)

func StartServices(cond *conductor.Conductor, bus wow.MessageBus, conf wow.Config, store wow.Store, node NodeProbe, tracker *wow.AvailabilityTracker) {
	// InvoiceStamper evaluates invoice status and sends INV_STATUS_CHANGED events.
	stamper := NewInvoiceStamper(store, bus)
	bus.Register(stamper, wow.EVENT_INV("INV"))
	cond.Service("InvoiceStamper", stamper)

	// HealthProbe drives the availability tracker.
	probe := NewHealthProbe(conf.WowPay.CryptoCode, node, tracker, conf.WowPay.HealthInterval)
	cond.Service("HealthProbe", probe)
}
