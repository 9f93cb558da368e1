package services

import (
	"context"
	"log"
	"time"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
)

const PROBE_TIMEOUT = 10 * time.Second

// NodeProbe is the part of the RPC client the HealthProbe calls.
type NodeProbe interface {
	GetInfo(ctx context.Context) (wow.DaemonInfo, error)
	GetHeight(ctx context.Context) (int64, error)
}

// HealthProbe periodically checks the daemon and wallet and feeds the
// availability tracker, which raises events only on transitions.
type HealthProbe struct {
	cryptoCode string
	node       NodeProbe
	tracker    *wow.AvailabilityTracker
	interval   time.Duration
}

func NewHealthProbe(cryptoCode string, node NodeProbe, tracker *wow.AvailabilityTracker, interval time.Duration) HealthProbe {
	return HealthProbe{cryptoCode: cryptoCode, node: node, tracker: tracker, interval: interval}
}

// Implements conductor.Service
func (h HealthProbe) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		started <- true
		for {
			h.Probe(context.Background())
			select {
			case <-stop:
				close(stopped)
				return
			case <-time.After(h.interval):
			}
		}
	}()
	return nil
}

// Probe runs one check and reports it to the tracker.
func (h HealthProbe) Probe(ctx context.Context) wow.AvailabilitySummary {
	s := wow.AvailabilitySummary{CryptoCode: h.cryptoCode, UpdatedAt: time.Now()}

	dctx, cancel := context.WithTimeout(ctx, PROBE_TIMEOUT)
	info, err := h.node.GetInfo(dctx)
	cancel()
	if err != nil {
		log.Println("HealthProbe: daemon get_info:", err)
	} else {
		s.DaemonAvailable = info.Status == "" || info.Status == "OK"
		s.Synced = info.Synchronized
		s.TargetHeight = info.TargetHeight
	}

	wctx, cancel := context.WithTimeout(ctx, PROBE_TIMEOUT)
	height, err := h.node.GetHeight(wctx)
	cancel()
	if err != nil {
		log.Println("HealthProbe: wallet get_height:", err)
	} else {
		s.WalletAvailable = true
		s.CurrentHeight = height
	}

	h.tracker.Update(s)
	return s
}
