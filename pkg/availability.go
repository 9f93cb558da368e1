package wow

import (
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// AvailabilitySummary is the last observed reachability of one currency's backends.
type AvailabilitySummary struct {
	CryptoCode      string    `json:"crypto_code"`
	DaemonAvailable bool      `json:"daemon_available"`
	WalletAvailable bool      `json:"wallet_available"`
	Synced          bool      `json:"synced"`
	CurrentHeight   int64     `json:"current_height"`
	TargetHeight    int64     `json:"target_height"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (s AvailabilitySummary) Available() bool {
	return s.DaemonAvailable && s.WalletAvailable
}

// AvailabilityListener is called on every availability transition.
type AvailabilityListener func(cryptoCode string, available bool)

// AvailabilityTracker holds per-currency summaries. Readers get a
// lock-free snapshot; Update copies the map and swaps it in.
type AvailabilityTracker struct {
	bus       EventSender
	summaries atomic.Pointer[map[string]AvailabilitySummary]
	lock      sync.Mutex // serialises writers
	listeners []AvailabilityListener
}

func NewAvailabilityTracker(bus EventSender) *AvailabilityTracker {
	t := &AvailabilityTracker{bus: bus}
	empty := map[string]AvailabilitySummary{}
	t.summaries.Store(&empty)
	return t
}

// Subscribe registers fn to be called on each transition.
// Must be called before the first Update.
func (t *AvailabilityTracker) Subscribe(fn AvailabilityListener) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Update records a probe result. It returns true and notifies the bus and
// subscribers only when the currency's availability flips. A currency that
// has never been observed counts as unavailable.
func (t *AvailabilityTracker) Update(s AvailabilitySummary) bool {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	t.lock.Lock()
	old := *t.summaries.Load()
	prev := old[s.CryptoCode]
	next := make(map[string]AvailabilitySummary, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[s.CryptoCode] = s
	t.summaries.Store(&next)
	listeners := t.listeners
	t.lock.Unlock()

	if prev.Available() == s.Available() {
		return false
	}
	log.Printf("AvailabilityTracker: %s available=%v (daemon=%v wallet=%v)\n",
		s.CryptoCode, s.Available(), s.DaemonAvailable, s.WalletAvailable)
	if t.bus != nil {
		err := t.bus.Send(NET_AVAILABILITY_CHANGED, AvailabilityMessage{CryptoCode: s.CryptoCode, Available: s.Available()})
		if err != nil {
			log.Println("AvailabilityTracker: bus error:", err)
		}
	}
	for _, fn := range listeners {
		fn(s.CryptoCode, s.Available())
	}
	return true
}

func (t *AvailabilityTracker) IsAvailable(cryptoCode string) bool {
	s, ok := (*t.summaries.Load())[cryptoCode]
	return ok && s.Available()
}

func (t *AvailabilityTracker) Summary(cryptoCode string) (AvailabilitySummary, bool) {
	s, ok := (*t.summaries.Load())[cryptoCode]
	return s, ok
}

// Summaries returns every tracked summary ordered by crypto code.
func (t *AvailabilityTracker) Summaries() []AvailabilitySummary {
	m := *t.summaries.Load()
	out := make([]AvailabilitySummary, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CryptoCode < out[j].CryptoCode })
	return out
}

// AllAvailable is true when every tracked currency's wallet is reachable.
func (t *AvailabilityTracker) AllAvailable() bool {
	for _, s := range *t.summaries.Load() {
		if !s.WalletAvailable {
			return false
		}
	}
	return true
}
