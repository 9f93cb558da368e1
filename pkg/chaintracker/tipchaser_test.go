package chaintracker

import (
	"context"
	"testing"
	"time"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
)

type fakeNode struct {
	hash string
}

func (n *fakeNode) GetLastBlockHeader(ctx context.Context) (wow.BlockHeader, error) {
	return wow.BlockHeader{Hash: n.hash, Height: 10}, nil
}

func startChaser(t *testing.T, tc *TipChaser) func() {
	t.Helper()
	started, stopped := make(chan bool, 1), make(chan bool)
	stop := make(chan context.Context, 1)
	if err := tc.Run(started, stopped, stop); err != nil {
		t.Fatalf("Run: %v", err)
	}
	<-started
	return func() {
		stop <- context.Background()
		<-stopped
	}
}

func recv(t *testing.T, ch <-chan wow.NodeEvent) wow.NodeEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return wow.NodeEvent{}
}

func TestTipChaserDeduplicatesBlocks(t *testing.T) {
	tc := NewTipChaser("WOW", &fakeNode{}, time.Hour)
	out := make(chan wow.NodeEvent, 10)
	tc.Subscribe(out)
	done := startChaser(t, tc)
	defer done()

	tc.ReceiveFromCore <- wow.NewBlockEvent("WOW", "a")
	tc.ReceiveFromCore <- wow.NewBlockEvent("WOW", "a")
	tc.ReceiveFromCore <- wow.NewTxEvent("WOW", "tx1")
	tc.ReceiveFromCore <- wow.NewBlockEvent("WOW", "b")

	if e := recv(t, out); e.Type != wow.Block || e.ID != "a" {
		t.Errorf("unexpected first event %+v", e)
	}
	if e := recv(t, out); e.Type != wow.TX || e.ID != "tx1" {
		t.Errorf("unexpected second event %+v", e)
	}
	if e := recv(t, out); e.Type != wow.Block || e.ID != "b" {
		t.Errorf("unexpected third event %+v", e)
	}
}

func TestTipChaserPollsWhenQuiet(t *testing.T) {
	tc := NewTipChaser("WOW", &fakeNode{hash: "polled"}, 20*time.Millisecond)
	out := make(chan wow.NodeEvent, 10)
	tc.Subscribe(out)
	done := startChaser(t, tc)
	defer done()

	e := recv(t, out)
	if e.Type != wow.Block || e.ID != "polled" || e.CryptoCode != "WOW" {
		t.Fatalf("unexpected polled event %+v", e)
	}
	// the same tip is not announced twice
	select {
	case e := <-out:
		t.Fatalf("unexpected repeat event %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}
