package chaintracker

import (
	wow "github.com/dogecoinfoundation/wowpay/pkg"
	"github.com/tjstebbing/conductor"
)

// StartChainTracker puts a TipChaser between the node event sources and
// the listener queue, and registers it with the conductor.
func StartChainTracker(c *conductor.Conductor, conf wow.Config, node BlockSource, sink chan<- wow.NodeEvent, sources ...wow.NodeEmitter) *TipChaser {
	tc := NewTipChaser(conf.WowPay.CryptoCode, node, conf.WowPay.TipInterval)
	for _, src := range sources {
		src.Subscribe(tc.ReceiveFromCore)
	}
	tc.Subscribe(sink)
	c.Service("TipChaser", tc)
	return tc
}
