package chaintracker

import (
	"context"
	"log"
	"time"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
)

// BlockSource is the daemon call the TipChaser falls back to.
type BlockSource interface {
	GetLastBlockHeader(ctx context.Context) (wow.BlockHeader, error)
}

type TipSubscription struct {
	channel  chan<- wow.NodeEvent
	blocking bool
}

/*
 * TipChaser tracks the current Best Block (tip) of the chain.
 * It receives NodeEvents from the ZMQ receiver and the daemon callbacks,
 * forwards TX events unchanged, and forwards Block events only when the
 * tip hash changes. If no block arrives within the poll interval it
 * asks the daemon for the last block header instead.
 */
type TipChaser struct {
	cryptoCode      string
	node            BlockSource
	interval        time.Duration
	ReceiveFromCore chan wow.NodeEvent
	listeners       []TipSubscription
}

// interface guard ensures TipChaser is a NodeEmitter
var _ wow.NodeEmitter = &TipChaser{}

func NewTipChaser(cryptoCode string, node BlockSource, interval time.Duration) *TipChaser {
	return &TipChaser{
		cryptoCode:      cryptoCode,
		node:            node,
		interval:        interval,
		ReceiveFromCore: make(chan wow.NodeEvent, 1000),
	}
}

// Subscribe delivers events to ch, blocking until ch accepts them.
func (c *TipChaser) Subscribe(ch chan<- wow.NodeEvent) {
	c.listeners = append(c.listeners, TipSubscription{ch, true})
}

// SubscribeNonBlocking delivers events to ch, dropping them when ch is full.
func (c *TipChaser) SubscribeNonBlocking(ch chan<- wow.NodeEvent) {
	c.listeners = append(c.listeners, TipSubscription{ch, false})
}

func (c *TipChaser) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		started <- true
		var lastid string
		timer := time.NewTimer(c.interval)
		defer timer.Stop()
		for {
			select {
			case <-stop:
				close(stopped)
				return
			case e := <-c.ReceiveFromCore:
				switch e.Type {
				case wow.Block:
					if e.ID != "" && e.ID != lastid {
						lastid = e.ID
						c.sendEvent(e)
					}
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(c.interval)
				default:
					c.sendEvent(e)
				}
			case <-timer.C:
				log.Println("TipChaser: falling back to get_last_block_header")
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				header, err := c.node.GetLastBlockHeader(ctx)
				cancel()
				if err != nil {
					log.Println("TipChaser: daemon RPC request failed: get_last_block_header:", err)
				} else if header.Hash != "" && header.Hash != lastid {
					lastid = header.Hash
					c.sendEvent(wow.NewBlockEvent(c.cryptoCode, header.Hash))
				}
				timer.Reset(c.interval)
			}
		}
	}()

	return nil
}

func (c *TipChaser) sendEvent(e wow.NodeEvent) {
	if e.Type == wow.Block {
		log.Println("TipChaser: discovered new best block:", e.ID)
	}
	for _, ch := range c.listeners {
		if ch.blocking {
			ch.channel <- e
		} else {
			// non-blocking send.
			select {
			case ch.channel <- e:
			default:
			}
		}
	}
}
