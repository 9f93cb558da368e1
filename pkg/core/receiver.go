package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"syscall"
	"time"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
	"github.com/pebbe/zmq4"
)

// interface guard ensures ZMQReceiver implements wow.NodeEmitter
var _ wow.NodeEmitter = &ZMQReceiver{}

const (
	topicChainMain = "json-minimal-chain_main"
	topicTxPoolAdd = "json-minimal-txpool_add"
)

// ZMQReceiver receives ZMQ pub messages from wownerod (--zmq-pub).
// CAUTION: the protocol is not authenticated!
// CAUTION: subscribers MUST treat these as hints and re-query the wallet.
type ZMQReceiver struct {
	bus         wow.EventSender
	cryptoCode  string
	listeners   []chan<- wow.NodeEvent
	nodeAddress string
}

func (z *ZMQReceiver) Subscribe(ch chan<- wow.NodeEvent) {
	z.listeners = append(z.listeners, ch)
}

func NewZMQReceiver(bus wow.EventSender, cryptoCode string, node wow.NodeConfig) (*ZMQReceiver, error) {
	if node.ZMQAddress == "" {
		return nil, wow.NewErr(wow.MalformedConfig, "%s: zmqaddress is not configured", cryptoCode)
	}
	return &ZMQReceiver{
		bus:         bus,
		cryptoCode:  cryptoCode,
		listeners:   make([]chan<- wow.NodeEvent, 0, 10),
		nodeAddress: node.ZMQAddress,
	}, nil
}

func (z *ZMQReceiver) Run(started, stopped chan bool, stop chan context.Context) error {
	z.bus.Send(wow.SYS_STARTUP, fmt.Sprintf("ZMQ: connecting to: %s", z.nodeAddress))
	sock, err := openSubscriber(z.nodeAddress)
	if err != nil {
		return err
	}
	go func() {
		started <- true

		for {
			// Handle shutdown
			select {
			case <-stop:
				sock.Close()
				close(stopped)
				return
			default:
				// fall through to zmq recv
			}

			msg, err := sock.RecvMessageBytes(0)
			if err != nil {
				switch err := err.(type) {
				case zmq4.Errno:
					if err == zmq4.Errno(syscall.ETIMEDOUT) || err == zmq4.Errno(syscall.EAGAIN) {
						continue // timeouts let us check for shutdown
					}
					z.bus.Send(wow.SYS_ERR, fmt.Sprintf("ZMQ err: %s", err))
					continue
				default:
					log.Println("ZMQ: receive error:", err)
					continue
				}
			}
			for _, frame := range msg {
				z.handleFrame(frame)
			}
		}
	}()
	return nil
}

// openSubscriber connects a SUB socket to address and subscribes to the
// chain and txpool topics. The socket is closed if any step fails.
func openSubscriber(address string) (*zmq4.Socket, error) {
	sock, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, err
	}
	if err := sock.SetRcvtimeo(2 * time.Second); err != nil {
		sock.Close()
		return nil, err
	}
	if err := sock.Connect(address); err != nil {
		sock.Close()
		return nil, err
	}
	if err := subscribeAll(sock, topicChainMain, topicTxPoolAdd); err != nil {
		sock.Close()
		return nil, err
	}
	return sock, nil
}

// handleFrame parses one "<topic>:<json>" frame.
func (z *ZMQReceiver) handleFrame(frame []byte) {
	events, err := parseFrame(z.cryptoCode, frame)
	if err != nil {
		log.Println("ZMQ:", err)
		return
	}
	for _, e := range events {
		z.notify(e)
	}
}

func parseFrame(cryptoCode string, frame []byte) ([]wow.NodeEvent, error) {
	sep := bytes.IndexByte(frame, ':')
	if sep < 0 {
		return nil, fmt.Errorf("frame without topic: %.40q", frame)
	}
	topic, body := string(frame[:sep]), frame[sep+1:]
	switch topic {
	case topicChainMain:
		var chain struct {
			FirstHeight int64    `json:"first_height"`
			IDs         []string `json:"ids"`
		}
		if err := json.Unmarshal(body, &chain); err != nil {
			return nil, fmt.Errorf("%s: %v", topic, err)
		}
		if len(chain.IDs) == 0 {
			return nil, nil
		}
		// only the new tip matters, the listener rescans everything.
		return []wow.NodeEvent{wow.NewBlockEvent(cryptoCode, chain.IDs[len(chain.IDs)-1])}, nil
	case topicTxPoolAdd:
		var txs []struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &txs); err != nil {
			return nil, fmt.Errorf("%s: %v", topic, err)
		}
		events := make([]wow.NodeEvent, 0, len(txs))
		for _, tx := range txs {
			if tx.ID != "" {
				events = append(events, wow.NewTxEvent(cryptoCode, tx.ID))
			}
		}
		return events, nil
	default:
		return nil, fmt.Errorf("unexpected topic %q", topic)
	}
}

func (z *ZMQReceiver) notify(e wow.NodeEvent) {
	for _, ch := range z.listeners {
		ch <- e
	}
}

func subscribeAll(sock *zmq4.Socket, topics ...string) error {
	for _, topic := range topics {
		err := sock.SetSubscribe(topic)
		if err != nil {
			return err
		}
	}
	return nil
}
