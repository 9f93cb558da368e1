package wow

import "fmt"

type NodeEventType int

const (
	AvailabilityChanged NodeEventType = iota + 1
	Block
	TX
)

func (t NodeEventType) String() string {
	switch t {
	case AvailabilityChanged:
		return "AvailabilityChanged"
	case Block:
		return "Block"
	case TX:
		return "TX"
	}
	return fmt.Sprintf("NodeEventType(%d)", int(t))
}

// NodeEvent is what the listener consumes. Type selects which of the
// other fields are meaningful: ID is the block or tx hash for Block/TX,
// Available is only set for AvailabilityChanged.
type NodeEvent struct {
	Type       NodeEventType
	CryptoCode string
	ID         string
	Available  bool
}

func NewAvailabilityEvent(cryptoCode string, available bool) NodeEvent {
	return NodeEvent{Type: AvailabilityChanged, CryptoCode: cryptoCode, Available: available}
}

func NewBlockEvent(cryptoCode string, blockHash string) NodeEvent {
	return NodeEvent{Type: Block, CryptoCode: cryptoCode, ID: blockHash}
}

func NewTxEvent(cryptoCode string, txHash string) NodeEvent {
	return NodeEvent{Type: TX, CryptoCode: cryptoCode, ID: txHash}
}

// NodeEmitter is anything producing NodeEvents (ZMQ, TipChaser).
type NodeEmitter interface {
	Subscribe(ch chan<- NodeEvent)
}
