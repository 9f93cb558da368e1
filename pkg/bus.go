package wow

/*
The message subsystem exists to allow event-based access to
the listener's results, for integration purposes.

A simple internal 'message bus' is passed around internally as a
singleton, with an internal goroutine and a 'send' method for sending
'messages'.

outbound destinations are created in config, which result in these
messages being routed to various external services, ie: MQTT, AMQP,
HTTP callbacks, log-files, etc. These are managed by MessageSubscribers:

MessageSubscribers are registered with the bus and are subscribed via
their own channels along with a list of EventTypes they want to subscribe
to.
*/

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"sync"
)

// EventSender is the publishing half of the bus, used by anything
// that raises notifications (listener, availability tracker).
type EventSender interface {
	Send(t EventType, msg any, msgID ...string) error
}

// interface guard ensures MessageBus implements EventSender
var _ EventSender = MessageBus{}

// MessageSubscribers are things that subscribe to the bus and handle
// messages, ie: MQTT, AMQP, http callbacks etc.
type MessageSubscriber interface {
	GetChan() chan Message
}

// Created by the bus, wraps message sent with Send
type Message struct {
	EventType EventType
	Message   []byte
	ID        string // optional
}

// MarshalJSON flattens the EventType into "INV:PAYMENT_RECEIVED"
// and embeds the payload as raw JSON.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string          `json:"type"`
		ID      string          `json:"id"`
		Message json.RawMessage `json:"message"`
	}{
		Type:    m.EventType.Type() + ":" + eventName(m.EventType),
		ID:      m.ID,
		Message: json.RawMessage(m.Message),
	})
}

type Subscription struct {
	dest  MessageSubscriber
	types []EventType
}

func (s *Subscription) wants(t EventType) bool {
	for _, st := range s.types {
		if st.Type() == "ALL" || st.Type() == t.Type() {
			return true
		}
	}
	return false
}

func NewMessageBus() MessageBus {
	return MessageBus{
		lock:      &sync.Mutex{},
		receivers: make(map[*Subscription]bool),
		inbound:   make(chan Message, 100),
	}
}

type MessageBus struct {
	lock *sync.Mutex

	// Registered MessageSubscribers.
	receivers map[*Subscription]bool

	// Messages from Send(), destinated for MessageSubscribers
	inbound chan Message
}

// Send a message to the bus with a specific EventType
// msg can be anything JSON serialisable, this will be
// turned into a Message and delivered to any interested MessageSubscribers
func (b MessageBus) Send(t EventType, msg any, msgID ...string) error {
	j, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if len(msgID) == 0 {
		b.inbound <- Message{t, j, generateID()}
	} else {
		b.inbound <- Message{t, j, msgID[0]}
	}
	return nil
}

func (b MessageBus) Register(m MessageSubscriber, types ...EventType) *Subscription {
	sub := &Subscription{m, types}
	b.lock.Lock()
	b.receivers[sub] = true
	b.lock.Unlock()
	return sub
}

func (b MessageBus) Unregister(sub *Subscription) {
	b.lock.Lock()
	_, found := b.receivers[sub]
	delete(b.receivers, sub)
	b.lock.Unlock()
	if found {
		close(sub.dest.GetChan())
	}
}

func (b MessageBus) deliver(message Message) {
	b.lock.Lock()
	subs := make([]*Subscription, 0, len(b.receivers))
	for sub := range b.receivers {
		if sub.wants(message.EventType) {
			subs = append(subs, sub)
		}
	}
	b.lock.Unlock()

	for _, sub := range subs {
		select {
		case sub.dest.GetChan() <- message:
		default:
			// if we are unable to send, cancel the sub
			log.Printf("MessageBus: receiver failed to handle %s msg, closing\n", message.EventType.Type())
			b.Unregister(sub)
		}
	}
}

// Implements conductor Service
func (b MessageBus) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		started <- true
		for {
			select {
			case <-stop:
				stopped <- true
				return
			case message := <-b.inbound:
				b.deliver(message)
			}
		}
	}()
	return nil
}

func eventName(t EventType) string {
	switch v := t.(type) {
	case EVENT_SYS:
		return string(v)
	case EVENT_NET:
		return string(v)
	case EVENT_INV:
		return string(v)
	case EVENT_ALL:
		return string(v)
	}
	return ""
}

// create a short random ID for msgs that have none
func generateID() string {
	bytes := make([]byte, 4)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)[:8]
}
