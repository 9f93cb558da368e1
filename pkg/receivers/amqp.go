package receivers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
	"github.com/rabbitmq/amqp091-go"
	"github.com/tjstebbing/conductor"
)

const defaultExchange = "wowpay_events"

// AMQPSender publishes bus messages to a durable topic exchange.
// The routing key is the event type in lower case, e.g. "inv.payment_received".
type AMQPSender struct {
	Rec      chan wow.Message
	Config   wow.AMQPConfig
	Bus      wow.EventSender
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

func NewAMQPSender(config wow.AMQPConfig, bus wow.EventSender) *AMQPSender {
	exchange := config.Exchange
	if exchange == "" {
		exchange = defaultExchange
	}
	return &AMQPSender{
		Rec:      make(chan wow.Message, 1000),
		Config:   config,
		Bus:      bus,
		exchange: exchange,
	}
}

// Implements wow.MessageSubscriber
func (s *AMQPSender) GetChan() chan wow.Message {
	return s.Rec
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// RoutingKey maps an event type to its topic routing key.
func RoutingKey(t wow.EventType) string {
	return strings.ToLower(t.Type() + "." + fmt.Sprint(t))
}

func (s *AMQPSender) connect() error {
	cleanURL, err := sanitizeAMQPURL(s.Config.URL)
	if err != nil {
		return err
	}
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(s.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return err
	}
	s.conn, s.channel = conn, ch
	return nil
}

func (s *AMQPSender) publish(ctx context.Context, msg wow.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	publishing := amqp091.Publishing{
		ContentType: "application/json",
		MessageId:   msg.ID,
		Timestamp:   time.Now(),
		Body:        body,
	}
	err = s.channel.PublishWithContext(ctx, s.exchange, RoutingKey(msg.EventType), false, false, publishing)
	if err == nil {
		return nil
	}
	log.Printf("AMQPSender: publish failed, reopening channel: %v\n", err)
	// One-shot retry on a fresh channel
	ch, chErr := s.conn.Channel()
	if chErr != nil {
		return chErr
	}
	s.channel.Close()
	s.channel = ch
	return s.channel.PublishWithContext(ctx, s.exchange, RoutingKey(msg.EventType), false, false, publishing)
}

func (s *AMQPSender) close() {
	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}

// Implements conductor.Service
func (s *AMQPSender) Run(started, stopped chan bool, stop chan context.Context) error {
	if err := s.connect(); err != nil {
		return fmt.Errorf("AMQPSender: %w", err)
	}
	go func() {
		started <- true
		defer s.close()
		for {
			select {
			case <-stop:
				close(stopped)
				return
			case msg, ok := <-s.Rec:
				if !ok {
					<-stop
					close(stopped)
					return
				}
				if msg.EventType.Type() == "SYS" {
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				err := s.publish(ctx, msg)
				cancel()
				if err != nil {
					s.Bus.Send(wow.SYS_ERR, fmt.Sprintf("AMQPSender: %s: %v", msg.ID, err))
				}
			}
		}
	}()
	return nil
}

func SetupAMQP(cond *conductor.Conductor, bus wow.MessageBus, conf wow.Config) {
	if conf.AMQP.URL == "" {
		return
	}
	s := NewAMQPSender(conf.AMQP, bus)
	cond.Service("AMQP sender", s)
	names := conf.AMQP.Types
	if len(names) == 0 {
		names = []string{"ALL"}
	}
	types, invalid := wow.EventTypesFromNames(names)
	for _, t := range invalid {
		fmt.Printf("⚠️  AMQP: ignoring invalid message type: %s\n", t)
	}
	bus.Register(s, types...)
}
