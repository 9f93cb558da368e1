package receivers

import (
	"context"
	"encoding/json"
	"fmt"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
	"github.com/tjstebbing/conductor"
	"github.com/yosssi/gmq/mqtt"
	"github.com/yosssi/gmq/mqtt/client"
)

func NewMQTTSender(config wow.MQTTConfig, bus wow.EventSender) MQTTSender {
	return MQTTSender{
		make(chan wow.Message, 1000),
		config,
		bus,
	}
}

type MQTTSender struct {
	// incomming msgs
	Rec    chan wow.Message
	Config wow.MQTTConfig
	Bus    wow.EventSender
}

// Implements wow.MessageSubscriber
func (s MQTTSender) GetChan() chan wow.Message {
	return s.Rec
}

// Implements conductor.Service
func (s MQTTSender) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		cli := client.New(&client.Options{
			// Define the processing of the error handler.
			ErrorHandler: func(err error) {
				s.Bus.Send(wow.SYS_ERR, fmt.Sprintf("MQTTSender: %s", err))
			},
		})
		defer cli.Terminate()

		// connect to MQTT Bus
		err := cli.Connect(&client.ConnectOptions{
			Network:  "tcp",
			Address:  s.Config.Address,
			ClientID: []byte(s.Config.ClientID),
			UserName: []byte(s.Config.Username),
			Password: []byte(s.Config.Password),
		})
		if err != nil {
			s.Bus.Send(wow.SYS_ERR, fmt.Sprintf("MQTTSender connection failure %s", err))
			close(stopped)
			return
		}

		// Successfully started up
		started <- true

		for {
			select {
			// handle stopping the service
			case <-stop:
				cli.Disconnect()
				close(stopped)
				return
			case msg, ok := <-s.Rec:
				if !ok {
					<-stop
					cli.Disconnect()
					close(stopped)
					return
				}
				jsonMsg, err := json.Marshal(msg)
				if err != nil {
					s.Bus.Send(wow.SYS_ERR, fmt.Sprintf("MQTTSender failed to marshall msg: %v", msg.ID))
					continue
				}
				for _, topic := range mqttTopicsFor(s.Config, msg.EventType) {
					err = cli.Publish(&client.PublishOptions{
						QoS:       mqtt.QoS0,
						TopicName: []byte(topic),
						Message:   jsonMsg,
					})
					if err != nil {
						s.Bus.Send(wow.SYS_ERR, fmt.Sprintf("MQTTSender: %s: %v", topic, err))
					}
				}
			}
		}
	}()
	return nil
}

// mqttTopicsFor lists the queues that take messages of type t.
// SYS messages are never published, to avoid loops on error.
func mqttTopicsFor(conf wow.MQTTConfig, t wow.EventType) []string {
	if t.Type() == "SYS" {
		return nil
	}
	var topics []string
	for _, queue := range conf.Queues {
		for _, name := range queue.Types {
			if name == "ALL" || name == t.Type() {
				topics = append(topics, queue.TopicFilter)
				break
			}
		}
	}
	return topics
}

func SetupMQTTs(cond *conductor.Conductor, bus wow.MessageBus, conf wow.Config) {
	if conf.MQTT.Address != "" {
		s := NewMQTTSender(conf.MQTT, bus)
		cond.Service("MQTT sender", s)
		// Sub to 'ALL' because we're filtering on our side
		bus.Register(s, wow.EVENT_ALL("ALL"))
	}
}
