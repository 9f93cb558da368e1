package receivers

import (
	"context"
	"fmt"
	"io"
	"log"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
	"github.com/tjstebbing/conductor"
	"gopkg.in/natefinch/lumberjack.v2"
)

type MessageLogger struct {
	// MessageLogger receives wow.Message via Rec
	Rec chan wow.Message
	// and logs them via Log
	Log *log.Logger
}

// Implements wow.MessageSubscriber
func (l MessageLogger) GetChan() chan wow.Message {
	return l.Rec
}

// Implements conductor.Service
func (l MessageLogger) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		started <- true
		for {
			select {
			// handle stopping the service
			case <-stop:
				close(stopped)
				return
			case msg, ok := <-l.Rec:
				if !ok {
					<-stop
					close(stopped)
					return
				}
				l.Log.Printf("%s:%s (%s): %s\n",
					msg.EventType.Type(),
					msg.EventType,
					msg.ID,
					msg.Message)
			}
		}
	}()
	return nil
}

// NewMessageLogger writes to a rotating, compressed log file at path.
func NewMessageLogger(path string) MessageLogger {
	return newMessageLogger(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 10,
		Compress:   true,
	})
}

func newMessageLogger(w io.Writer) MessageLogger {
	return MessageLogger{
		make(chan wow.Message, 1000),
		log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
}

// Reads config and sets up any configured loggers
func SetupLoggers(cond *conductor.Conductor, bus wow.MessageBus, conf wow.Config) {
	for name, c := range conf.Loggers {
		l := NewMessageLogger(c.Path)
		cond.Service(fmt.Sprintf("Logger %s", c.Path), l)

		types, invalid := wow.EventTypesFromNames(c.Types)
		for _, t := range invalid {
			fmt.Printf("⚠️  Logger %s: ignoring invalid message type: %s\n", name, t)
		}
		bus.Register(l, types...)
	}
}
