package receivers

import (
	wow "github.com/dogecoinfoundation/wowpay/pkg"
	"github.com/tjstebbing/conductor"
)

// Sets up standard receivers.
func SetUpReceivers(cond *conductor.Conductor, bus wow.MessageBus, conf wow.Config) {
	// Set up configured loggers
	SetupLoggers(cond, bus, conf)

	// Set up configured Callbacks
	SetupCallbacks(cond, bus, conf)

	// Set up MQTT and AMQP publishers
	SetupMQTTs(cond, bus, conf)
	SetupAMQP(cond, bus, conf)
}
