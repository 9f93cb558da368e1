package main

import (
	"log"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
	"github.com/dogecoinfoundation/wowpay/pkg/chaintracker"
	"github.com/dogecoinfoundation/wowpay/pkg/core"
	"github.com/dogecoinfoundation/wowpay/pkg/listener"
	"github.com/dogecoinfoundation/wowpay/pkg/paymethod"
	"github.com/dogecoinfoundation/wowpay/pkg/receivers"
	"github.com/dogecoinfoundation/wowpay/pkg/services"
	"github.com/dogecoinfoundation/wowpay/pkg/store"
	"github.com/dogecoinfoundation/wowpay/pkg/webapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tjstebbing/conductor"
)

func Server(conf wow.Config) {

	c := conductor.NewConductor(
		conductor.HookSignals(),
		conductor.Noisy(),
	)

	// Start the MessageBus Service
	bus := wow.NewMessageBus()
	c.Service("MessageBus", bus)

	// Set up all configured receivers
	receivers.SetUpReceivers(c, bus, conf)

	// Setup a Store
	db, err := openStore(conf)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	// Set up the interface to wownerod and wownero-wallet-rpc
	node, err := conf.Node()
	if err != nil {
		panic(err)
	}
	rpc, err := core.NewWowneroRPC(node)
	if err != nil {
		panic(err)
	}
	tracker := wow.NewAvailabilityTracker(bus)

	// Payment prompts reserve sub-addresses for invoices
	prompts := paymethod.NewHandler(conf.WowPay.CryptoCode, db, rpc, tracker, bus)

	// Start the Listener
	reg := prometheus.NewRegistry()
	metrics := listener.NewMetrics()
	metrics.MustRegister(reg)
	l := listener.NewListener(conf.WowPay.CryptoCode, db, rpc, bus, tracker, prompts, metrics, conf.WowPay.ListenerQueue)
	c.Service("Listener", l)

	// Start the ZMQ receiver and the Chain Tracker
	var sources []wow.NodeEmitter
	if node.ZMQAddress != "" {
		corez, err := core.NewZMQReceiver(bus, conf.WowPay.CryptoCode, node)
		if err != nil {
			panic(err)
		}
		c.Service("ZMQ Listener", corez)
		sources = append(sources, corez)
	} else {
		log.Println("Server: no zmqaddress, relying on daemon callbacks and tip polling")
	}
	tc := chaintracker.StartChainTracker(c, conf, rpc, l.Chan(), sources...)

	// Start internal services
	services.StartServices(c, bus, conf, db, rpc, tracker)

	// Start the Payment API, daemon callbacks feed the TipChaser like ZMQ does
	p, err := webapi.NewWebAPI(conf, db, prompts, tracker, tc.ReceiveFromCore, reg)
	if err != nil {
		panic(err)
	}
	c.Service("Payment API", p)

	<-c.Start()
}

func openStore(conf wow.Config) (wow.Store, error) {
	if conf.Store.Postgres != "" {
		return store.NewPostgresStore(conf.Store.Postgres)
	}
	return store.NewSQLite(conf.Store.DBFile)
}
