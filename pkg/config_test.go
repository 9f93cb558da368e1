package wow

import (
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.Defaults()
	if c.WowPay.CryptoCode != "WOW" || c.WowPay.Network != "mainnet" {
		t.Fatalf("unexpected defaults %+v", c.WowPay)
	}
	if c.WowPay.ListenerQueue != 1000 || c.WowPay.HealthInterval != 30*time.Second {
		t.Fatalf("unexpected defaults %+v", c.WowPay)
	}
	if c.WebAPI.Port != "8080" || c.Store.DBFile != "wowpay.db" {
		t.Fatalf("unexpected defaults %+v %+v", c.WebAPI, c.Store)
	}
}

func TestConfigValidate(t *testing.T) {
	var c Config
	c.Defaults()
	if err := c.Validate(); !IsError(err, MalformedConfig) {
		t.Fatalf("missing node section: %v", err)
	}
	c.Wownero = map[string]NodeConfig{"mainnet": {DaemonURI: "http://localhost:34568"}}
	if err := c.Validate(); !IsError(err, MalformedConfig) {
		t.Fatalf("missing wallet uri: %v", err)
	}
	c.Wownero["mainnet"] = NodeConfig{DaemonURI: "http://localhost:34568", WalletDaemonURI: "localhost"}
	if err := c.Validate(); !IsError(err, MalformedConfig) {
		t.Fatalf("bad wallet uri: %v", err)
	}
	c.Wownero["mainnet"] = NodeConfig{DaemonURI: "http://localhost:34568", WalletDaemonURI: "http://localhost:34570"}
	if err := c.Validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}
}
