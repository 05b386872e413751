// cmd/demo is protocore's top-level wiring entry point: it constructs a
// SystemConfig, a shared clock and logger, a run-loop, an upstream MQTT
// client and RPC root, a downstream bridge, and a BTLE central connection
// pool, and registers each as a run-loop periodic entry — the same
// construct-then-register-with-runloop sequencing the teacher's own
// main.go uses for its HAL/power wiring.
package main

import (
	"github.com/jangala-dev/protocore/btle/central"
	"github.com/jangala-dev/protocore/config"
	"github.com/jangala-dev/protocore/logx"
	"github.com/jangala-dev/protocore/mqtt/client"
	"github.com/jangala-dev/protocore/mqtt/rpc"
	"github.com/jangala-dev/protocore/runloop"
)

var _ central.Backend = (*bgapiBackend)(nil)

const (
	threadIO runloop.ThreadID = iota
	threadBTLE
)

func main() {
	cfg := config.Default()
	cfg.MQTT.ClientID = "protocore-demo"
	cfg.Runloop.IOThread = threadIO
	cfg.Runloop.BTLEThread = threadBTLE

	clock := newWallClock()
	log := logx.New("demo", cfg.LogLevel, logx.StdSink{})
	rl := runloop.New()

	// Constructed for parity with the capability surface spec.md §6 names;
	// no device driver in this module's scope consumes I²C yet.
	_ = defaultI2CBus()

	upstream := client.New(newLoopbackStream(), clock, log)
	root := rpc.NewRoot(upstream, cfg.RPC.RootPrefix, cfg.RPC.GatewayName, log)

	bridge, ok := rpc.NewBridge(&root.Node, "bridge", newLoopbackStream(), clock)
	if !ok {
		log.Error("failed to construct downstream bridge")
		return
	}
	bridge.EntryTTL = cfg.RPC.BridgeEntryTTLMs
	bridge.SetAuthenticationCb(func(clientID, username, password string) (string, bool) {
		return clientID, true
	})

	backend := newBGAPIBackend(defaultBGAPIStream(), clock, log)
	pool := central.New(backend, clock, log, cfg.BTLE.PoolSize)

	keepAliveMs := uint64(cfg.MQTT.KeepAliveS) * 1000
	var lastPingMs uint64
	rl.AddEntry(cfg.Runloop.IOThread, func() {
		opts := client.Options{
			ClientID:     cfg.MQTT.ClientID,
			CleanSession: true,
			KeepAliveSec: cfg.MQTT.KeepAliveS,
			Username:     cfg.MQTT.Username,
			Password:     cfg.MQTT.Password,
		}
		_ = upstream.Connect(opts, func(accepted bool) {
			if !accepted {
				log.Warn("upstream MQTT CONNECT refused")
			}
		})
	}, func() {
		upstream.Update()
		bridge.Update()
		// mqtt/client.Client leaves keep-alive pacing to its caller; this
		// is that caller.
		if keepAliveMs > 0 && clock.NowMs()-lastPingMs >= keepAliveMs {
			lastPingMs = clock.NowMs()
			upstream.Ping()
		}
	})
	rl.AddEntry(cfg.Runloop.BTLEThread, func() {
		pool.StartScan(cfg.BTLE.ScanActive)
	}, backend.Update)

	for {
		rl.Iterate(cfg.Runloop.IOThread)
		rl.Iterate(cfg.Runloop.BTLEThread)
	}
}
