// Package config holds the process-wide configuration constructed once at
// program start and threaded through to the subsystems that need it,
// mirroring the Design Notes' "explicit system context" guidance rather
// than reaching for package-level globals.
//
// Grounded on the teacher's types/config.go and services/hal/config/config.go
// (plain struct + JSON tags, one constant block per concern) and
// services/config/config.go's "constructed once, Start()-driven" shape.
package config

import (
	"encoding/json"

	"github.com/jangala-dev/protocore/errcode"
	"github.com/jangala-dev/protocore/logx"
	"github.com/jangala-dev/protocore/runloop"
)

// Default tuning values, named the way the teacher's defaultconfigs.go
// names its embedded-config constants.
const (
	DefaultMQTTKeepAliveS   = 60
	DefaultBTLEPoolSize     = 2 // matches cxa_siLabsBgApi_btle_central.h's MAXNUM_CONNS
	DefaultScanIntervalMs   = 100
	DefaultScanWindowMs     = 50
	DefaultRPCRootPrefix    = "gw"
	DefaultGatewayName      = "gateway"
	DefaultLogLevel         = logx.LevelInfo
	DefaultBridgeEntryTTLMs = 0 // disabled
)

// MQTTConfig holds the credentials and session parameters used to open
// the upstream MQTT connection (spec.md §4.5/§6).
type MQTTConfig struct {
	ClientID   string `json:"client_id"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	KeepAliveS uint16 `json:"keep_alive_s"`
}

// RPCConfig holds the rpc.Root wiring parameters (spec.md §4.6/§4.7).
type RPCConfig struct {
	RootPrefix       string `json:"root_prefix"`
	GatewayName      string `json:"gateway_name"`
	BridgeEntryTTLMs uint64 `json:"bridge_entry_ttl_ms"`
}

// BTLEConfig holds the central connection-pool sizing and default scan
// parameters (spec.md §4.8).
type BTLEConfig struct {
	PoolSize       int    `json:"pool_size"`
	ScanActive     bool   `json:"scan_active"`
	ScanIntervalMs uint16 `json:"scan_interval_ms"`
	ScanWindowMs   uint16 `json:"scan_window_ms"`
}

// RunloopConfig names the run-loop thread ids this process registers
// entries on; kept as a config (rather than hard-coded constants) so a
// deployment can separate, say, the parser-driving thread from the BTLE
// backend-polling thread without a code change.
type RunloopConfig struct {
	IOThread   runloop.ThreadID `json:"io_thread"`
	BTLEThread runloop.ThreadID `json:"btle_thread"`
}

// SystemConfig is the top-level process configuration, constructed once
// in main and passed down to each subsystem's constructor.
type SystemConfig struct {
	MQTT     MQTTConfig    `json:"mqtt"`
	RPC      RPCConfig     `json:"rpc"`
	BTLE     BTLEConfig    `json:"btle"`
	Runloop  RunloopConfig `json:"runloop"`
	LogLevel logx.Level    `json:"-"`
}

// Default returns a SystemConfig populated with the module's defaults;
// callers override individual fields (or decode over it via Decode) before
// passing it to the subsystem constructors.
func Default() SystemConfig {
	return SystemConfig{
		MQTT: MQTTConfig{
			KeepAliveS: DefaultMQTTKeepAliveS,
		},
		RPC: RPCConfig{
			RootPrefix:       DefaultRPCRootPrefix,
			GatewayName:      DefaultGatewayName,
			BridgeEntryTTLMs: DefaultBridgeEntryTTLMs,
		},
		BTLE: BTLEConfig{
			PoolSize:       DefaultBTLEPoolSize,
			ScanIntervalMs: DefaultScanIntervalMs,
			ScanWindowMs:   DefaultScanWindowMs,
		},
		LogLevel: DefaultLogLevel,
	}
}

// Decode overlays JSON-encoded overrides onto a copy of c, the way the
// teacher's config service overlays per-device embedded JSON onto defaults
// topic by topic. Unlike the teacher (which publishes each top-level key as
// its own retained bus message), protocore has no retained-message bus
// (spec.md §1 Non-goal), so the whole document is decoded in one step.
func (c SystemConfig) Decode(raw []byte) (SystemConfig, error) {
	out := c
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return c, errcode.Wrap(errcode.MalformedPacket, "config.Decode", err)
	}
	return out, nil
}

// Validate reports the first configuration error found, using the same
// error kinds the rest of the module reports boundary violations with.
func (c SystemConfig) Validate() error {
	if c.MQTT.ClientID == "" {
		return errcode.InvalidParams
	}
	if c.RPC.RootPrefix == "" {
		return errcode.InvalidParams
	}
	if c.BTLE.PoolSize <= 0 {
		return errcode.InvalidParams
	}
	return nil
}
