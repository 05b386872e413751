package main

import (
	"context"

	"github.com/jangala-dev/protocore/capability"
	"tinygo.org/x/drivers"
)

// i2cBusAdaptor wraps a drivers.I2C (synchronous, blocking) as protocore's
// capability.I2cBus (async, callback-completed): since the demo has no real
// bus latency on a host double, the callback fires before ReadBytes/
// WriteBytes returns, which still satisfies I2cBus's "returns immediately;
// completion signalled via cb" contract (spec.md §6) — the callback simply
// runs synchronously instead of being scheduled.
type i2cBusAdaptor struct{ bus drivers.I2C }

func newI2CBus(bus drivers.I2C) *i2cBusAdaptor { return &i2cBusAdaptor{bus: bus} }

func (a *i2cBusAdaptor) ReadBytes(ctx context.Context, addr uint8, sendStop bool, n int, cb capability.I2cBusCallback) {
	buf := make([]byte, n)
	err := a.bus.Tx(uint16(addr), nil, buf)
	cb(err == nil, buf)
}

func (a *i2cBusAdaptor) ReadBytesWithControl(ctx context.Context, addr uint8, ctrlBytes []byte, n int, cb capability.I2cBusCallback) {
	buf := make([]byte, n)
	err := a.bus.Tx(uint16(addr), ctrlBytes, buf)
	cb(err == nil, buf)
}

func (a *i2cBusAdaptor) WriteBytes(ctx context.Context, addr uint8, sendStop bool, data []byte, cb capability.I2cBusCallback) {
	err := a.bus.Tx(uint16(addr), data, nil)
	cb(err == nil, nil)
}

func (a *i2cBusAdaptor) ResetBus() {}

var _ capability.I2cBus = (*i2cBusAdaptor)(nil)
