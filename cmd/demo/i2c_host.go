//go:build !rp2040 && !rp2350

package main

import (
	"sync"

	"tinygo.org/x/drivers"
)

// hostI2C is an inert tinygo.org/x/drivers.I2C double for running the demo
// on a development host without real silicon, mirroring
// services/hal/internal/platform/factories_host.go's HostI2C.
type hostI2C struct {
	mu     sync.Mutex
	lastTx struct {
		addr uint16
		w    []byte
		rn   int
	}
}

func (h *hostI2C) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTx.addr = addr
	h.lastTx.w = append([]byte(nil), w...)
	h.lastTx.rn = len(r)
	return nil
}

var _ drivers.I2C = (*hostI2C)(nil)

// defaultI2CBus creates an inert host I²C double, mirroring
// factories_host.go's DefaultI2CFactory.
func defaultI2CBus() *i2cBusAdaptor { return newI2CBus(&hostI2C{}) }
