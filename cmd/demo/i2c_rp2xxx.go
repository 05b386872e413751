//go:build rp2040 || rp2350

package main

import "machine"

// defaultI2CBus configures i2c0 at 400 kHz on the board-default pins and
// wraps it as protocore's capability.I2cBus, mirroring
// services/hal/internal/platform/factories_rp2xxx.go's DefaultI2CFactory.
func defaultI2CBus() *i2cBusAdaptor {
	b := machine.I2C0
	_ = b.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	})
	return newI2CBus(b)
}
