// Package capability declares the abstract collaborator interfaces the core
// consumes from platform/peripheral code (spec.md §1 "Out of scope", §6
// "Consumed capability interfaces"). protocore never imports a concrete
// GPIO, I2C or UART driver; it only imports these shapes, the same way the
// teacher repo's services/hal/types.go separates its Adaptor contracts from
// the concrete tinygo.org/x/drivers-backed implementations in
// services/hal/internal/platform.
package capability

import "context"

// ReadResult is the outcome of a non-blocking byte read.
type ReadResult uint8

const (
	NoData ReadResult = iota
	GotData
	ReadError
)

// ByteStream is a non-blocking byte source+sink (spec.md §6). ReadByte must
// never block: if nothing is available it returns NoData immediately.
// WriteBytes reports whether the transport accepted the write.
type ByteStream interface {
	ReadByte() (b byte, result ReadResult)
	WriteByte(b byte) bool
	WriteBytes(p []byte) bool
	IsBound() bool
}

// Direction and Polarity describe a GPIO line's configuration.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

type Polarity uint8

const (
	PolarityNormal Polarity = iota
	PolarityInverted
)

// GpioPort is the abstract single-pin GPIO capability (spec.md §6).
type GpioPort interface {
	SetDirection(d Direction)
	SetPolarity(p Polarity)
	SetValue(v bool)
	GetValue() bool
	Toggle()
}

// I2cBusCallback is invoked exactly once per request, on the calling thread
// (spec.md §6).
type I2cBusCallback func(ok bool, data []byte)

// I2cBus is the abstract async I²C capability (spec.md §6). Every method
// returns immediately; completion is signalled via cb.
type I2cBus interface {
	ReadBytes(ctx context.Context, addr uint8, sendStop bool, n int, cb I2cBusCallback)
	ReadBytesWithControl(ctx context.Context, addr uint8, ctrlBytes []byte, n int, cb I2cBusCallback)
	WriteBytes(ctx context.Context, addr uint8, sendStop bool, data []byte, cb I2cBusCallback)
	ResetBus()
}

// TimeBase is the abstract monotonic microsecond clock (spec.md §6).
// Wraparound is handled by difference arithmetic on the caller's side,
// since NowUs returns a uint64.
type TimeBase interface {
	NowUs() uint64
}

// ElapsedUs computes now-since, correctly handling a single uint64
// wraparound (spec.md §6 "wraparound handled by difference arithmetic").
func ElapsedUs(since, now uint64) uint64 {
	return now - since // unsigned subtraction wraps correctly
}

// EUI48 is a 48-bit IEEE identifier used as a BTLE device address
// (spec.md Glossary "EUI-48"), shared between the advertisement parser
// and the central connection pool.
type EUI48 [6]byte

func (a EUI48) Equal(b EUI48) bool { return a == b }
