//go:build rp2040 || rp2350

package logx

import "io"

// DefaultOutput is set by platform bootstrap (e.g. a UART ByteStream adapter).
var DefaultOutput io.Writer = discardWriter{}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Sprintf is a tiny, allocation-conscious formatter covering the verbs this
// package actually emits (%s, %d, %v, %q); it exists so constrained builds
// never link the reflection-heavy standard fmt package.
func Sprintf(format string, a ...any) string {
	out := make([]byte, 0, len(format)+16)
	ai := 0
	next := func() any {
		if ai < len(a) {
			v := a[ai]
			ai++
			return v
		}
		return nil
	}
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i == len(format)-1 {
			out = append(out, c)
			continue
		}
		i++
		switch format[i] {
		case 's':
			out = append(out, toString(next())...)
		case 'q':
			out = append(out, '"')
			out = append(out, toString(next())...)
			out = append(out, '"')
		case 'd', 'v':
			out = append(out, toString(next())...)
		case '%':
			out = append(out, '%')
		default:
			out = append(out, '%', format[i])
		}
	}
	return string(out)
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return x.Error()
	case nil:
		return "<nil>"
	default:
		return itoaFallback(x)
	}
}

// itoaFallback handles the integer/bool cases without strconv, keeping this
// file allocation-light on constrained builds.
func itoaFallback(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int:
		return itoa(int64(x))
	case int32:
		return itoa(int64(x))
	case int64:
		return itoa(x)
	case uint:
		return utoa(uint64(x))
	case uint32:
		return utoa(uint64(x))
	case uint64:
		return utoa(x)
	default:
		return "?"
	}
}

func itoa(n int64) string {
	if n < 0 {
		return "-" + utoa(uint64(-n))
	}
	return utoa(uint64(n))
}

func utoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

type stdSinkMCU struct{}

// StdSink on constrained builds writes to DefaultOutput instead of stderr.
type StdSink = stdSinkMCU

func (stdSinkMCU) Write(level Level, name, msg string) {
	line := Sprintf("%s [%s] %s\n", level.String(), name, msg)
	_, _ = DefaultOutput.Write([]byte(line))
}
