//go:build !(rp2040 || rp2350)

package logx

import (
	"fmt"
	"os"
	"time"
)

// Sprintf delegates to fmt on hosts with a full standard library.
func Sprintf(format string, a ...any) string { return fmt.Sprintf(format, a...) }

// StdSink writes "LEVEL [name] msg" lines to stderr, timestamped.
type StdSink struct{}

func (StdSink) Write(level Level, name, msg string) {
	fmt.Fprintf(os.Stderr, "%s %-5s [%s] %s\n", time.Now().Format(time.RFC3339Nano), level, name, msg)
}
