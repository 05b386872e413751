//go:build !rp2040 && !rp2350

package main

import "github.com/jangala-dev/protocore/capability"

// defaultBGAPIStream stands in for the radio UART on a development host
// without real silicon, mirroring factories_host.go's host-side doubles.
func defaultBGAPIStream() capability.ByteStream { return newLoopbackStream() }
