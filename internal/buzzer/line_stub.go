//go:build !linux || (!arm && !arm64)

package buzzer

import "fmt"

// Stub implementation for non-Linux and/or non-ARM platforms.
func openLine(chip string, line int) (outputLine, error) {
	return nil, fmt.Errorf("buzzer: gpio unsupported on this platform")
}
