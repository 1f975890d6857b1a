//go:build linux && (arm || arm64)

package buzzer

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// openLine requests the sounder line as a digital output via the Linux GPIO
// character device (libgpiod).
func openLine(chip string, line int) (outputLine, error) {
	if chip == "" {
		chip = "gpiochip0"
	}
	if line < 0 {
		return nil, fmt.Errorf("buzzer: invalid gpio line %d", line)
	}
	l, err := gpiocdev.RequestLine(chip, line,
		gpiocdev.AsOutput(0), gpiocdev.WithConsumer("trafficwarn-buzzer"))
	if err != nil {
		return nil, fmt.Errorf("buzzer: request %s line %d: %w", chip, line, err)
	}
	return l, nil
}
