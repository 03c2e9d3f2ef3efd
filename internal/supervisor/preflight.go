package supervisor

import (
	"fmt"

	serial "github.com/jacobsa/go-serial/serial"
)

// SerialPreflight returns a Preflight that verifies the serial master
// device can be opened at the configured baud rate before the link
// process is spawned. A missing or busy device then shows up as a
// preflight failure instead of a crash-looping child.
func SerialPreflight(device string, baud uint) func() error {
	return func() error {
		opts := serial.OpenOptions{
			PortName:        device,
			BaudRate:        baud,
			DataBits:        8,
			StopBits:        1,
			MinimumReadSize: 1,
			ParityMode:      serial.PARITY_NONE,
		}
		port, err := serial.Open(opts)
		if err != nil {
			return fmt.Errorf("serial master %s: %w", device, err)
		}
		return port.Close()
	}
}
