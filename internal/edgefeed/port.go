package edgefeed

import (
	"io"

	"go.bug.st/serial"
)

// Porter defines the minimal interface needed for an edge sensor port.
// This abstraction enables unit testing without real sensor hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// PortMode defines serial port configuration parameters for the edge
// sensor controller.
type PortMode struct {
	BaudRate int
	DataBits int
	Parity   serial.Parity
	StopBits serial.StopBits
}

// DefaultPortMode returns the default mode for the edge sensor controller.
func DefaultPortMode() *PortMode {
	return &PortMode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// OpenPort opens a real serial port at the given path with the given mode.
func OpenPort(path string, mode *PortMode) (Porter, error) {
	if mode == nil {
		mode = DefaultPortMode()
	}
	return serial.Open(path, &serial.Mode{
		BaudRate: mode.BaudRate,
		DataBits: mode.DataBits,
		Parity:   mode.Parity,
		StopBits: mode.StopBits,
	})
}
