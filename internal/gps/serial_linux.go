//go:build linux

package gps

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var baudBits = map[int]uint32{
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
}

// openSerial puts the receiver's tty into raw 8N1 mode at the requested
// rate.
func openSerial(path string, baud int) (*os.File, error) {
	bits, ok := baudBits[baud]
	if !ok {
		return nil, fmt.Errorf("unsupported baud rate %d", baud)
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, err
	}

	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	tio.Oflag &^= unix.OPOST
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tio.Cflag &^= unix.CSIZE | unix.PARENB | unix.CBAUD
	tio.Cflag |= unix.CS8 | bits
	tio.Ispeed = bits
	tio.Ospeed = bits

	// Block until a first byte arrives, then return once a second passes
	// without another byte.
	tio.Cc[unix.VMIN] = 1
	tio.Cc[unix.VTIME] = 10

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}
