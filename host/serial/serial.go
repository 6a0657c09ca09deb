package serial

import (
	"io"
)

// Port is the byte stream to the USB bridge. The Bridge writes one framed
// request and reads until a complete response frame arrives, so Read may
// return short counts. Flush is called once at open to drop anything the
// adapter buffered before the host attached.
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Config selects the bridge's tty
type Config struct {
	Device      string // e.g. /dev/ttyACM0
	Baud        int    // ignored by CDC-ACM adapters but required by termios
	ReadTimeout int    // ms per Read, bounds how long the Bridge waits per poll
}
