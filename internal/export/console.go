package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sweeney/bike-computer/internal/logic"
)

// MaxLineLength bounds an inbound line. Longer input is discarded up to
// the next line ending.
const MaxLineLength = 64

// Port is the minimal serial port the console needs.
type Port interface {
	io.ReadWriter
	io.Closer
}

// TimeoutPort is a Port whose reads can be bounded.
type TimeoutPort interface {
	Port
	SetReadTimeout(timeout time.Duration) error
}

// PollTimeout is how long one console poll may wait for input.
const PollTimeout = time.Millisecond

// Console is the device side of the serial channel. It is polled once
// per loop tick and only hands out complete lines.
type Console struct {
	port     Port
	pending  []byte
	overflow bool
	buf      [128]byte
}

// NewConsole wraps port. If the port supports read timeouts it is set up
// so that Poll never waits longer than PollTimeout.
func NewConsole(port Port) (*Console, error) {
	if tp, ok := port.(TimeoutPort); ok {
		if err := tp.SetReadTimeout(PollTimeout); err != nil {
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
	}
	return &Console{port: port}, nil
}

// Poll reads whatever input is available and reports whether a complete
// export command arrived. Unrecognised lines get a diagnostic reply.
func (c *Console) Poll() (bool, error) {
	n, err := c.port.Read(c.buf[:])
	if n > 0 {
		c.pending = append(c.pending, c.buf[:n]...)
	}
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read console: %w", err)
	}

	requested := false
	for {
		i := bytes.IndexAny(c.pending, "\r\n")
		if i < 0 {
			break
		}
		line := string(c.pending[:i])
		c.pending = c.pending[i+1:]

		if c.overflow {
			c.overflow = false
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if Match(line) {
			requested = true
			continue
		}
		if _, err := fmt.Fprintf(c.port, "unknown command: %q\n", line); err != nil {
			return requested, fmt.Errorf("write console: %w", err)
		}
	}

	if len(c.pending) > MaxLineLength {
		c.pending = c.pending[:0]
		c.overflow = true
	}
	return requested, nil
}

// Write sends raw output to the console.
func (c *Console) Write(p []byte) (int, error) {
	return c.port.Write(p)
}

// Export writes the trip dump to the console.
func (c *Console) Export(trips []logic.Trip) error {
	return Write(c.port, trips)
}

// Close closes the underlying port.
func (c *Console) Close() error {
	return c.port.Close()
}
