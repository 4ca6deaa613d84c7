// Package gpio connects the wheel sensor and the four buttons to the
// engine. The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/bike-computer/internal/logic"

// Levels holds one logical reading of the buttons, indexed by
// logic.Button. true = pressed.
type Levels [logic.NumButtons]bool

// Reader reads the button inputs.
type Reader interface {
	// Read returns the logical button levels.
	// The buttons pull the line to ground: raw 0 = pressed.
	Read() (Levels, error)

	// Close releases GPIO resources.
	Close() error
}

// Line definitions (BCM numbering)
const (
	DefaultChip      = "gpiochip0"
	DefaultWheelLine = 17
)

// DefaultButtonLines are the button inputs in logic.Button order.
var DefaultButtonLines = [logic.NumButtons]int{5, 6, 13, 19}
