// Package gpio drives the light relay through a GPIO output line.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Relay switches the light relay.
type Relay interface {
	// Set drives the relay to the requested logical state (true = light ON).
	Set(on bool) error

	// Close releases GPIO resources. The output level stays latched.
	Close() error
}

// DefaultPin is the relay output (BCM numbering).
const DefaultPin = 18

// level maps a logical state to the raw line value.
func level(on, activeLow bool) int {
	if on != activeLow {
		return 1
	}
	return 0
}
