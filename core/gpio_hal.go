package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// Line is a single digital signal. Set(true) drives the line to its
// asserted level; polarity is handled by the implementation.
type Line interface {
	Set(asserted bool)
	Get() bool
}

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	ConfigureOutput(pin GPIOPin) error

	// ConfigureInputPullUp configures a pin as a digital input with pull-up resistor
	ConfigureInputPullUp(pin GPIOPin) error

	// ConfigureInputPullDown configures a pin as a digital input with pull-down resistor
	ConfigureInputPullDown(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// GetPin reads the current pin state
	GetPin(pin GPIOPin) (bool, error)
}

// PinLine adapts one pin of a GPIODriver to a Line. Errors are dropped:
// lines are used inside the cycle where nothing can be done about them.
type PinLine struct {
	Driver    GPIODriver
	Pin       GPIOPin
	ActiveLow bool
}

func (l PinLine) Set(asserted bool) {
	_ = l.Driver.SetPin(l.Pin, asserted != l.ActiveLow)
}

func (l PinLine) Get() bool {
	v, _ := l.Driver.GetPin(l.Pin)
	return v != l.ActiveLow
}

// NopLine is a line that is always asserted and ignores writes. It stands
// in for handshake lines on links that have none.
type NopLine struct{}

func (NopLine) Set(bool)  {}
func (NopLine) Get() bool { return true }
