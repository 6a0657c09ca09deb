// Package config loads the picnc configuration from file, environment
// and defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"picnc/core"
	"picnc/driver"
	"picnc/protocol"
	"picnc/session"
)

var ErrInvalid = errors.New("invalid configuration")

// Config is the whole configuration
type Config struct {
	Driver   DriverConfig   `json:"driver" mapstructure:"driver"`
	SPI      SPIConfig      `json:"spi" mapstructure:"spi"`
	Pins     PinsConfig     `json:"pins" mapstructure:"pins"`
	Serial   SerialConfig   `json:"serial" mapstructure:"serial"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
	Simulate SimulateConfig `json:"simulate" mapstructure:"simulate"`
}

// DriverConfig sets up the coprocessor and the servo thread
type DriverConfig struct {
	Name        string        `json:"name" mapstructure:"name"`
	Period      time.Duration `json:"period" mapstructure:"period"`
	StepLen     uint32        `json:"step_len" mapstructure:"step_len"`
	PWMFreq     float64       `json:"pwm_freq" mapstructure:"pwm_freq"`
	Axes        int           `json:"axes" mapstructure:"axes"`
	SpinLimit   int           `json:"spin_limit" mapstructure:"spin_limit"`
	ResetSpins  int           `json:"reset_spins" mapstructure:"reset_spins"`
	SettleSpins int           `json:"settle_spins" mapstructure:"settle_spins"`
}

// SPIConfig locates and clocks the SPI controller
type SPIConfig struct {
	ClockDivider   uint32 `json:"clock_divider" mapstructure:"clock_divider"`
	PeripheralBase uint64 `json:"peripheral_base" mapstructure:"peripheral_base"` // 0 detects
	MemDevice      string `json:"mem_device" mapstructure:"mem_device"`
}

// PinConfig is one local GPIO line
type PinConfig struct {
	Pin    uint32 `json:"pin" mapstructure:"pin"`
	Invert bool   `json:"invert" mapstructure:"invert"`
}

// PinsConfig assigns the handshake and auxiliary lines
type PinsConfig struct {
	Request PinConfig   `json:"request" mapstructure:"request"`
	Ready   PinConfig   `json:"ready" mapstructure:"ready"` // asserted low by default
	Reset   int         `json:"reset" mapstructure:"reset"` // -1 if not wired
	Outputs []PinConfig `json:"outputs" mapstructure:"outputs"`
	Inputs  []PinConfig `json:"inputs" mapstructure:"inputs"`
}

// SerialConfig selects the USB bridge instead of SPI when Device is set
type SerialConfig struct {
	Device      string        `json:"device" mapstructure:"device"`
	Baud        int           `json:"baud" mapstructure:"baud"`
	ReadTimeout int           `json:"read_timeout" mapstructure:"read_timeout"` // ms
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
}

// LoggingConfig configures zap
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	Format     string `json:"format" mapstructure:"format"`
	OutputPath string `json:"output_path" mapstructure:"output_path"`
}

// SimulateConfig drives the simulate command
type SimulateConfig struct {
	Cycles   int     `json:"cycles" mapstructure:"cycles"`
	Distance float64 `json:"distance" mapstructure:"distance"` // units, axis 0
	Ramp     int     `json:"ramp" mapstructure:"ramp"`         // cycles to cover Distance
	Scale    float64 `json:"scale" mapstructure:"scale"`
	MaxAccel float64 `json:"max_accel" mapstructure:"max_accel"`
}

// DefaultConfig returns the defaults for a Raspberry Pi with the
// coprocessor on SPI0
func DefaultConfig() *Config {
	sess := session.DefaultConfig()
	return &Config{
		Driver: DriverConfig{
			Name:        driver.DefaultName,
			Period:      time.Millisecond,
			StepLen:     5,
			PWMFreq:     20000,
			Axes:        protocol.MaxAxes,
			ResetSpins:  sess.ResetSpins,
			SettleSpins: sess.SettleSpins,
		},
		SPI: SPIConfig{
			ClockDivider: 64,
			MemDevice:    "/dev/mem",
		},
		Pins: PinsConfig{
			Request: PinConfig{Pin: 25},
			Ready:   PinConfig{Pin: 24, Invert: true},
			Reset:   23,
		},
		Serial: SerialConfig{
			Baud:        921600,
			ReadTimeout: 5,
			Timeout:     10 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
		Simulate: SimulateConfig{
			Cycles:   2000,
			Distance: 10,
			Ramp:     1000,
			Scale:    200,
			MaxAccel: 50,
		},
	}
}

// setDefaults registers every scalar key so environment overrides apply
// even when no file mentions it
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("driver.name", c.Driver.Name)
	v.SetDefault("driver.period", c.Driver.Period)
	v.SetDefault("driver.step_len", c.Driver.StepLen)
	v.SetDefault("driver.pwm_freq", c.Driver.PWMFreq)
	v.SetDefault("driver.axes", c.Driver.Axes)
	v.SetDefault("driver.spin_limit", c.Driver.SpinLimit)
	v.SetDefault("driver.reset_spins", c.Driver.ResetSpins)
	v.SetDefault("driver.settle_spins", c.Driver.SettleSpins)

	v.SetDefault("spi.clock_divider", c.SPI.ClockDivider)
	v.SetDefault("spi.peripheral_base", c.SPI.PeripheralBase)
	v.SetDefault("spi.mem_device", c.SPI.MemDevice)

	v.SetDefault("pins.request.pin", c.Pins.Request.Pin)
	v.SetDefault("pins.request.invert", c.Pins.Request.Invert)
	v.SetDefault("pins.ready.pin", c.Pins.Ready.Pin)
	v.SetDefault("pins.ready.invert", c.Pins.Ready.Invert)
	v.SetDefault("pins.reset", c.Pins.Reset)

	v.SetDefault("serial.device", c.Serial.Device)
	v.SetDefault("serial.baud", c.Serial.Baud)
	v.SetDefault("serial.read_timeout", c.Serial.ReadTimeout)
	v.SetDefault("serial.timeout", c.Serial.Timeout)

	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.format", c.Logging.Format)
	v.SetDefault("logging.output_path", c.Logging.OutputPath)

	v.SetDefault("simulate.cycles", c.Simulate.Cycles)
	v.SetDefault("simulate.distance", c.Simulate.Distance)
	v.SetDefault("simulate.ramp", c.Simulate.Ramp)
	v.SetDefault("simulate.scale", c.Simulate.Scale)
	v.SetDefault("simulate.max_accel", c.Simulate.MaxAccel)
}

// LoadConfig reads configPath, or picnc.{yaml,json,toml} from the
// search path when it is empty. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("picnc")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/picnc/")
		v.AddConfigPath("$HOME/.picnc/")
	}

	v.SetEnvPrefix("PICNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the configuration
func (c *Config) Validate() error {
	d := c.Driver
	if d.Period <= 0 {
		return invalid("driver.period must be positive")
	}
	if d.StepLen < 1 || d.StepLen > 255 {
		return invalid("driver.step_len %d not in 1..255", d.StepLen)
	}
	if d.PWMFreq <= 0 || d.PWMFreq > protocol.PeripheralClock/2 {
		return invalid("driver.pwm_freq %g out of range", d.PWMFreq)
	}
	if d.Axes < 1 || d.Axes > protocol.MaxAxes {
		return invalid("driver.axes %d not in 1..%d", d.Axes, protocol.MaxAxes)
	}
	if d.SpinLimit < 0 || d.ResetSpins < 0 || d.SettleSpins < 0 {
		return invalid("spin counts must not be negative")
	}

	if c.SPI.ClockDivider < 2 || c.SPI.ClockDivider%2 != 0 {
		return invalid("spi.clock_divider %d must be even and at least 2", c.SPI.ClockDivider)
	}

	if err := c.Pins.validate(); err != nil {
		return err
	}

	if c.Serial.Device != "" && c.Serial.Baud <= 0 {
		return invalid("serial.baud must be positive")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return invalid("logging.format %q must be json or console", c.Logging.Format)
	}

	return nil
}

func (p *PinsConfig) validate() error {
	used := make(map[uint32]string)
	use := func(pin uint32, name string) error {
		if pin > core.MaxPin {
			return invalid("%s pin %d above %d", name, pin, core.MaxPin)
		}
		if core.IsSPIPin(core.GPIOPin(pin)) {
			return invalid("%s pin %d is an SPI pin", name, pin)
		}
		if other, ok := used[pin]; ok {
			return invalid("%s pin %d already used by %s", name, pin, other)
		}
		used[pin] = name
		return nil
	}

	if err := use(p.Request.Pin, "request"); err != nil {
		return err
	}
	if err := use(p.Ready.Pin, "ready"); err != nil {
		return err
	}
	if p.Reset >= 0 {
		if err := use(uint32(p.Reset), "reset"); err != nil {
			return err
		}
	}
	for i, o := range p.Outputs {
		if err := use(o.Pin, fmt.Sprintf("outputs[%d]", i)); err != nil {
			return err
		}
	}
	for i, in := range p.Inputs {
		if err := use(in.Pin, fmt.Sprintf("inputs[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// DriverConfig returns the driver settings
func (c *Config) DriverConfig() driver.Config {
	return driver.Config{
		Name:    c.Driver.Name,
		Axes:    c.Driver.Axes,
		StepLen: c.Driver.StepLen,
		PWMFreq: c.Driver.PWMFreq,
		Session: session.Config{
			ResetSpins:  c.Driver.ResetSpins,
			SettleSpins: c.Driver.SettleSpins,
			SpinLimit:   c.Driver.SpinLimit,
		},
	}
}

// JSON returns the configuration as indented JSON
func (c *Config) JSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// SaveConfig writes the configuration to path as JSON
func (c *Config) SaveConfig(path string) error {
	data, err := c.JSON()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
