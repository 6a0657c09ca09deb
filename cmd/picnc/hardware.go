package main

import (
	"fmt"

	"go.uber.org/zap"

	"picnc/config"
	"picnc/core"
	"picnc/driver"
	"picnc/host/serial"
	"picnc/session"
)

// openHardware maps the SoC registers, or opens the serial bridge when a
// device is configured
func openHardware(cfg *config.Config, log *zap.Logger) (driver.Hardware, error) {
	if cfg.Serial.Device != "" {
		return openBridge(cfg, log)
	}
	return openSPI(cfg, log)
}

func openBridge(cfg *config.Config, log *zap.Logger) (driver.Hardware, error) {
	port, err := serial.Open(&serial.Config{
		Device:      cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.Serial.ReadTimeout,
	})
	if err != nil {
		return driver.Hardware{}, err
	}
	if err := port.Flush(); err != nil {
		log.Warn("failed to flush serial port", zap.Error(err))
	}

	if len(cfg.Pins.Outputs) > 0 || len(cfg.Pins.Inputs) > 0 {
		log.Warn("local GPIO lines are not available over the serial bridge")
	}

	bridge := serial.NewBridge(port, cfg.Serial.Timeout)
	request, ready := serial.Lines()
	log.Info("using serial bridge",
		zap.String("device", cfg.Serial.Device),
		zap.Int("baud", cfg.Serial.Baud))

	return driver.Hardware{
		SPI:    bridge,
		Lines:  session.Lines{Request: request, Ready: ready},
		Closer: bridge,
	}, nil
}

func openSPI(cfg *config.Config, log *zap.Logger) (hw driver.Hardware, err error) {
	base := int64(cfg.SPI.PeripheralBase)
	if base == 0 {
		base = core.PeripheralBase()
	}

	bcm, err := core.OpenBCM2835(cfg.SPI.MemDevice, base)
	if err != nil {
		return hw, err
	}
	defer func() {
		if err != nil {
			_ = bcm.Close()
		}
	}()

	if err = bcm.ConfigureSPI(core.SPIConfig{Mode: 0, Divider: cfg.SPI.ClockDivider}); err != nil {
		return hw, fmt.Errorf("failed to configure SPI: %w", err)
	}

	hw.SPI = bcm
	hw.Closer = bcm
	if hw.Lines, err = handshakeLines(bcm, cfg.Pins); err != nil {
		return hw, err
	}

	for _, pc := range cfg.Pins.Outputs {
		l, err := outputLine(bcm, pc)
		if err != nil {
			return hw, err
		}
		hw.Outputs = append(hw.Outputs, l)
	}
	for _, pc := range cfg.Pins.Inputs {
		l, err := inputLine(bcm, pc)
		if err != nil {
			return hw, err
		}
		hw.Inputs = append(hw.Inputs, l)
	}

	log.Info("mapped peripherals",
		zap.String("device", cfg.SPI.MemDevice),
		zap.String("base", fmt.Sprintf("0x%08x", base)),
		zap.Uint32("clock_divider", cfg.SPI.ClockDivider))
	return hw, nil
}

// handshakeLines configures the request, ready and optional reset lines.
// Request is left deasserted.
func handshakeLines(bcm *core.BCM2835, pins config.PinsConfig) (lines session.Lines, err error) {
	if lines.Request, err = outputLine(bcm, pins.Request); err != nil {
		return lines, err
	}
	if lines.Ready, err = inputLine(bcm, pins.Ready); err != nil {
		return lines, err
	}
	if pins.Reset >= 0 {
		if lines.Reset, err = outputLine(bcm, config.PinConfig{Pin: uint32(pins.Reset)}); err != nil {
			return lines, err
		}
	}
	lines.Request.Set(false)
	return lines, nil
}

func outputLine(bcm *core.BCM2835, pc config.PinConfig) (core.Line, error) {
	pin := core.GPIOPin(pc.Pin)
	if err := bcm.ConfigureOutput(pin); err != nil {
		return nil, fmt.Errorf("failed to configure output pin %d: %w", pin, err)
	}
	return bcm.Line(pin, pc.Invert)
}

// inputLine pulls an inverted input up so an idle line reads deasserted
func inputLine(bcm *core.BCM2835, pc config.PinConfig) (core.Line, error) {
	pin := core.GPIOPin(pc.Pin)
	err := bcm.ConfigureInputPullDown(pin)
	if pc.Invert {
		err = bcm.ConfigureInputPullUp(pin)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to configure input pin %d: %w", pin, err)
	}
	return bcm.Line(pin, pc.Invert)
}
