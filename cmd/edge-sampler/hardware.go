package main

import (
	"errors"
	"fmt"

	"github.com/sweeney/edge-sampler/internal/gpio"
)

// hardware holds the opened GPIO lines for the selected backend.
type hardware struct {
	out  gpio.OutputPin
	edge gpio.EdgeSource

	closers []func() error // run in reverse order
}

func openHardware(o options) (*hardware, error) {
	h := &hardware{}
	var err error
	switch o.backend {
	case "gpiocdev":
		err = h.openGPIOCDev(o)
	case "periph":
		err = h.openPeriph(o)
	default:
		return nil, fmt.Errorf("unknown backend %q", o.backend)
	}
	if err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

func (h *hardware) openGPIOCDev(o options) error {
	chip, err := gpio.OpenChip(o.chip)
	if err != nil {
		return err
	}
	h.closers = append(h.closers, chip.Close)

	out, err := chip.Output(o.pinOut)
	if err != nil {
		return err
	}
	h.out = out
	h.closers = append(h.closers, out.Close)

	edge := chip.FallingEdge(o.pinIn, o.debounce)
	h.edge = edge
	h.closers = append(h.closers, edge.Close)
	return nil
}

func (h *hardware) openPeriph(o options) error {
	if err := gpio.InitPeriph(); err != nil {
		return err
	}

	outPin, err := gpio.PeriphPin(o.pinOut)
	if err != nil {
		return err
	}
	out, err := gpio.NewPeriphOutput(outPin)
	if err != nil {
		return err
	}
	h.out = out
	h.closers = append(h.closers, out.Close)

	inPin, err := gpio.PeriphPin(o.pinIn)
	if err != nil {
		return err
	}
	edge := gpio.NewPeriphEdge(inPin)
	h.edge = edge
	h.closers = append(h.closers, edge.Close)
	return nil
}

// Close releases lines before the chip that owns them.
func (h *hardware) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}
