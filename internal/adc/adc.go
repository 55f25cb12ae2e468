// Package adc provides averaged, calibrated analog reads.
package adc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Channel identifies an analog input. The dispatch core passes it through
// without interpreting it.
type Channel int

// DefaultChannel is the potentiometer input.
const DefaultChannel Channel = 3

// DefaultSamples is the number of raw reads averaged per sample.
const DefaultSamples = 64

// Sampler produces an averaged percentage reading for a channel.
// Implementations may take many raw reads and must not be called from an
// edge callback.
type Sampler interface {
	SamplePercentage(ch Channel) (int, error)
}

// Calibration maps raw counts onto 0..100.
type Calibration struct {
	Min int // raw count read as 0%
	Max int // raw count read as 100%
}

// DefaultCalibration spans a 12-bit converter.
var DefaultCalibration = Calibration{Min: 0, Max: 4095}

// Validate reports whether the calibration can be applied.
func (c Calibration) Validate() error {
	if c.Max <= c.Min {
		return fmt.Errorf("adc: calibration max %d must exceed min %d", c.Max, c.Min)
	}
	return nil
}

// Percent maps an averaged raw count to a percentage.
// Values outside the calibrated span are not clamped.
func (c Calibration) Percent(raw int) int {
	return (raw - c.Min) * 100 / (c.Max - c.Min)
}

// Average returns the mean of n reads from read.
func Average(n int, read func() (int, error)) (int, error) {
	if n <= 0 {
		return 0, errors.New("adc: sample count must be positive")
	}
	sum := 0
	for i := 0; i < n; i++ {
		v, err := read()
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum / n, nil
}

// IIOSampler reads a Linux industrial I/O ADC through sysfs.
type IIOSampler struct {
	dir     string
	samples int
	cal     Calibration
}

// NewIIOSampler creates a sampler for the IIO device directory
// (e.g. /sys/bus/iio/devices/iio:device0).
func NewIIOSampler(dir string, samples int, cal Calibration) (*IIOSampler, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("adc: sample count %d must be positive", samples)
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open iio device: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open iio device: %s is not a directory", dir)
	}
	return &IIOSampler{dir: dir, samples: samples, cal: cal}, nil
}

// ReadRaw returns one raw conversion for ch.
func (s *IIOSampler) ReadRaw(ch Channel) (int, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("in_voltage%d_raw", ch))
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read channel %d: %w", ch, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse channel %d: %w", ch, err)
	}
	return v, nil
}

// SamplePercentage averages the configured number of raw reads and applies
// the calibration.
func (s *IIOSampler) SamplePercentage(ch Channel) (int, error) {
	avg, err := Average(s.samples, func() (int, error) { return s.ReadRaw(ch) })
	if err != nil {
		return 0, err
	}
	return s.cal.Percent(avg), nil
}
