// Package serialport opens the field-bus serial link.
package serialport

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

const DefaultBaudRate = 115200

var ErrNoPath = errors.New("serialport: missing device path")

type Config struct {
	Path     string
	BaudRate int
}

func DefaultConfig() Config {
	return Config{BaudRate: DefaultBaudRate}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return ErrNoPath
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("serialport: invalid baud_rate %d", c.BaudRate)
	}
	return nil
}

// Open opens the port in 8N1 mode with blocking reads. Reads only return
// with data, on error, or after Close; a zero-length read therefore means the
// device went away.
func Open(cfg Config) (serial.Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Path, mode)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", cfg.Path, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		log.Warn().Msgf("serialport.Open reset input path=%s err=%v", cfg.Path, err)
	}
	log.Info().Msgf("serialport.Open path=%s baud=%d", cfg.Path, cfg.BaudRate)
	return port, nil
}

// List returns the serial device paths visible to the host.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serialport: list: %w", err)
	}
	return ports, nil
}

// IsClosed reports whether err came from reading or writing a closed port.
func IsClosed(err error) bool {
	var perr *serial.PortError
	if errors.As(err, &perr) {
		return perr.Code() == serial.PortClosed
	}
	return false
}
