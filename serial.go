package main

import (
	"fmt"
	"strings"

	"go.bug.st/serial"

	"p1dlms/internal/config"
)

func parseParity(s string) (serial.Parity, error) {
	switch strings.ToLower(s) {
	case "none":
		return serial.NoParity, nil
	case "odd":
		return serial.OddParity, nil
	case "even":
		return serial.EvenParity, nil
	case "mark":
		return serial.MarkParity, nil
	case "space":
		return serial.SpaceParity, nil
	default:
		return serial.NoParity, fmt.Errorf("invalid parity %q: use none, odd, even, mark, or space", s)
	}
}

func parseStopBits(n int) (serial.StopBits, error) {
	switch n {
	case 1:
		return serial.OneStopBit, nil
	case 2:
		return serial.TwoStopBits, nil
	default:
		return serial.OneStopBit, fmt.Errorf("invalid stop bits %d: use 1 or 2", n)
	}
}

// serialMode translates the serial section into a port mode. DTR is set in
// InitialStatusBits so the meter starts talking as soon as the port opens.
func serialMode(cfg config.SerialConfig) (*serial.Mode, error) {
	parity, err := parseParity(cfg.Parity)
	if err != nil {
		return nil, err
	}
	stopbits, err := parseStopBits(cfg.StopBits)
	if err != nil {
		return nil, err
	}
	return &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: cfg.DataBits,
		Parity:   parity,
		StopBits: stopbits,
		InitialStatusBits: &serial.ModemOutputBits{
			DTR: cfg.DTR,
		},
	}, nil
}

func openPort(cfg config.SerialConfig) (serial.Port, error) {
	mode, err := serialMode(cfg)
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	if cfg.DTR {
		// Some drivers ignore the initial bits.
		if err := port.SetDTR(true); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("raise DTR on %s: %w", cfg.Port, err)
		}
	}
	return port, nil
}
