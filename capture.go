package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"go.uber.org/zap"

	"p1dlms/internal/config"
	"p1dlms/pkg/pcap"
)

// openCapture opens the capture file or FIFO and writes the pcap header.
// The returned func closes it and removes the FIFO.
func openCapture(cfg config.CaptureConfig, logger *zap.Logger) (*pcap.Writer, func(), error) {
	var (
		f   *os.File
		err error
	)
	if cfg.Pipe {
		f, err = createPipe(cfg.File, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create pipe: %w", err)
		}
	} else {
		f, err = os.Create(cfg.File)
		if err != nil {
			return nil, nil, fmt.Errorf("create capture file: %w", err)
		}
	}
	closeFn := func() {
		_ = f.Close()
		if cfg.Pipe {
			removePipe(cfg.File)
		}
	}

	var byteOrder binary.ByteOrder = binary.LittleEndian
	if cfg.BigEndian {
		byteOrder = binary.BigEndian
	}
	pw, err := pcap.NewWriter(f, byteOrder, pcap.DLTUser0)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("write pcap header: %w", err)
	}
	return pw, closeFn, nil
}
