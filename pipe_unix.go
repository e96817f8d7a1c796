//go:build unix

package main

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

func createPipe(path string, logger *zap.Logger) (*os.File, error) {
	err := unix.Mkfifo(path, 0600)
	if err != nil {
		if !errors.Is(err, unix.EEXIST) {
			return nil, fmt.Errorf("mkfifo: %w", err)
		}
		info, statErr := os.Stat(path)
		if statErr != nil {
			return nil, statErr
		}
		if info.Mode()&os.ModeNamedPipe == 0 {
			return nil, fmt.Errorf("%s exists and is not a named pipe", path)
		}
	}
	logger.Info("waiting for capture reader", zap.String("pipe", path))
	f, err := os.OpenFile(path, os.O_WRONLY, 0) // blocks until reader connects
	if err != nil {
		return nil, fmt.Errorf("open pipe: %w", err)
	}
	return f, nil
}

func removePipe(path string) {
	_ = os.Remove(path)
}
