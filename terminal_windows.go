//go:build windows

package main

import (
	"os"

	"golang.org/x/sys/windows"
)

// enableTerminalStatus turns on VT processing so the carriage-return status
// line redraws in place on Windows consoles.
func enableTerminalStatus() {
	handle := windows.Handle(os.Stderr.Fd())
	var mode uint32
	if err := windows.GetConsoleMode(handle, &mode); err != nil {
		return
	}
	_ = windows.SetConsoleMode(handle, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING)
}
