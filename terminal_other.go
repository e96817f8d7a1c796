//go:build !windows

package main

func enableTerminalStatus() {}
