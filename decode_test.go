package main

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p1dlms/internal/pipeline"
	"p1dlms/pkg/decoder"
	"p1dlms/pkg/pcap"
)

// voltageHex is a frame body with L1 voltage 231.0 V.
var voltageHex = strings.Repeat("00", 20) +
	"0906 0100200700FF 12 0906 FF" +
	strings.Repeat("00", 10)

func TestDecodeHex(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		frames  int
		wantErr string
	}{
		{name: "body", in: voltageHex, frames: 1},
		{name: "prefixed", in: "0x" + strings.ReplaceAll(voltageHex, " ", ""), frames: 1},
		{name: "flagged", in: "7E" + voltageHex + "7E", frames: 1},
		{name: "two frames", in: "7E" + voltageHex + "7E7E" + voltageHex + "7E", frames: 2},
		{name: "colons", in: "7E:01:02:7E", frames: 1},
		{name: "bad hex", in: "zz", wantErr: "invalid hex"},
		{name: "empty", in: "  ", wantErr: "empty frame"},
		{name: "open frame", in: "7E0102", wantErr: "no complete frame"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames, err := decodeHex(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, frames, tt.frames)
		})
	}
}

func TestRunDecodePrintsReport(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runDecode(&out, decoder.DefaultProfile(), voltageHex))

	s := out.String()
	assert.Contains(t, s, "frame: 42 bytes, 1 elements")
	assert.Contains(t, s, "1-0:32.7.0*255")
	assert.Contains(t, s, "Voltage (L1): 231.0 V")
}

func TestRunDecodeJSON(t *testing.T) {
	decodeJSON = true
	defer func() { decodeJSON = false }()

	var out bytes.Buffer
	require.NoError(t, runDecode(&out, decoder.DefaultProfile(), voltageHex))
	assert.JSONEq(t, `{"voltage_l1":231}`, out.String())

	out.Reset()
	require.NoError(t, runDecode(&out, decoder.DefaultProfile(), strings.Repeat("00", 40)))
	assert.JSONEq(t, `{}`, out.String())
}

func TestRunInteractive(t *testing.T) {
	in := strings.NewReader("# comment\n\n" + voltageHex + "\nnot-hex\n")
	var out bytes.Buffer
	require.NoError(t, runInteractive(in, &out, decoder.DefaultProfile()))

	s := out.String()
	assert.Contains(t, s, "Voltage (L1): 231.0 V")
	assert.Contains(t, s, "error: invalid hex")
}

func TestFormatStatus(t *testing.T) {
	s := formatStatus(pipeline.Stats{Frames: 10, Readings: 9, Dropped: 1})
	assert.True(t, strings.HasPrefix(s, "\rframes: 10  readings: 9  dropped: 1  overflows: 0"))
}

func TestOpenCaptureFile(t *testing.T) {
	tests := []struct {
		name      string
		bigEndian bool
		magic     string
	}{
		{"little endian", false, "d4c3b2a1"},
		{"big endian", true, "a1b2c3d4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := t.TempDir() + "/capture.pcap"
			cfg := captureConfig(path, tt.bigEndian)
			pw, closeFn, err := openCapture(cfg, nopLogger())
			require.NoError(t, err)
			require.IsType(t, &pcap.Writer{}, pw)
			closeFn()

			data := readFile(t, path)
			require.Len(t, data, 24)
			assert.Equal(t, tt.magic, hex.EncodeToString(data[:4]))
		})
	}
}
