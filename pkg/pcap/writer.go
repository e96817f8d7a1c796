package pcap

import (
	"encoding/binary"
	"io"
	"time"
)

// LinkType is the pcap data link type of the capture.
type LinkType uint32

const (
	// DLTUser0 is the first user-reserved link type; Wireshark can map it
	// to a DLMS dissector through its DLT_USER preferences.
	DLTUser0 LinkType = 147
)

const (
	magicNumber  uint32 = 0xa1b2c3d4
	versionMajor uint16 = 2
	versionMinor uint16 = 4
	snapLen      uint32 = 65535
)

// Writer writes meter frames as packets in libpcap format.
type Writer struct {
	w       io.Writer
	order   binary.ByteOrder
	packets int
}

// NewWriter creates a Writer and writes the 24-byte pcap global header in
// the given byte order.
func NewWriter(w io.Writer, order binary.ByteOrder, linkType LinkType) (*Writer, error) {
	if order == nil {
		order = binary.LittleEndian
	}
	hdr := struct {
		Magic        uint32
		VersionMajor uint16
		VersionMinor uint16
		ThisZone     int32
		SigFigs      uint32
		SnapLen      uint32
		LinkType     uint32
	}{
		Magic:        magicNumber,
		VersionMajor: versionMajor,
		VersionMinor: versionMinor,
		SnapLen:      snapLen,
		LinkType:     uint32(linkType),
	}
	if err := binary.Write(w, order, &hdr); err != nil {
		return nil, err
	}
	return &Writer{w: w, order: order}, nil
}

// WritePacket writes a single frame with its capture timestamp. Frames
// longer than the snap length are truncated in the capture.
func (pw *Writer) WritePacket(ts time.Time, data []byte) error {
	origLen := uint32(len(data))
	if len(data) > int(snapLen) {
		data = data[:snapLen]
	}
	hdr := struct {
		TsSec   uint32
		TsUsec  uint32
		CapLen  uint32
		OrigLen uint32
	}{
		TsSec:   uint32(ts.Unix()),
		TsUsec:  uint32(ts.Nanosecond() / 1000),
		CapLen:  uint32(len(data)),
		OrigLen: origLen,
	}
	if err := binary.Write(pw.w, pw.order, &hdr); err != nil {
		return err
	}
	if _, err := pw.w.Write(data); err != nil {
		return err
	}
	pw.packets++
	return nil
}

// Packets returns the number of packets written so far.
func (pw *Writer) Packets() int {
	return pw.packets
}
