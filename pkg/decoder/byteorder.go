package decoder

// Swap16 reverses the byte order of a 16-bit value.
func Swap16(v uint16) uint16 {
	return v<<8 | v>>8
}

// Swap32 reverses the byte order of a 32-bit value.
func Swap32(v uint32) uint32 {
	v = (v<<8)&0xFF00FF00 | (v>>8)&0x00FF00FF
	return v<<16 | v>>16
}

// BigEndian16 reads a big-endian uint16 from the first two bytes of b.
func BigEndian16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// BigEndian32 reads a big-endian uint32 from the first four bytes of b.
func BigEndian32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
