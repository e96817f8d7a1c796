package decoder

// buildFrame lays out a frame the way the Aidon meter does: a header of
// DefaultStartOffset bytes, the given body, then a trailer the scanner
// never reaches.
func buildFrame(body ...[]byte) []byte {
	f := make([]byte, DefaultStartOffset)
	for _, b := range body {
		f = append(f, b...)
	}
	return append(f, make([]byte, DefaultTrailerMargin)...)
}

// element encodes an identifier marker, the identifier, a type tag and the
// raw payload bytes that follow it.
func element(id ObjectIdentifier, tag TypeTag, payload ...byte) []byte {
	b := []byte{byte(TypeOctetString), ObisLen}
	b = append(b, id[:]...)
	b = append(b, byte(tag))
	return append(b, payload...)
}

var (
	idClock          = ObjectIdentifier{0, 0, 1, 0, 0, 255}
	idActiveEnergyIn = ObjectIdentifier{0, 0, 1, 8, 0, 255}
	idActivePowerIn  = ObjectIdentifier{1, 0, 1, 7, 0, 255}
	idVoltageL1      = ObjectIdentifier{1, 0, 32, 7, 0, 255}
	idCurrentL1      = ObjectIdentifier{1, 0, 31, 7, 0, 255}
)

// clockPayload is 2024-05-01 14:30:00, day of week 3, no deviation.
var clockPayload = []byte{0x0C, 0x07, 0xE8, 0x05, 0x01, 0x03, 0x0E, 0x1E, 0x00, 0xFF, 0x80, 0x00, 0x00}
