package decoder

const (
	ScaleTenths     byte = 0xFF
	ScaleHundredths byte = 0xFE
	ScaleThousandth byte = 0xFD
)

// Divisor returns the power-of-ten divisor a scaler byte stands for. Any
// byte outside the three known scalers means no scaling.
func Divisor(scaler byte) float64 {
	switch scaler {
	case ScaleTenths:
		return 10
	case ScaleHundredths:
		return 100
	case ScaleThousandth:
		return 1000
	default:
		return 1
	}
}

// Scale applies a scaler byte to a raw register value.
func Scale(raw uint32, scaler byte) float64 {
	return float64(raw) / Divisor(scaler)
}

// ScalerAt peeks the scaler byte at pos. The second result is false when
// pos lies beyond the frame.
func ScalerAt(frame []byte, pos int) (byte, bool) {
	if pos < 0 || pos >= len(frame) {
		return 0, false
	}
	return frame[pos], true
}
