package decoder

import "fmt"

// Profile holds the per-meter layout parameters of a frame. The defaults
// describe the Aidon P1 header variant.
type Profile struct {
	// StartOffset is where element scanning begins, past the frame header.
	StartOffset int
	// TrailerMargin is the number of trailing bytes (checksum and flags)
	// that are never scanned.
	TrailerMargin int
	// ScalerOffset is the distance from the start of a long-unsigned
	// payload to the peeked scaler byte.
	ScalerOffset int
	// ClassifyTariff additionally requires OBIS byte E to be zero when
	// matching identifiers, so tariff registers sharing C.D are ignored.
	ClassifyTariff bool
}

const (
	DefaultStartOffset   = 20
	DefaultTrailerMargin = 10
	DefaultScalerOffset  = 2
)

// DefaultProfile returns the Aidon profile.
func DefaultProfile() Profile {
	return Profile{
		StartOffset:   DefaultStartOffset,
		TrailerMargin: DefaultTrailerMargin,
		ScalerOffset:  DefaultScalerOffset,
	}
}

// Validate reports layout values that can never produce a scan.
func (p Profile) Validate() error {
	if p.StartOffset < 0 {
		return fmt.Errorf("start offset %d must not be negative", p.StartOffset)
	}
	if p.TrailerMargin < 0 {
		return fmt.Errorf("trailer margin %d must not be negative", p.TrailerMargin)
	}
	if p.ScalerOffset < 2 {
		return fmt.Errorf("scaler offset %d overlaps the 2 value bytes", p.ScalerOffset)
	}
	return nil
}
