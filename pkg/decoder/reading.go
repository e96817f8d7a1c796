package decoder

import (
	"go.uber.org/zap"
)

// Reading is the aggregate of one frame. A nil field was not present in
// the frame. Energies are raw register values in Wh (varh for reactive).
type Reading struct {
	Timestamp           *string  `json:"timestamp,omitempty"`
	VoltageL1           *float64 `json:"voltage_l1,omitempty"`
	VoltageL2           *float64 `json:"voltage_l2,omitempty"`
	VoltageL3           *float64 `json:"voltage_l3,omitempty"`
	CurrentL1           *float64 `json:"current_l1,omitempty"`
	CurrentL2           *float64 `json:"current_l2,omitempty"`
	CurrentL3           *float64 `json:"current_l3,omitempty"`
	ActivePowerPlus     *float64 `json:"active_power_plus,omitempty"`
	ActivePowerMinus    *float64 `json:"active_power_minus,omitempty"`
	ReactivePowerPlus   *float64 `json:"reactive_power_plus,omitempty"`
	ReactivePowerMinus  *float64 `json:"reactive_power_minus,omitempty"`
	ActiveEnergyPlus    *uint32  `json:"active_energy_plus,omitempty"`
	ActiveEnergyMinus   *uint32  `json:"active_energy_minus,omitempty"`
	ReactiveEnergyPlus  *uint32  `json:"reactive_energy_plus,omitempty"`
	ReactiveEnergyMinus *uint32  `json:"reactive_energy_minus,omitempty"`
}

// Values returns the numeric fields that are present, keyed by quantity,
// with energies converted to kWh (kvarh).
func (r Reading) Values() map[Quantity]float64 {
	out := make(map[Quantity]float64)
	floats := []struct {
		q Quantity
		v *float64
	}{
		{QuantityVoltageL1, r.VoltageL1},
		{QuantityVoltageL2, r.VoltageL2},
		{QuantityVoltageL3, r.VoltageL3},
		{QuantityCurrentL1, r.CurrentL1},
		{QuantityCurrentL2, r.CurrentL2},
		{QuantityCurrentL3, r.CurrentL3},
		{QuantityActivePowerPlus, r.ActivePowerPlus},
		{QuantityActivePowerMinus, r.ActivePowerMinus},
		{QuantityReactivePowerPlus, r.ReactivePowerPlus},
		{QuantityReactivePowerMinus, r.ReactivePowerMinus},
	}
	for _, f := range floats {
		if f.v != nil {
			out[f.q] = *f.v
		}
	}
	energies := []struct {
		q Quantity
		v *uint32
	}{
		{QuantityActiveEnergyPlus, r.ActiveEnergyPlus},
		{QuantityActiveEnergyMinus, r.ActiveEnergyMinus},
		{QuantityReactiveEnergyPlus, r.ReactiveEnergyPlus},
		{QuantityReactiveEnergyMinus, r.ReactiveEnergyMinus},
	}
	for _, e := range energies {
		if e.v != nil {
			out[e.q] = KWh(*e.v)
		}
	}
	return out
}

// KWh converts a raw Wh register to kWh.
func KWh(wh uint32) float64 {
	return float64(wh) / 1000
}

// Decode scans frame and returns its reading. The boolean is false when no
// element was both classified and assigned, in which case nothing should be
// emitted.
func Decode(frame []byte, p Profile) (Reading, bool) {
	rep := Scan(frame, p)
	return rep.Reading, rep.Found
}

// Decoder decodes frames for one meter profile, tracing every element at
// debug level.
type Decoder struct {
	profile Profile
	logger  *zap.Logger
}

// New creates a Decoder. A nil logger disables tracing.
func New(p Profile, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{profile: p, logger: logger}
}

// Profile returns the decoder's meter profile.
func (d *Decoder) Profile() Profile {
	return d.profile
}

// Decode scans one frame and returns the full report.
func (d *Decoder) Decode(frame []byte) Report {
	rep := Scan(frame, d.profile)
	if ce := d.logger.Check(zap.DebugLevel, "frame scanned"); ce != nil {
		for _, el := range rep.Elements {
			d.logger.Debug("element",
				zap.Int("offset", el.Offset),
				zap.Stringer("obis", el.Identifier),
				zap.Stringer("quantity", el.Quantity),
				zap.Stringer("type", el.Tag),
				zap.Uint32("raw", el.Value.Uint),
				zap.Float64("scaled", el.Scaled),
				zap.Bool("assigned", el.Assigned),
				zap.Bool("separator_skipped", el.Separator),
				zap.Error(el.Err),
			)
		}
		ce.Write(
			zap.Int("length", len(frame)),
			zap.Int("elements", len(rep.Elements)),
			zap.Int("resync_steps", rep.Steps),
			zap.Stringer("stop", rep.Stop),
			zap.Bool("found", rep.Found),
		)
	}
	return rep
}
