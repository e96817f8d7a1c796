package sink

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"p1dlms/pkg/decoder"
)

// Summary logs a human readable block per reading.
type Summary struct {
	logger *zap.Logger
}

func NewSummary(logger *zap.Logger) *Summary {
	return &Summary{logger: logger}
}

func (s *Summary) Name() string {
	return "summary"
}

func (s *Summary) OnReading(_ context.Context, r decoder.Reading) error {
	lines := FormatSummary(r)
	s.logger.Info("frame summary", zap.Strings("lines", lines))
	return nil
}

type labelled struct {
	label string
	value *float64
}

// phases renders "Name (L1/L3): a unit / b unit" over the present values,
// or "" when none is present.
func phases(name, format, unit string, values ...labelled) string {
	var labels, parts []string
	for _, v := range values {
		if v.value == nil {
			continue
		}
		labels = append(labels, v.label)
		parts = append(parts, fmt.Sprintf(format+" %s", *v.value, unit))
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("%s (%s): %s", name, strings.Join(labels, "/"), strings.Join(parts, " / "))
}

func kwh(v *uint32) *float64 {
	if v == nil {
		return nil
	}
	f := decoder.KWh(*v)
	return &f
}

// FormatSummary renders the present fields of r, one quantity group per
// line. Power is printed in kW and energy converted from Wh to kWh.
func FormatSummary(r decoder.Reading) []string {
	var lines []string
	if r.Timestamp != nil {
		lines = append(lines, "Timestamp: "+*r.Timestamp)
	}
	groups := []string{
		phases("Voltage", "%.1f", "V",
			labelled{"L1", r.VoltageL1}, labelled{"L2", r.VoltageL2}, labelled{"L3", r.VoltageL3}),
		phases("Current", "%.2f", "A",
			labelled{"L1", r.CurrentL1}, labelled{"L2", r.CurrentL2}, labelled{"L3", r.CurrentL3}),
		phases("Active Power", "%.3f", "kW",
			labelled{"+", r.ActivePowerPlus}, labelled{"-", r.ActivePowerMinus}),
		phases("Reactive Power", "%.3f", "kvar",
			labelled{"+", r.ReactivePowerPlus}, labelled{"-", r.ReactivePowerMinus}),
		phases("Active Energy", "%.3f", "kWh",
			labelled{"+", kwh(r.ActiveEnergyPlus)}, labelled{"-", kwh(r.ActiveEnergyMinus)}),
		phases("Reactive Energy", "%.3f", "kvarh",
			labelled{"+", kwh(r.ReactiveEnergyPlus)}, labelled{"-", kwh(r.ReactiveEnergyMinus)}),
	}
	for _, g := range groups {
		if g != "" {
			lines = append(lines, g)
		}
	}
	return lines
}
