package decoder

import "fmt"

// ObjectIdentifier is a 6-byte OBIS code, groups A through F.
type ObjectIdentifier [6]byte

const (
	obisA = iota
	obisB
	obisC
	obisD
	obisE
	obisF
)

// ObisLen is the length byte that marks an octet string as an identifier.
const ObisLen = 6

// String renders the identifier in A-B:C.D.E*F notation.
func (id ObjectIdentifier) String() string {
	return fmt.Sprintf("%d-%d:%d.%d.%d*%d", id[obisA], id[obisB], id[obisC], id[obisD], id[obisE], id[obisF])
}

// IsClock reports whether id is the 0-0:1.0.x clock object.
func (id ObjectIdentifier) IsClock() bool {
	return id[obisA] == 0 && id[obisB] == 0 && id[obisC] == 1 && id[obisD] == 0
}

// Quantity is the physical meaning of an identifier.
type Quantity uint8

const (
	QuantityUnknown Quantity = iota
	QuantityTimestamp
	QuantityActiveEnergyPlus
	QuantityActiveEnergyMinus
	QuantityReactiveEnergyPlus
	QuantityReactiveEnergyMinus
	QuantityActivePowerPlus
	QuantityActivePowerMinus
	QuantityReactivePowerPlus
	QuantityReactivePowerMinus
	QuantityVoltageL1
	QuantityVoltageL2
	QuantityVoltageL3
	QuantityCurrentL1
	QuantityCurrentL2
	QuantityCurrentL3
)

var quantityNames = [...]struct{ key, desc string }{
	QuantityUnknown:             {"unknown", "Unknown"},
	QuantityTimestamp:           {"timestamp", "Timestamp"},
	QuantityActiveEnergyPlus:    {"active_energy_plus", "Active Energy (+)"},
	QuantityActiveEnergyMinus:   {"active_energy_minus", "Active Energy (-)"},
	QuantityReactiveEnergyPlus:  {"reactive_energy_plus", "Reactive Energy (+)"},
	QuantityReactiveEnergyMinus: {"reactive_energy_minus", "Reactive Energy (-)"},
	QuantityActivePowerPlus:     {"active_power_plus", "Active Power (+)"},
	QuantityActivePowerMinus:    {"active_power_minus", "Active Power (-)"},
	QuantityReactivePowerPlus:   {"reactive_power_plus", "Reactive Power (+)"},
	QuantityReactivePowerMinus:  {"reactive_power_minus", "Reactive Power (-)"},
	QuantityVoltageL1:           {"voltage_l1", "Voltage L1"},
	QuantityVoltageL2:           {"voltage_l2", "Voltage L2"},
	QuantityVoltageL3:           {"voltage_l3", "Voltage L3"},
	QuantityCurrentL1:           {"current_l1", "Current L1"},
	QuantityCurrentL2:           {"current_l2", "Current L2"},
	QuantityCurrentL3:           {"current_l3", "Current L3"},
}

// String returns a human readable description.
func (q Quantity) String() string {
	if int(q) >= len(quantityNames) {
		return quantityNames[QuantityUnknown].desc
	}
	return quantityNames[q].desc
}

// Key returns a snake_case identifier usable in topics and metric labels.
func (q Quantity) Key() string {
	if int(q) >= len(quantityNames) {
		return quantityNames[QuantityUnknown].key
	}
	return quantityNames[q].key
}

// obisEntry binds an identifier pattern to its quantity and to the Reading
// field it fills. kind is the payload kind the field accepts.
type obisEntry struct {
	c, d     byte
	quantity Quantity
	kind     Kind
	assign   func(r *Reading, v Value, scaled float64)
}

// obisTable is checked in order; first match wins. Adding a quantity means
// adding a row here and a field on Reading.
var obisTable = []obisEntry{
	{0x01, 0x00, QuantityTimestamp, KindTimestamp, func(r *Reading, v Value, _ float64) { r.Timestamp = &v.Timestamp }},
	{0x01, 0x08, QuantityActiveEnergyPlus, KindUnsigned32, func(r *Reading, v Value, _ float64) { r.ActiveEnergyPlus = &v.Uint }},
	{0x02, 0x08, QuantityActiveEnergyMinus, KindUnsigned32, func(r *Reading, v Value, _ float64) { r.ActiveEnergyMinus = &v.Uint }},
	{0x03, 0x08, QuantityReactiveEnergyPlus, KindUnsigned32, func(r *Reading, v Value, _ float64) { r.ReactiveEnergyPlus = &v.Uint }},
	{0x04, 0x08, QuantityReactiveEnergyMinus, KindUnsigned32, func(r *Reading, v Value, _ float64) { r.ReactiveEnergyMinus = &v.Uint }},
	{0x01, 0x07, QuantityActivePowerPlus, KindUnsigned16, func(r *Reading, _ Value, f float64) { r.ActivePowerPlus = &f }},
	{0x02, 0x07, QuantityActivePowerMinus, KindUnsigned16, func(r *Reading, _ Value, f float64) { r.ActivePowerMinus = &f }},
	{0x03, 0x07, QuantityReactivePowerPlus, KindUnsigned16, func(r *Reading, _ Value, f float64) { r.ReactivePowerPlus = &f }},
	{0x04, 0x07, QuantityReactivePowerMinus, KindUnsigned16, func(r *Reading, _ Value, f float64) { r.ReactivePowerMinus = &f }},
	{0x20, 0x07, QuantityVoltageL1, KindUnsigned16, func(r *Reading, _ Value, f float64) { r.VoltageL1 = &f }},
	{0x34, 0x07, QuantityVoltageL2, KindUnsigned16, func(r *Reading, _ Value, f float64) { r.VoltageL2 = &f }},
	{0x48, 0x07, QuantityVoltageL3, KindUnsigned16, func(r *Reading, _ Value, f float64) { r.VoltageL3 = &f }},
	{0x1F, 0x07, QuantityCurrentL1, KindUnsigned16, func(r *Reading, _ Value, f float64) { r.CurrentL1 = &f }},
	{0x33, 0x07, QuantityCurrentL2, KindUnsigned16, func(r *Reading, _ Value, f float64) { r.CurrentL2 = &f }},
	{0x47, 0x07, QuantityCurrentL3, KindUnsigned16, func(r *Reading, _ Value, f float64) { r.CurrentL3 = &f }},
}

func lookup(id ObjectIdentifier, tariff bool) *obisEntry {
	if tariff && id[obisE] != 0 {
		return nil
	}
	for i := range obisTable {
		e := &obisTable[i]
		if e.c == id[obisC] && e.d == id[obisD] {
			return e
		}
	}
	return nil
}

// Classify maps an identifier to its quantity using bytes C and D.
func Classify(id ObjectIdentifier) Quantity {
	return classify(id, false)
}

// Classify maps an identifier to its quantity, honouring ClassifyTariff.
func (p Profile) Classify(id ObjectIdentifier) Quantity {
	return classify(id, p.ClassifyTariff)
}

func classify(id ObjectIdentifier, tariff bool) Quantity {
	if e := lookup(id, tariff); e != nil {
		return e.quantity
	}
	return QuantityUnknown
}

// Quantities lists every classifiable quantity in table order.
func Quantities() []Quantity {
	qs := make([]Quantity, len(obisTable))
	for i, e := range obisTable {
		qs[i] = e.quantity
	}
	return qs
}
