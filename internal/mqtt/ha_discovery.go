package mqtt

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"

	"p1dlms/pkg/decoder"
)

const (
	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"
	DEVICE_CLASS_CURRENT         = "current"
	DEVICE_CLASS_ENERGY          = "energy"
	DEVICE_CLASS_POWER           = "power"
	DEVICE_CLASS_REACTIVE_POWER  = "reactive_power"
	DEVICE_CLASS_VOLTAGE         = "voltage"
	DEVICE_CLASS_CONNECTIVITY    = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC      = "diagnostic"
	SENSOR_TYPE_SENSOR           = "sensor"
	SENSOR_TYPE_BINARY           = "binary_sensor"
	SENSOR_ID_BRIDGE_STATE       = "bridge"
)

type HADiscoveryConfig struct {
	Device            HADiscoveryDevice `json:"device"`
	StateTopic        string            `json:"state_topic"`
	StateClass        string            `json:"state_class,omitempty"`
	DeviceClass       string            `json:"device_class,omitempty"`
	UnitOfMeasurement string            `json:"unit_of_measurement,omitempty"`
	AvTopic           string            `json:"availability_topic,omitempty"`
	EntityCategory    string            `json:"entity_category,omitempty"`
	Name              string            `json:"name"`
	UniqueId          string            `json:"unique_id"`
	Platform          string            `json:"platform"`
	PayloadOn         string            `json:"payload_on,omitempty"`
	PayloadOff        string            `json:"payload_off,omitempty"`
	Icon              string            `json:"icon,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
}

// sensorInfo describes how a quantity shows up in Home Assistant.
type sensorInfo struct {
	deviceClass string
	stateClass  string
	unit        string
	icon        string
}

var sensors = map[decoder.Quantity]sensorInfo{
	decoder.QuantityTimestamp:           {icon: "mdi:clock-outline"},
	decoder.QuantityActiveEnergyPlus:    {DEVICE_CLASS_ENERGY, STATE_CLASS_TOTAL_INCREASING, "kWh", ""},
	decoder.QuantityActiveEnergyMinus:   {DEVICE_CLASS_ENERGY, STATE_CLASS_TOTAL_INCREASING, "kWh", ""},
	decoder.QuantityReactiveEnergyPlus:  {"", STATE_CLASS_TOTAL_INCREASING, "kvarh", "mdi:sine-wave"},
	decoder.QuantityReactiveEnergyMinus: {"", STATE_CLASS_TOTAL_INCREASING, "kvarh", "mdi:sine-wave"},
	decoder.QuantityActivePowerPlus:     {DEVICE_CLASS_POWER, STATE_CLASS_MEASUREMENT, "kW", ""},
	decoder.QuantityActivePowerMinus:    {DEVICE_CLASS_POWER, STATE_CLASS_MEASUREMENT, "kW", ""},
	decoder.QuantityReactivePowerPlus:   {DEVICE_CLASS_REACTIVE_POWER, STATE_CLASS_MEASUREMENT, "kvar", ""},
	decoder.QuantityReactivePowerMinus:  {DEVICE_CLASS_REACTIVE_POWER, STATE_CLASS_MEASUREMENT, "kvar", ""},
	decoder.QuantityVoltageL1:           {DEVICE_CLASS_VOLTAGE, STATE_CLASS_MEASUREMENT, "V", ""},
	decoder.QuantityVoltageL2:           {DEVICE_CLASS_VOLTAGE, STATE_CLASS_MEASUREMENT, "V", ""},
	decoder.QuantityVoltageL3:           {DEVICE_CLASS_VOLTAGE, STATE_CLASS_MEASUREMENT, "V", ""},
	decoder.QuantityCurrentL1:           {DEVICE_CLASS_CURRENT, STATE_CLASS_MEASUREMENT, "A", ""},
	decoder.QuantityCurrentL2:           {DEVICE_CLASS_CURRENT, STATE_CLASS_MEASUREMENT, "A", ""},
	decoder.QuantityCurrentL3:           {DEVICE_CLASS_CURRENT, STATE_CLASS_MEASUREMENT, "A", ""},
}

// DiscoveryMessage is one retained config document.
type DiscoveryMessage struct {
	Topic  string
	Config HADiscoveryConfig
}

func MeterDevice(baseTopic string) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{fmt.Sprintf("p1dlms_meter_%s", md5HashShort(baseTopic))},
		Manufacturer: "p1dlms",
		Model:        "DLMS/COSEM P1 meter",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("P1 meter %s", md5HashShort(baseTopic)),
	}
}

func HADiscoverySensorTopic(discoveryTopic, sensorType, deviceId, sensorId string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", discoveryTopic, sensorType, deviceId, sensorId)
}

// DiscoveryMessages returns the bridge connectivity sensor followed by one
// sensor per decodable quantity.
func DiscoveryMessages(client *MQTTClient) []DiscoveryMessage {
	dev := MeterDevice(client.baseTopic())
	deviceId := dev.Id[0]

	msgs := []DiscoveryMessage{{
		Topic: HADiscoverySensorTopic(client.DiscoveryTopic(), SENSOR_TYPE_BINARY, deviceId, SENSOR_ID_BRIDGE_STATE),
		Config: HADiscoveryConfig{
			Device:         dev,
			StateTopic:     client.BridgeStateTopic(),
			DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			Name:           "Bridge",
			UniqueId:       fmt.Sprintf("%s_%s", deviceId, SENSOR_ID_BRIDGE_STATE),
			Platform:       "mqtt",
			PayloadOn:      MQTT_PAYLOAD_ONLINE,
			PayloadOff:     MQTT_PAYLOAD_OFFLINE,
		},
	}}

	for _, q := range decoder.Quantities() {
		info := sensors[q]
		msgs = append(msgs, DiscoveryMessage{
			Topic: HADiscoverySensorTopic(client.DiscoveryTopic(), SENSOR_TYPE_SENSOR, deviceId, q.Key()),
			Config: HADiscoveryConfig{
				Device:            dev,
				StateTopic:        client.SensorStateTopic(q.Key()),
				StateClass:        info.stateClass,
				DeviceClass:       info.deviceClass,
				UnitOfMeasurement: info.unit,
				AvTopic:           client.BridgeStateTopic(),
				Name:              q.String(),
				UniqueId:          fmt.Sprintf("%s_%s", deviceId, q.Key()),
				Platform:          "mqtt",
				Icon:              info.icon,
			},
		})
	}
	return msgs
}

func md5HashShort(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}
