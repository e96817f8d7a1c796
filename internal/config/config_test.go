package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"p1dlms/pkg/decoder"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, zapcore.InfoLevel, cfg.LogLevel)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, "none", cfg.Serial.Parity)
	assert.True(t, cfg.Serial.DTR)
	assert.Equal(t, 1024, cfg.Framer.MaxFrameSize)
	assert.Equal(t, decoder.DefaultProfile(), cfg.Profile.Decoder())
	assert.True(t, cfg.Summary.Enable)
	assert.False(t, cfg.MQTT.Enable)
	assert.Equal(t, "p1dlms", cfg.MQTT.BaseTopic)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("P1DLMS_SERIAL_PORT", "/dev/ttyUSB1")
	t.Setenv("P1DLMS_PROFILE_START_OFFSET", "18")
	t.Setenv("P1DLMS_MQTT_ENABLE", "true")
	t.Setenv("P1DLMS_MQTT_BASE_TOPIC", "Aidon_Meter")
	t.Setenv("P1DLMS_LOG_LEVEL", "trace")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 18, cfg.Profile.StartOffset)
	assert.True(t, cfg.MQTT.Enable)
	assert.Equal(t, "aidon_meter", cfg.MQTT.BaseTopic)
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p1dlms.yaml")
	content := `
serial:
  port: /dev/ttyAMA0
  baud: 2400
  parity: even
profile:
  classify_tariff: true
  scaler_offset: 5
redis:
  enable: true
  channel: meter
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyAMA0", cfg.Serial.Port)
	assert.Equal(t, 2400, cfg.Serial.Baud)
	assert.Equal(t, "even", cfg.Serial.Parity)
	assert.True(t, cfg.Profile.ClassifyTariff)
	assert.Equal(t, 5, cfg.Profile.ScalerOffset)
	assert.Equal(t, 20, cfg.Profile.StartOffset)
	assert.True(t, cfg.Redis.Enable)
	assert.Equal(t, "meter", cfg.Redis.Channel)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"negative offset", map[string]string{"P1DLMS_PROFILE_START_OFFSET": "-1"}},
		{"frame smaller than header", map[string]string{"P1DLMS_FRAMER_MAX_FRAME_SIZE": "30"}},
		{"bad data bits", map[string]string{"P1DLMS_SERIAL_DATABITS": "9"}},
		{"pipe without file", map[string]string{"P1DLMS_CAPTURE_PIPE": "true"}},
		{"bad topic", map[string]string{"P1DLMS_MQTT_ENABLE": "true", "P1DLMS_MQTT_BASE_TOPIC": "a/b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(viper.New())
			assert.Error(t, err)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLogLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLogLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLogLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLogLevel("bogus"))
}

func TestCheckMQTTTopic(t *testing.T) {
	topic, err := CheckMQTTTopic("Home_Meter1")
	require.NoError(t, err)
	assert.Equal(t, "home_meter1", topic)

	_, err = CheckMQTTTopic("home/meter")
	assert.Error(t, err)
	_, err = CheckMQTTTopic("")
	assert.Error(t, err)
}

func TestRedacted(t *testing.T) {
	cfg := Config{MQTT: MQTTConfig{Password: "secret"}, Redis: RedisConfig{Password: "pw"}}
	r := cfg.Redacted()
	assert.Equal(t, "*redacted*", r.MQTT.Password)
	assert.Equal(t, "*redacted*", r.Redis.Password)
	assert.Equal(t, "secret", cfg.MQTT.Password)
}

func TestDumpYAML(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("P1DLMS_MQTT_PASSWORD", "secret")
	v := viper.New()
	_, err := Load(v)
	require.NoError(t, err)

	out, err := DumpYAML(v)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "secret")

	var settings map[string]any
	require.NoError(t, yaml.Unmarshal(out, &settings))
	section := func(name string) map[string]any {
		m, ok := settings[name].(map[string]any)
		require.True(t, ok, name)
		return m
	}
	assert.Equal(t, "*redacted*", section("mqtt")["password"])
	assert.Equal(t, 115200, section("serial")["baud"])
	assert.Equal(t, "", section("redis")["password"])
	assert.Equal(t, "info", settings["log_level"])
}
