package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"p1dlms/pkg/decoder"
	"p1dlms/pkg/framer"
)

// EnvPrefix prefixes every environment variable override, e.g.
// P1DLMS_SERIAL_PORT or P1DLMS_MQTT_HOST.
const EnvPrefix = "p1dlms"

type Config struct {
	LogLevel zapcore.Level `mapstructure:"-"`
	LogJSON  bool          `mapstructure:"log_json"`
	Verbose  bool          `mapstructure:"verbose"`

	Serial  SerialConfig  `mapstructure:"serial"`
	Framer  FramerConfig  `mapstructure:"framer"`
	Profile ProfileConfig `mapstructure:"profile"`
	Capture CaptureConfig `mapstructure:"capture"`
	Summary SummaryConfig `mapstructure:"summary"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Redis   RedisConfig   `mapstructure:"redis"`
	HTTP    HTTPConfig    `mapstructure:"http"`
}

type SerialConfig struct {
	Port     string
	Baud     int
	DataBits int `mapstructure:"databits"`
	Parity   string
	StopBits int `mapstructure:"stopbits"`
	// DTR raises the data request line the meter waits for before sending.
	DTR bool `mapstructure:"dtr"`
}

type FramerConfig struct {
	MaxFrameSize int `mapstructure:"max_frame_size"`
}

type ProfileConfig struct {
	StartOffset    int  `mapstructure:"start_offset"`
	TrailerMargin  int  `mapstructure:"trailer_margin"`
	ScalerOffset   int  `mapstructure:"scaler_offset"`
	ClassifyTariff bool `mapstructure:"classify_tariff"`
}

type CaptureConfig struct {
	File      string
	Pipe      bool
	BigEndian bool `mapstructure:"bigendian"`
}

type SummaryConfig struct {
	Enable bool
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

type RedisConfig struct {
	Enable   bool
	Addr     string
	Password string
	DB       int
	Channel  string
}

type HTTPConfig struct {
	Enable bool
	Port   uint
	Log    bool
}

// Decoder returns the meter profile described by the profile section.
func (c ProfileConfig) Decoder() decoder.Profile {
	return decoder.Profile{
		StartOffset:    c.StartOffset,
		TrailerMargin:  c.TrailerMargin,
		ScalerOffset:   c.ScalerOffset,
		ClassifyTariff: c.ClassifyTariff,
	}
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("verbose", false)
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("serial.databits", 8)
	v.SetDefault("serial.parity", "none")
	v.SetDefault("serial.stopbits", 1)
	v.SetDefault("serial.dtr", true)
	v.SetDefault("framer.max_frame_size", framer.DefaultMaxFrameSize)
	v.SetDefault("profile.start_offset", decoder.DefaultStartOffset)
	v.SetDefault("profile.trailer_margin", decoder.DefaultTrailerMargin)
	v.SetDefault("profile.scaler_offset", decoder.DefaultScalerOffset)
	v.SetDefault("profile.classify_tariff", false)
	v.SetDefault("capture.file", "")
	v.SetDefault("capture.pipe", false)
	v.SetDefault("capture.bigendian", false)
	v.SetDefault("summary.enable", true)
	v.SetDefault("mqtt.enable", false)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.base_topic", "p1dlms")
	v.SetDefault("mqtt.ha_discovery_enable", false)
	v.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	v.SetDefault("redis.enable", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "p1dlms_readings")
	v.SetDefault("http.enable", false)
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.log", false)
}

// Load reads defaults, environment overrides and, if CONFIG_FILE names an
// existing file, that file into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.LogLevel = ParseLogLevel(v.GetString("log_level"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseLogLevel maps a level name to a zap level; unknown names mean info.
func ParseLogLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func (cfg *Config) Validate() error {
	if err := cfg.Profile.Decoder().Validate(); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	minFrame := cfg.Profile.StartOffset + cfg.Profile.TrailerMargin
	if cfg.Framer.MaxFrameSize <= minFrame {
		return fmt.Errorf("framer.max_frame_size %d must exceed profile start_offset + trailer_margin (%d)", cfg.Framer.MaxFrameSize, minFrame)
	}
	if cfg.Serial.Baud <= 0 {
		return errors.New("serial.baud must be > 0")
	}
	if cfg.Serial.DataBits < 5 || cfg.Serial.DataBits > 8 {
		return fmt.Errorf("serial.databits %d out of range 5-8", cfg.Serial.DataBits)
	}
	if cfg.Capture.Pipe && cfg.Capture.File == "" {
		return errors.New("capture.pipe requires capture.file")
	}
	if cfg.MQTT.Enable {
		baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
		if err != nil {
			return errors.New("invalid mqtt.base_topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.BaseTopic = baseTopic
		haTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
		if err != nil {
			return errors.New("invalid mqtt.ha_discovery_topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.HADiscoveryTopic = haTopic
	}
	if cfg.Redis.Enable && cfg.Redis.Channel == "" {
		return errors.New("redis.channel must not be empty")
	}
	return nil
}

// Redacted returns a copy safe to log.
func (cfg Config) Redacted() Config {
	if cfg.MQTT.Password != "" {
		cfg.MQTT.Password = "*redacted*"
	}
	if cfg.Redis.Password != "" {
		cfg.Redis.Password = "*redacted*"
	}
	return cfg
}

var topicRegexp = regexp.MustCompile("^[a-z0-9_]+$")

// CheckMQTTTopic lower-cases a topic segment and rejects anything outside
// letters, digits and underscores.
func CheckMQTTTopic(topic string) (string, error) {
	lower := strings.ToLower(topic)
	if !topicRegexp.MatchString(lower) {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lower, nil
}

// DumpYAML renders the effective settings held by v with secrets masked.
func DumpYAML(v *viper.Viper) ([]byte, error) {
	settings := v.AllSettings()
	for _, section := range []string{"mqtt", "redis"} {
		if m, ok := settings[section].(map[string]interface{}); ok {
			if pw, ok := m["password"].(string); ok && pw != "" {
				m["password"] = "*redacted*"
			}
		}
	}
	return yaml.Marshal(settings)
}
