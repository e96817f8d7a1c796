package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.bug.st/serial"
	"go.uber.org/zap"
	"golang.org/x/term"

	"p1dlms/internal/config"
	"p1dlms/internal/logging"
	"p1dlms/internal/metrics"
	"p1dlms/internal/mqtt"
	"p1dlms/internal/pipeline"
	"p1dlms/internal/server"
	"p1dlms/internal/sink"
	"p1dlms/pkg/decoder"
)

var (
	v = viper.New()

	rootCmd = &cobra.Command{
		Use:   "p1dlms [serial-port]",
		Short: "Decode DLMS/COSEM frames from a meter's P1 port",
		Long: "p1dlms reads HDLC-framed DLMS/COSEM push messages from an electricity meter's\n" +
			"P1 port, decodes the OBIS values and forwards readings to log, MQTT, Redis and HTTP.",
		Version:       versioninfo.Short(),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				v.Set("serial.port", args[0])
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if cfg.Serial.Port == "" {
				return errors.New("serial port is required")
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runService(cmd.Context(), cfg, logger)
		},
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := config.Load(v); err != nil {
				return err
			}
			out, err := config.DumpYAML(v)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	portsCmd = &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := serial.GetPortsList()
			if err != nil {
				return err
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
)

// flagBindings maps flags to config keys.
var flagBindings = map[string]string{
	"log-level":       "log_level",
	"log-json":        "log_json",
	"verbose":         "verbose",
	"baud":            "serial.baud",
	"databits":        "serial.databits",
	"parity":          "serial.parity",
	"stopbits":        "serial.stopbits",
	"dtr":             "serial.dtr",
	"max-frame-size":  "framer.max_frame_size",
	"start-offset":    "profile.start_offset",
	"trailer-margin":  "profile.trailer_margin",
	"scaler-offset":   "profile.scaler_offset",
	"tariff":          "profile.classify_tariff",
	"output":          "capture.file",
	"pipe":            "capture.pipe",
	"bigendian":       "capture.bigendian",
	"summary":         "summary.enable",
	"mqtt":            "mqtt.enable",
	"mqtt-host":       "mqtt.host",
	"mqtt-port":       "mqtt.port",
	"mqtt-base-topic": "mqtt.base_topic",
	"ha-discovery":    "mqtt.ha_discovery_enable",
	"redis":           "redis.enable",
	"redis-addr":      "redis.addr",
	"redis-channel":   "redis.channel",
	"http":            "http.enable",
	"http-port":       "http.port",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Bool("log-json", false, "log as JSON")
	pf.Int("start-offset", decoder.DefaultStartOffset, "frame offset where the OBIS scan starts")
	pf.Int("trailer-margin", decoder.DefaultTrailerMargin, "bytes at the frame end that are never scanned")
	pf.Int("scaler-offset", decoder.DefaultScalerOffset, "position of the scaler byte after a long-unsigned payload")
	pf.Bool("tariff", false, "require OBIS group E == 0 when classifying")

	f := rootCmd.Flags()
	f.BoolP("verbose", "v", false, "show live status on stderr")
	f.Int("baud", 115200, "baud rate")
	f.Int("databits", 8, "data bits (5-8)")
	f.String("parity", "none", "parity: none, odd, even, mark, space")
	f.Int("stopbits", 1, "stop bits: 1 or 2")
	f.Bool("dtr", true, "raise DTR to request data from the meter")
	f.Int("max-frame-size", 1024, "frame buffer size in bytes")
	f.StringP("output", "o", "", "write frames to a pcap file")
	f.Bool("pipe", false, "create a named pipe (FIFO) for live Wireshark streaming (Unix only)")
	f.Bool("bigendian", false, "write pcap in big-endian byte order")
	f.Bool("summary", true, "log a summary of every reading")
	f.Bool("mqtt", false, "publish readings to MQTT")
	f.String("mqtt-host", "localhost", "MQTT broker host")
	f.Int("mqtt-port", 1883, "MQTT broker port")
	f.String("mqtt-base-topic", "p1dlms", "MQTT base topic")
	f.Bool("ha-discovery", false, "publish Home Assistant discovery")
	f.Bool("redis", false, "publish readings on a Redis channel")
	f.String("redis-addr", "localhost:6379", "Redis address")
	f.String("redis-channel", "p1dlms_readings", "Redis pub/sub channel")
	f.Bool("http", false, "serve /healthcheck, /reading, /stats and /metrics")
	f.Uint("http-port", 8080, "HTTP port")

	for name, key := range flagBindings {
		flag := f.Lookup(name)
		if flag == nil {
			flag = pf.Lookup(name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(decodeCmd, configCmd, portsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runService(parent context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Debug("configuration", zap.Any("config", cfg.Redacted()))

	port, err := openPort(cfg.Serial)
	if err != nil {
		return err
	}
	defer func() { _ = port.Close() }()

	m := metrics.New()
	latest := sink.NewLatest()
	sinks := sink.NewMulti(logger.Named("sink"), func(name string) {
		m.SinkErrors.WithLabelValues(name).Inc()
	}, latest)
	if cfg.Summary.Enable {
		sinks.Add(sink.NewSummary(logger.Named("summary")))
	}

	if cfg.Redis.Enable {
		client := sink.NewRedisClient(cfg.Redis)
		defer func() { _ = client.Close() }()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable, will retry per reading", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		sinks.Add(sink.NewRedis(client, cfg.Redis.Channel))
	}

	if cfg.MQTT.Enable {
		bridge, err := startMQTT(cfg.MQTT, logger.Named("mqtt"))
		if err != nil {
			return err
		}
		defer bridge.Stop()
		sinks.Add(bridge)
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger.Named("pipeline")),
		pipeline.WithMetrics(m),
		pipeline.WithMaxFrameSize(cfg.Framer.MaxFrameSize),
	}
	if cfg.Capture.File != "" {
		pw, closeCapture, err := openCapture(cfg.Capture, logger)
		if err != nil {
			return err
		}
		defer closeCapture()
		opts = append(opts, pipeline.WithCapture(pw))
	}

	dec := decoder.New(cfg.Profile.Decoder(), logger.Named("decoder"))
	p := pipeline.New(dec, sinks, opts...)

	var running atomic.Bool
	if cfg.HTTP.Enable {
		srv := server.NewServer(cfg.HTTP, server.Deps{
			Latest:   latest,
			Gatherer: m.Registry(),
			Stats:    p.Stats,
			Healthy:  running.Load,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http server forced to shutdown", zap.Error(err))
			}
		}()
		logger.Info("http server listening", zap.String("addr", srv.Addr))
	}

	var status sync.WaitGroup
	statusCtx, stopStatus := context.WithCancel(ctx)
	if cfg.Verbose && term.IsTerminal(int(os.Stderr.Fd())) {
		enableTerminalStatus()
		status.Add(1)
		go func() {
			defer status.Done()
			runStatus(statusCtx, os.Stderr, p.Stats)
		}()
	}

	logger.Info("capturing",
		zap.String("port", cfg.Serial.Port),
		zap.Int("baud", cfg.Serial.Baud),
		zap.String("capture", cfg.Capture.File),
		zap.Int("sinks", sinks.Len()),
	)

	running.Store(true)
	err = p.Run(ctx, port)
	running.Store(false)
	stopStatus()
	status.Wait()

	st := p.Stats()
	logger.Info("stopped",
		zap.Uint64("bytes", st.Bytes),
		zap.Uint64("frames", st.Frames),
		zap.Uint64("readings", st.Readings),
		zap.Uint64("dropped", st.Dropped),
		zap.Uint64("overflows", st.Overflows),
		zap.Uint64("captured", st.Captured),
	)
	if err != nil {
		return fmt.Errorf("serial read: %w", err)
	}
	return nil
}

func startMQTT(cfg config.MQTTConfig, logger *zap.Logger) (*mqtt.Bridge, error) {
	var bridge *mqtt.Bridge
	client := mqtt.CreateMQTTClient(cfg, mqtt.OptsFromConfig(cfg),
		func(c paho.Client) { bridge.HandleConnect(c) },
		func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		})
	bridge = mqtt.NewBridge(client, cfg.HADiscoveryEnable, logger)
	if err := bridge.Start(); err != nil {
		return nil, fmt.Errorf("mqtt %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	logger.Info("mqtt connected", zap.String("host", cfg.Host), zap.String("base_topic", cfg.BaseTopic))
	return bridge, nil
}
