package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"p1dlms/pkg/decoder"
)

func f64(v float64) *float64 { return &v }
func u32(v uint32) *uint32   { return &v }
func str(v string) *string   { return &v }

var fixedTime = time.Date(2024, 5, 1, 14, 30, 5, 0, time.UTC)

type recordingSink struct {
	name     string
	err      error
	readings []decoder.Reading
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) OnReading(_ context.Context, r decoder.Reading) error {
	s.readings = append(s.readings, r)
	return s.err
}

func TestFormatSummary(t *testing.T) {
	tests := []struct {
		name    string
		reading decoder.Reading
		want    []string
	}{
		{
			name:    "empty",
			reading: decoder.Reading{},
			want:    nil,
		},
		{
			name: "all phases",
			reading: decoder.Reading{
				Timestamp: str("2024-05-01 14:30:00"),
				VoltageL1: f64(231), VoltageL2: f64(230.4), VoltageL3: f64(229.8),
				CurrentL1: f64(1.23),
			},
			want: []string{
				"Timestamp: 2024-05-01 14:30:00",
				"Voltage (L1/L2/L3): 231.0 V / 230.4 V / 229.8 V",
				"Current (L1): 1.23 A",
			},
		},
		{
			name: "absent phases are skipped",
			reading: decoder.Reading{
				VoltageL1: f64(231), VoltageL3: f64(229.8),
			},
			want: []string{"Voltage (L1/L3): 231.0 V / 229.8 V"},
		},
		{
			name: "power and energy",
			reading: decoder.Reading{
				ActivePowerPlus:    f64(1.234),
				ActiveEnergyPlus:   u32(10000),
				ActiveEnergyMinus:  u32(0),
				ReactiveEnergyPlus: u32(1500),
			},
			want: []string{
				"Active Power (+): 1.234 kW",
				"Active Energy (+/-): 10.000 kWh / 0.000 kWh",
				"Reactive Energy (+): 1.500 kvarh",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSummary(tt.reading))
		})
	}
}

func TestSummaryLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewSummary(zap.New(core))
	require.NoError(t, s.OnReading(context.Background(), decoder.Reading{VoltageL1: f64(231)}))

	entries := logs.FilterMessage("frame summary").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "summary", s.Name())
}

func TestMultiContinuesAfterFailure(t *testing.T) {
	failing := &recordingSink{name: "failing", err: errors.New("boom")}
	ok := &recordingSink{name: "ok"}
	var failed []string

	m := NewMulti(nil, func(name string) { failed = append(failed, name) }, failing)
	m.Add(ok)
	assert.Equal(t, 2, m.Len())

	err := m.OnReading(context.Background(), decoder.Reading{VoltageL1: f64(231)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"failing"}, failed)
	assert.Len(t, failing.readings, 1)
	assert.Len(t, ok.readings, 1)
}

func TestMultiNoSinks(t *testing.T) {
	m := NewMulti(nil, nil)
	assert.NoError(t, m.OnReading(context.Background(), decoder.Reading{}))
}

func TestLatest(t *testing.T) {
	l := NewLatest()
	l.now = func() time.Time { return fixedTime }

	_, ok := l.Get()
	assert.False(t, ok)

	require.NoError(t, l.OnReading(context.Background(), decoder.Reading{VoltageL1: f64(231)}))
	require.NoError(t, l.OnReading(context.Background(), decoder.Reading{VoltageL1: f64(232)}))

	env, ok := l.Get()
	require.True(t, ok)
	assert.Equal(t, fixedTime, env.ReceivedAt)
	assert.Equal(t, 232.0, *env.VoltageL1)
}

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channel = channel
	p.payload, _ = message.([]byte)
	return redis.NewIntResult(1, p.err)
}

func TestRedisPublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	s := NewRedis(pub, "readings")
	s.now = func() time.Time { return fixedTime }

	err := s.OnReading(context.Background(), decoder.Reading{
		VoltageL1:        f64(231),
		ActiveEnergyPlus: u32(0),
	})
	require.NoError(t, err)
	assert.Equal(t, "readings", pub.channel)
	assert.JSONEq(t, `{"received_at":"2024-05-01T14:30:05Z","voltage_l1":231,"active_energy_plus":0}`, string(pub.payload))

	var env Envelope
	require.NoError(t, json.Unmarshal(pub.payload, &env))
	assert.Nil(t, env.CurrentL1)
}

func TestRedisPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection refused")}
	s := NewRedis(pub, "readings")

	err := s.OnReading(context.Background(), decoder.Reading{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis publish to readings")
	assert.Equal(t, "redis", s.Name())
}
