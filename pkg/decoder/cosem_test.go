package decoder

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwap(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(uint16(0x3412), Swap16(0x1234))
	assert.Equal(uint32(0x44332211), Swap32(0x11223344))
	for _, v := range []uint32{0, 1, 0xFF, 0xDEADBEEF, 0xFFFFFFFF} {
		assert.Equal(v, Swap32(Swap32(v)))
	}
	for _, v := range []uint16{0, 1, 0xFF00, 0xFFFF} {
		assert.Equal(v, Swap16(Swap16(v)))
	}
}

func TestDecodeDoubleLongUnsignedRoundTrip(t *testing.T) {
	check := func(v uint32) {
		buf := []byte{byte(TypeDoubleLongUnsigned), 0, 0, 0, 0}
		binary.BigEndian.PutUint32(buf[1:], v)
		got, n, err := DecodeValue(buf, 0, ObjectIdentifier{})
		if err != nil {
			t.Fatalf("DecodeValue(%d): %v", v, err)
		}
		if n != 4 || got.Kind != KindUnsigned32 || got.Uint != v {
			t.Fatalf("DecodeValue(%d) = %+v, %d", v, got, n)
		}
	}
	for v := uint64(0); v <= 0xFFFFFFFF; v += 0x00FEDCBB {
		check(uint32(v))
	}
	check(0xFFFFFFFF)
	check(1)
}

func TestDecodeDoubleLongUnsignedTruncated(t *testing.T) {
	// Tag followed by three of the four payload bytes.
	buf := []byte{0xAA, byte(TypeDoubleLongUnsigned), 0x00, 0x27, 0x10}
	_, n, err := DecodeValue(buf, len(buf)-4, ObjectIdentifier{})
	require.ErrorIs(t, err, ErrTruncated)
	assert.Equal(t, 0, n)
}

func TestDecodeLongUnsigned(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    uint32
		wantErr error
	}{
		{"zero", []byte{0x12, 0x00, 0x00}, 0, nil},
		{"one", []byte{0x12, 0x00, 0x01}, 1, nil},
		{"max", []byte{0x12, 0xFF, 0xFF}, 65535, nil},
		{"voltage", []byte{0x12, 0x09, 0x06}, 2310, nil},
		{"one byte short", []byte{0x12, 0x09}, 0, ErrTruncated},
		{"no payload", []byte{0x12}, 0, ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n, err := DecodeValue(tt.data, 0, ObjectIdentifier{})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			assert.Equal(t, KindUnsigned16, got.Kind)
			assert.Equal(t, tt.want, got.Uint)
		})
	}
}

func TestDecodeNull(t *testing.T) {
	got, n, err := DecodeValue([]byte{0x00}, 0, idVoltageL1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, KindNull, got.Kind)
}

func TestDecodeOctetString(t *testing.T) {
	t.Run("clock", func(t *testing.T) {
		data := append([]byte{byte(TypeOctetString)}, clockPayload...)
		got, n, err := DecodeValue(data, 0, idClock)
		require.NoError(t, err)
		assert.Equal(t, 13, n)
		assert.Equal(t, KindTimestamp, got.Kind)
		assert.Equal(t, "2024-05-01 14:30:00", got.Timestamp)
	})

	t.Run("clock length on other identifier stays opaque", func(t *testing.T) {
		data := append([]byte{byte(TypeOctetString)}, clockPayload...)
		got, n, err := DecodeValue(data, 0, ObjectIdentifier{1, 0, 1, 0, 0, 255})
		require.NoError(t, err)
		assert.Equal(t, 13, n)
		assert.Equal(t, KindOctets, got.Kind)
		assert.Equal(t, clockPayload[1:], got.Octets)
	})

	t.Run("short clock stays opaque", func(t *testing.T) {
		data := []byte{byte(TypeOctetString), 0x03, 'A', 'B', 'C'}
		got, n, err := DecodeValue(data, 0, idClock)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Equal(t, KindOctets, got.Kind)
		assert.Equal(t, []byte("ABC"), got.Octets)
	})

	t.Run("declared length overruns", func(t *testing.T) {
		_, _, err := DecodeValue([]byte{byte(TypeOctetString), 0x05, 'A'}, 0, idClock)
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("missing length byte", func(t *testing.T) {
		_, _, err := DecodeValue([]byte{byte(TypeOctetString)}, 0, idClock)
		assert.ErrorIs(t, err, ErrTruncated)
	})
}

func TestDecodeUnrecognized(t *testing.T) {
	for _, tag := range []byte{0x01, 0x02, 0x0F, 0x16, 0x7F, 0xFF} {
		got, n, err := DecodeValue([]byte{tag, 0, 0, 0, 0}, 0, ObjectIdentifier{})
		assert.ErrorIs(t, err, ErrUnrecognizedType, "tag 0x%02X", tag)
		assert.Equal(t, 0, n)
		assert.Equal(t, TypeTag(tag), got.Tag)
	}
}

func TestDecodeCursorPastEnd(t *testing.T) {
	_, _, err := DecodeValue([]byte{0x12, 0x00}, 2, ObjectIdentifier{})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestTypeTagString(t *testing.T) {
	assert.Equal(t, "long-unsigned", TypeLongUnsigned.String())
	assert.Equal(t, "unrecognized(0x7F)", TypeTag(0x7F).String())
}
