package decoder

import (
	"errors"
	"fmt"
)

// TypeTag is the DLMS data type byte preceding every value.
type TypeTag uint8

const (
	TypeNull               TypeTag = 0x00
	TypeDoubleLongUnsigned TypeTag = 0x06 // uint32
	TypeOctetString        TypeTag = 0x09
	TypeLongUnsigned       TypeTag = 0x12 // uint16, followed by a scaler
)

func (t TypeTag) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeDoubleLongUnsigned:
		return "double-long-unsigned"
	case TypeOctetString:
		return "octet-string"
	case TypeLongUnsigned:
		return "long-unsigned"
	default:
		return fmt.Sprintf("unrecognized(0x%02X)", uint8(t))
	}
}

var (
	// ErrTruncated means the declared or implied length runs past the frame.
	ErrTruncated = errors.New("element truncated")
	// ErrUnrecognizedType means the type tag is outside the supported set,
	// so the element boundary cannot be found.
	ErrUnrecognizedType = errors.New("unrecognized type tag")
)

// Kind says which field of a Value carries the decoded payload.
type Kind uint8

const (
	KindNull Kind = iota
	KindUnsigned16
	KindUnsigned32
	KindOctets
	KindTimestamp
)

// Value is a single decoded payload.
type Value struct {
	Tag       TypeTag
	Kind      Kind
	Uint      uint32
	Octets    []byte
	Timestamp string
}

const timestampLen = 12

// DecodeValue decodes the value whose type tag is at frame[cursor]. It
// returns the value and the number of bytes consumed after the tag.
func DecodeValue(frame []byte, cursor int, id ObjectIdentifier) (Value, int, error) {
	if cursor >= len(frame) {
		return Value{}, 0, fmt.Errorf("type tag at %d: %w", cursor, ErrTruncated)
	}
	tag := TypeTag(frame[cursor])
	payload := cursor + 1
	remaining := len(frame) - payload

	switch tag {
	case TypeNull:
		return Value{Tag: tag, Kind: KindNull}, 0, nil

	case TypeDoubleLongUnsigned:
		if remaining < 4 {
			return Value{}, 0, fmt.Errorf("%s at %d needs 4 bytes, have %d: %w", tag, payload, remaining, ErrTruncated)
		}
		return Value{Tag: tag, Kind: KindUnsigned32, Uint: BigEndian32(frame[payload:])}, 4, nil

	case TypeLongUnsigned:
		if remaining < 2 {
			return Value{}, 0, fmt.Errorf("%s at %d needs 2 bytes, have %d: %w", tag, payload, remaining, ErrTruncated)
		}
		return Value{Tag: tag, Kind: KindUnsigned16, Uint: uint32(BigEndian16(frame[payload:]))}, 2, nil

	case TypeOctetString:
		if remaining < 1 {
			return Value{}, 0, fmt.Errorf("%s at %d has no length byte: %w", tag, payload, ErrTruncated)
		}
		n := int(frame[payload])
		data := payload + 1
		if data+n > len(frame) {
			return Value{}, 0, fmt.Errorf("%s at %d declares %d bytes, have %d: %w", tag, data, n, len(frame)-data, ErrTruncated)
		}
		span := frame[data : data+n]
		if n == timestampLen && id.IsClock() {
			return Value{Tag: tag, Kind: KindTimestamp, Timestamp: decodeDateTime(span)}, 1 + n, nil
		}
		return Value{Tag: tag, Kind: KindOctets, Octets: span}, 1 + n, nil

	default:
		return Value{Tag: tag}, 0, fmt.Errorf("tag 0x%02X at %d: %w", uint8(tag), cursor, ErrUnrecognizedType)
	}
}

// decodeDateTime formats a COSEM date-time octet string. Byte 4 (day of
// week) and the trailing deviation/status bytes are not consulted.
func decodeDateTime(b []byte) string {
	year := BigEndian16(b[0:2])
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", year, b[2], b[3], b[5], b[6], b[7])
}
