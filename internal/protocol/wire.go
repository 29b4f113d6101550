package protocol

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrUnknownMessage is returned when an envelope carries no variant
	// this package models. the real server sends plenty of those (user
	// lists, chat deliveries, ...), so it is not a parse failure.
	ErrUnknownMessage = errors.New("unknown message")

	errWireType   = errors.New("unexpected wire type")
	errOutOfRange = errors.New("varint out of range")
)

func MarshalClientMsg(msg ClientMsg) ([]byte, error) {
	return marshalEnvelope(msg)
}

func MarshalServerMsg(msg ServerMsg) ([]byte, error) {
	return marshalEnvelope(msg)
}

func marshalEnvelope(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("could not marshal nil message")
	}
	return appendMessage(nil, msg.field(), msg.appendTo(nil)), nil
}

func UnmarshalClientMsg(data []byte) (ClientMsg, error) {
	var msg ClientMsg
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		m := newClientMsg(num)
		if m == nil {
			return 0, nil
		}
		n, err := consumeMessage(typ, b, m)
		msg = m
		return n, err
	})
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal client msg: %w", err)
	}
	if msg == nil {
		return nil, ErrUnknownMessage
	}
	return msg, nil
}

func UnmarshalServerMsg(data []byte) (ServerMsg, error) {
	var msg ServerMsg
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		m := newServerMsg(num)
		if m == nil {
			return 0, nil
		}
		n, err := consumeMessage(typ, b, m)
		msg = m
		return n, err
	})
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal server msg: %w", err)
	}
	if msg == nil {
		return nil, ErrUnknownMessage
	}
	return msg, nil
}

// walk visits every field of an encoded message. fn returns how many bytes
// of the field value it consumed; 0 means the field is unknown and gets
// skipped.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
		}
		b = b[m:]
	}
	return nil
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendUint(b, num, protowire.EncodeBool(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendMessage(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func consumeUint(typ protowire.Type, b []byte, v *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, errWireType
	}
	x, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*v = x
	return n, nil
}

func consumeUint32(typ protowire.Type, b []byte, v *uint32) (int, error) {
	var x uint64
	n, err := consumeUint(typ, b, &x)
	if err != nil {
		return 0, err
	}
	*v, err = toUint32(x)
	return n, err
}

// toUint32 refuses to truncate: a wrong room or pack id is worse than a
// dropped frame.
func toUint32(x uint64) (uint32, error) {
	if x > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d does not fit uint32", errOutOfRange, x)
	}
	return uint32(x), nil
}

func consumeBool(typ protowire.Type, b []byte, v *bool) (int, error) {
	var x uint64
	n, err := consumeUint(typ, b, &x)
	*v = protowire.DecodeBool(x)
	return n, err
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, errWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeString(typ protowire.Type, b []byte, v *string) (int, error) {
	x, n, err := consumeBytes(typ, b)
	*v = string(x)
	return n, err
}

type unmarshaler interface {
	unmarshal(b []byte) error
}

func consumeMessage(typ protowire.Type, b []byte, m unmarshaler) (int, error) {
	x, n, err := consumeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	if err := m.unmarshal(x); err != nil {
		return 0, err
	}
	return n, nil
}
