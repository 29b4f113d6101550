package framing

import (
	"errors"
	"fmt"
	"io"

	"github.com/mildmongrel/thicket/internal/protocol"
)

type CompressionMode int

const (
	// CompressionAuto compresses only when that makes the payload smaller.
	CompressionAuto CompressionMode = iota
	CompressionNever
	CompressionAlways
)

func ParseCompressionMode(s string) (CompressionMode, error) {
	switch s {
	case "auto", "":
		return CompressionAuto, nil
	case "never":
		return CompressionNever, nil
	case "always":
		return CompressionAlways, nil
	}
	return 0, fmt.Errorf("unknown compression mode %q", s)
}

// EncodeClientMsg frames a client message. clients never compress.
func EncodeClientMsg(msg protocol.ClientMsg) ([]byte, error) {
	payload, err := protocol.MarshalClientMsg(msg)
	if err != nil {
		return nil, fmt.Errorf("could not marshal %s: %w", protocol.Name(msg), err)
	}
	return encode(payload, CompressionNever)
}

func EncodeServerMsg(msg protocol.ServerMsg, mode CompressionMode) ([]byte, error) {
	payload, err := protocol.MarshalServerMsg(msg)
	if err != nil {
		return nil, fmt.Errorf("could not marshal %s: %w", protocol.Name(msg), err)
	}
	return encode(payload, mode)
}

func encode(payload []byte, mode CompressionMode) ([]byte, error) {
	frame := Frame{Payload: payload}

	if mode != CompressionNever {
		compressed, err := Compress(payload)
		if err != nil {
			return nil, err
		}
		if mode == CompressionAlways || len(compressed) < len(payload) {
			frame = Frame{Compressed: true, Payload: compressed}
		}
	}

	return frame.MarshalBinary()
}

// DecodeServerMsg blocks until one frame has been read from r and returns
// the message it carries.
//
// Errors wrapping ErrMalformedPayload or protocol.ErrUnknownMessage leave
// the stream aligned on the next frame and are safe to skip. any other
// error comes from the reader itself.
func DecodeServerMsg(r io.Reader) (protocol.ServerMsg, error) {
	data, err := readMessage(r)
	if err != nil {
		return nil, err
	}

	msg, err := protocol.UnmarshalServerMsg(data)
	if err != nil {
		return nil, wrapUnmarshalErr(err)
	}
	return msg, nil
}

func DecodeClientMsg(r io.Reader) (protocol.ClientMsg, error) {
	data, err := readMessage(r)
	if err != nil {
		return nil, err
	}

	msg, err := protocol.UnmarshalClientMsg(data)
	if err != nil {
		return nil, wrapUnmarshalErr(err)
	}
	return msg, nil
}

func readMessage(r io.Reader) ([]byte, error) {
	frame, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return frame.Message()
}

func wrapUnmarshalErr(err error) error {
	if errors.Is(err, protocol.ErrUnknownMessage) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
}

// Skippable reports whether a decode error concerns only the frame just
// read, so the reader can carry on with the next one.
func Skippable(err error) bool {
	return errors.Is(err, ErrMalformedPayload) || errors.Is(err, protocol.ErrUnknownMessage)
}
