// Package framing implements the length-prefixed transport of the draft
// server protocol.
//
// Every frame starts with a 2-byte big-endian header: bit 15 flags a
// compressed payload, bits 0-14 hold the payload length. A compressed
// payload is a qCompress container (4-byte big-endian inflated length
// followed by a zlib stream).
package framing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

const (
	HeaderSize      = 2
	MaxPayloadSize  = 0x7FFF
	InnerLengthSize = 4

	compressedFlag = 0x8000
	lengthMask     = 0x7FFF

	// inflating is capped so a bogus container can't balloon memory.
	maxInflatedSize = 16 << 20
)

var (
	// ErrMalformedPayload means a whole frame was read but its payload
	// could not be turned into a message. the stream is still aligned on
	// the next frame.
	ErrMalformedPayload = errors.New("malformed payload")
	ErrFrameTooLarge    = errors.New("frame too large")
)

type Frame struct {
	Compressed bool
	// Payload is the payload as transmitted, i.e. still compressed when
	// Compressed is set.
	Payload []byte
}

func (f *Frame) MarshalBinary() ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(f.Payload))
	}

	header := uint16(len(f.Payload))
	if f.Compressed {
		header |= compressedFlag
	}

	data := make([]byte, HeaderSize+len(f.Payload))
	binary.BigEndian.PutUint16(data[0:HeaderSize], header)
	copy(data[HeaderSize:], f.Payload)

	return data, nil
}

// ReadFrame blocks until one whole frame has been read from r.
func ReadFrame(r io.Reader) (*Frame, error) {
	var headerBytes [HeaderSize]byte
	if _, err := io.ReadFull(r, headerBytes[:]); err != nil {
		return nil, err
	}
	header := binary.BigEndian.Uint16(headerBytes[:])

	payload := make([]byte, header&lengthMask)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return &Frame{
		Compressed: header&compressedFlag != 0,
		Payload:    payload,
	}, nil
}

// Message returns the serialized message carried by the frame.
func (f *Frame) Message() ([]byte, error) {
	if !f.Compressed {
		return f.Payload, nil
	}
	return Decompress(f.Payload)
}

// Compress wraps msg into a qCompress container.
func Compress(msg []byte) ([]byte, error) {
	buf := bytes.Buffer{}

	var innerLength [InnerLengthSize]byte
	binary.BigEndian.PutUint32(innerLength[:], uint32(len(msg)))
	buf.Write(innerLength[:])

	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("could not create zlib writer: %w", err)
	}
	if _, err := zw.Write(msg); err != nil {
		return nil, fmt.Errorf("could not compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("could not flush zlib writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress unwraps a qCompress container. the inner length is skipped,
// the zlib stream is authoritative.
func Decompress(payload []byte) ([]byte, error) {
	if len(payload) < InnerLengthSize {
		return nil, fmt.Errorf("%w: compressed payload shorter than inner length (%d bytes)",
			ErrMalformedPayload, len(payload))
	}

	zr, err := zlib.NewReader(bytes.NewReader(payload[InnerLengthSize:]))
	if err != nil {
		return nil, fmt.Errorf("%w: could not open zlib stream: %v", ErrMalformedPayload, err)
	}
	defer zr.Close()

	msg, err := io.ReadAll(io.LimitReader(zr, maxInflatedSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: could not inflate: %v", ErrMalformedPayload, err)
	}
	if len(msg) > maxInflatedSize {
		return nil, fmt.Errorf("%w: inflated payload exceeds %d bytes", ErrMalformedPayload, maxInflatedSize)
	}

	return msg, nil
}
