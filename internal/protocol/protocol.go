package protocol

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

const (
	maxPayloadSize = 10 * 1024 * 1024 // 10MB max payload size
)

var (
	// ErrNotText is returned when a frame is not a text frame.
	ErrNotText = errors.New("frame is not text")
	// ErrInvalidUTF8 is returned for text that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("text is not valid UTF-8")
	// ErrPayloadTooLarge is returned for frames over the payload limit.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// MaxPayloadSize returns the largest text payload accepted in either direction.
func MaxPayloadSize() int {
	return maxPayloadSize
}

// EncodeText validates text and returns it as a frame payload.
// The payload is the text verbatim; no framing is added.
func EncodeText(text string) ([]byte, error) {
	if err := validate(len(text), utf8.ValidString(text)); err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// DecodeText returns the text carried by a frame of the given gorilla message type.
func DecodeText(messageType int, data []byte) (string, error) {
	if messageType != websocket.TextMessage {
		return "", fmt.Errorf("%w: message type %d", ErrNotText, messageType)
	}
	if err := validate(len(data), utf8.Valid(data)); err != nil {
		return "", err
	}
	return string(data), nil
}

func validate(size int, validUTF8 bool) error {
	if size > maxPayloadSize {
		return fmt.Errorf("%w: %d exceeds maximum %d bytes", ErrPayloadTooLarge, size, maxPayloadSize)
	}
	if !validUTF8 {
		return ErrInvalidUTF8
	}
	return nil
}
