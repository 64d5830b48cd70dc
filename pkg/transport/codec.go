package transport

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"github.com/VadymVolin/unde-library/pkg/wire"
)

// gzipMagic starts every gzip stream. A JSON document never begins with it.
var gzipMagic = []byte{0x1f, 0x8b}

// ErrDecompressedTooLarge indicates a gzip payload that inflates past the limit.
var ErrDecompressedTooLarge = errors.New("decompressed payload too large")

// DecodeError reports a frame whose payload could not be turned into a
// message. The stream itself is still in sync; only this frame is lost.
type DecodeError struct {
	// Size is the payload size in bytes.
	Size int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame (%d bytes): %v", e.Size, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Codec converts messages to frame payloads and back.
type Codec struct {
	// Compress gzips each outgoing JSON document.
	Compress bool

	// MaxDecompressedSize bounds the size of an inflated payload.
	// Zero means DefaultMaxFrameSize.
	MaxDecompressedSize int64
}

// Encode serializes msg into a frame payload.
func (c Codec) Encode(msg wire.Message) ([]byte, error) {
	data, err := wire.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if !c.Compress {
		return data, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a frame payload. Gzip payloads are recognized by their
// magic bytes regardless of the Compress setting. Failures are returned
// as *DecodeError.
func (c Codec) Decode(payload []byte) (wire.Message, error) {
	data := payload
	if IsCompressed(payload) {
		inflated, err := c.inflate(payload)
		if err != nil {
			return nil, &DecodeError{Size: len(payload), Err: err}
		}
		data = inflated
	}

	msg, err := wire.Unmarshal(data)
	if err != nil {
		return nil, &DecodeError{Size: len(payload), Err: err}
	}
	return msg, nil
}

func (c Codec) inflate(payload []byte) ([]byte, error) {
	limit := c.MaxDecompressedSize
	if limit <= 0 {
		limit = DefaultMaxFrameSize
	}

	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrDecompressedTooLarge
	}
	return data, nil
}

// IsCompressed reports whether payload is a gzip stream.
func IsCompressed(payload []byte) bool {
	return bytes.HasPrefix(payload, gzipMagic)
}
