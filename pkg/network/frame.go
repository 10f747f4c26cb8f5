package network

import (
	"fmt"
	"sync"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
	"github.com/klauspost/compress/zstd"
)

const (
	frameRaw  byte = 0
	frameZstd byte = 1

	// maxDecodedFrame bounds the memory a single compressed frame may expand to.
	maxDecodedFrame = 16 * messages.MessageBufferSize
)

// Framer wraps encoded envelopes in a one-byte header and optionally
// compresses them with zstd. It is safe for concurrent use.
type Framer struct {
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
	close    sync.Once
}

// NewFramer creates a Framer. Frames are always decodable regardless of
// compress, which only controls what Frame produces.
func NewFramer(compress bool) (*Framer, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedFrame), zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Framer{
		compress: compress,
		encoder:  encoder,
		decoder:  decoder,
	}, nil
}

// Frame prefixes b with the frame header, compressing it when enabled.
func (f *Framer) Frame(b []byte) []byte {
	if !f.compress {
		frame := make([]byte, 0, len(b)+1)
		frame = append(frame, frameRaw)
		return append(frame, b...)
	}
	return f.encoder.EncodeAll(b, []byte{frameZstd})
}

// Unframe strips the header and decompresses if needed.
func (f *Framer) Unframe(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", messages.ErrMalformedEnvelope)
	}
	switch frame[0] {
	case frameRaw:
		return frame[1:], nil
	case frameZstd:
		b, err := f.decoder.DecodeAll(frame[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decompress frame: %v", messages.ErrMalformedEnvelope, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: unknown frame header %d", messages.ErrMalformedEnvelope, frame[0])
	}
}

// Close releases the zstd resources. Later calls do nothing.
func (f *Framer) Close() {
	f.close.Do(func() {
		f.encoder.Close()
		f.decoder.Close()
	})
}
