package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// Frame is the wire envelope for backend traffic. Payload is JSON,
// brotli-compressed when it crosses the size floor; tiny frames skip
// compression since the header overhead outweighs the gain.
type Frame struct {
	Kind     string `json:"kind"`
	Encoding string `json:"encoding"`
	Payload  []byte `json:"payload"`
}

const (
	encodingJSON   = "json"
	encodingBrotli = "br"
)

// encodeFrame marshals v into a frame, compressing above floor bytes
func encodeFrame(kind string, v interface{}, floor int) ([]byte, bool, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, false, fmt.Errorf("api: encode %s: %w", kind, err)
	}

	frame := Frame{Kind: kind, Encoding: encodingJSON, Payload: payload}
	compressed := false

	if floor > 0 && len(payload) >= floor {
		var buf bytes.Buffer
		w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
		if _, err := w.Write(payload); err == nil && w.Close() == nil && buf.Len() < len(payload) {
			frame.Encoding = encodingBrotli
			frame.Payload = buf.Bytes()
			compressed = true
		}
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, false, fmt.Errorf("api: encode frame %s: %w", kind, err)
	}
	return data, compressed, nil
}

// decodeFrame reverses encodeFrame, returning the kind and raw JSON
// payload
func decodeFrame(data []byte) (string, []byte, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return "", nil, fmt.Errorf("api: decode frame: %w", err)
	}

	switch frame.Encoding {
	case encodingJSON, "":
		return frame.Kind, frame.Payload, nil
	case encodingBrotli:
		payload, err := io.ReadAll(brotli.NewReader(bytes.NewReader(frame.Payload)))
		if err != nil {
			return "", nil, fmt.Errorf("api: decompress frame %s: %w", frame.Kind, err)
		}
		return frame.Kind, payload, nil
	default:
		return "", nil, fmt.Errorf("api: unknown frame encoding %q", frame.Encoding)
	}
}
