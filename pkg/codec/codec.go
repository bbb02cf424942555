// Package codec handles the two wire formats conductor speaks: JSON and
// MessagePack. Responses are always encoded in the format the request
// used.
package codec

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/msgpack"
)

// Format identifies a wire format.
type Format string

const (
	JSON    Format = "json"
	Msgpack Format = "msgpack"
)

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == Msgpack {
		return ContentTypeMsgpack
	}
	return ContentTypeJSON
}

// FromRequest resolves the wire format from a request's Content-Type.
// Requests without a Content-Type default to JSON.
func FromRequest(r *http.Request) (Format, error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return JSON, nil
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", fmt.Errorf("invalid content type %q: %w", ct, err)
	}
	switch mediaType {
	case ContentTypeJSON:
		return JSON, nil
	case ContentTypeMsgpack, "application/x-msgpack":
		return Msgpack, nil
	default:
		return "", fmt.Errorf("unsupported content type %q", mediaType)
	}
}

// Marshal encodes v in the given format.
func Marshal(f Format, v interface{}) ([]byte, error) {
	if f == Msgpack {
		return msgpack.Marshal(v)
	}
	return json.Marshal(v)
}

// Unmarshal decodes data in the given format into v.
func Unmarshal(f Format, data []byte, v interface{}) error {
	if f == Msgpack {
		return msgpack.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

// Decode reads and decodes an entire request or response body.
func Decode(f Format, r io.Reader, v interface{}) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	return Unmarshal(f, data, v)
}

// Write encodes v and writes it as an HTTP response in the given format.
func Write(w http.ResponseWriter, f Format, status int, v interface{}) error {
	data, err := Marshal(f, v)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}
