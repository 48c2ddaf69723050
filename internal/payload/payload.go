// ABOUTME: Length-tagged envelope codec for versioned and unversioned slot payloads
// ABOUTME: Header is written with encoding/binary, bodies are strict JSON

package payload

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	kindVersioned   byte = 'V'
	kindUnversioned byte = 'U'

	versionedHeaderSize   = 1 + 4 + 4
	unversionedHeaderSize = 1 + 4
)

var (
	// ErrMalformed is returned when the envelope framing is broken.
	ErrMalformed = errors.New("malformed payload")

	// ErrNotVersioned is returned when a versioned parse sees another envelope kind.
	ErrNotVersioned = errors.New("payload is not versioned")

	// ErrNotUnversioned is returned when an unversioned parse sees another envelope kind.
	ErrNotUnversioned = errors.New("payload is not unversioned")

	// ErrVersionMismatch is returned when the stored version differs from the requested one.
	ErrVersionMismatch = errors.New("payload version mismatch")
)

// DecodeError is returned when a body does not match the shape it was decoded as.
type DecodeError struct {
	// Version is the declared version, or -1 for unversioned payloads.
	Version int
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Version < 0 {
		return fmt.Sprintf("decoding unversioned payload: %v", e.Err)
	}
	return fmt.Sprintf("decoding payload as version %d: %v", e.Version, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Validator is implemented by payload types that check their own invariants after decoding.
type Validator interface {
	Validate() error
}

// ParseVersion returns the version tag of a versioned payload without decoding the body.
func ParseVersion(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrMalformed)
	}
	if data[0] != kindVersioned {
		return 0, ErrNotVersioned
	}
	if len(data) < 1+4 {
		return 0, fmt.Errorf("%w: truncated version header", ErrMalformed)
	}
	return int(binary.BigEndian.Uint32(data[1:5])), nil
}

// ProducePayload encodes value with the version tag ahead of the body.
func ProducePayload(value any, version int) ([]byte, error) {
	if version < 0 || uint64(version) > math.MaxUint32 {
		return nil, fmt.Errorf("version %d out of range", version)
	}
	body, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding payload body: %w", err)
	}

	buf := bytes.NewBuffer(make([]byte, 0, versionedHeaderSize+len(body)))
	buf.WriteByte(kindVersioned)
	if err := binary.Write(buf, binary.BigEndian, uint32(version)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(len(body))); err != nil {
		return nil, err
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

// ParsePayload decodes a versioned payload as T, which must be the record shape of version.
func ParsePayload[T any](data []byte, version int) (T, error) {
	var zero T

	stored, err := ParseVersion(data)
	if err != nil {
		return zero, err
	}
	if stored != version {
		return zero, fmt.Errorf("%w: stored %d, requested %d", ErrVersionMismatch, stored, version)
	}

	body, err := readBody(data, versionedHeaderSize)
	if err != nil {
		return zero, err
	}

	var value T
	if err := decodeStrict(body, &value); err != nil {
		return zero, &DecodeError{Version: version, Err: err}
	}
	return value, nil
}

// ProduceUnversionedPayload encodes value without a version tag.
func ProduceUnversionedPayload(value any) ([]byte, error) {
	body, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding payload body: %w", err)
	}

	buf := bytes.NewBuffer(make([]byte, 0, unversionedHeaderSize+len(body)))
	buf.WriteByte(kindUnversioned)
	if err := binary.Write(buf, binary.BigEndian, uint32(len(body))); err != nil {
		return nil, err
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

// ParseUnversionedPayload decodes an unversioned payload as T.
func ParseUnversionedPayload[T any](data []byte) (T, error) {
	var zero T

	if len(data) == 0 {
		return zero, fmt.Errorf("%w: empty", ErrMalformed)
	}
	if data[0] != kindUnversioned {
		return zero, ErrNotUnversioned
	}

	body, err := readBody(data, unversionedHeaderSize)
	if err != nil {
		return zero, err
	}

	var value T
	if err := decodeStrict(body, &value); err != nil {
		return zero, &DecodeError{Version: -1, Err: err}
	}
	return value, nil
}

// readBody checks the length field that ends the header and returns the body it frames.
func readBody(data []byte, headerSize int) ([]byte, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: truncated header", ErrMalformed)
	}
	length := binary.BigEndian.Uint32(data[headerSize-4 : headerSize])
	body := data[headerSize:]
	if uint64(len(body)) != uint64(length) {
		return nil, fmt.Errorf("%w: body is %d bytes, header says %d", ErrMalformed, len(body), length)
	}
	return body, nil
}

func decodeStrict(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after body")
	}
	if validator, ok := v.(Validator); ok {
		return validator.Validate()
	}
	return nil
}
