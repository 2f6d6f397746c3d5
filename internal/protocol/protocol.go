package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Field names carried in every datagram and in the store document
const (
	FieldUsername = "username"
	FieldMessage  = "message"
)

var (
	// ErrInvalidUTF8 is returned when a payload is not valid UTF-8
	ErrInvalidUTF8 = errors.New("payload is not valid UTF-8")
	// ErrEmptyField is returned when username or message is missing or blank
	ErrEmptyField = errors.New("username and message must be non-empty")
)

// Submission is the datagram payload: one message typed by one user.
// Layout: {"username": string, "message": string}
type Submission struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// DecodeError reports a datagram that could not be turned into a Submission
type DecodeError struct {
	Size int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode datagram (%d bytes): %v", e.Size, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Validate checks that both fields carry text after trimming
func (s Submission) Validate() error {
	if strings.TrimSpace(s.Username) == "" || strings.TrimSpace(s.Message) == "" {
		return ErrEmptyField
	}
	return nil
}

// Encode serializes a submission into a datagram payload
func Encode(s Submission) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	// Encoder appends a newline; the wire format is the bare object
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses a datagram payload. Any failure is reported as *DecodeError.
func Decode(data []byte) (Submission, error) {
	var s Submission

	if !utf8.Valid(data) {
		return s, &DecodeError{Size: len(data), Err: ErrInvalidUTF8}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return s, &DecodeError{Size: len(data), Err: errors.New("payload is not a JSON object")}
	}

	if err := json.Unmarshal(trimmed, &s); err != nil {
		return s, &DecodeError{Size: len(data), Err: err}
	}

	if err := s.Validate(); err != nil {
		return s, &DecodeError{Size: len(data), Err: err}
	}

	return s, nil
}
