package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

type DecodeErrorKind int

const (
	DecodeEncoding DecodeErrorKind = iota + 1
	DecodeSchema
)

func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeEncoding:
		return "encoding"
	case DecodeSchema:
		return "schema"
	default:
		return "unknown"
	}
}

type DecodeError struct {
	Kind DecodeErrorKind
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message (%s): %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeKind reports whether err is a DecodeError of the given kind.
func IsDecodeKind(err error, kind DecodeErrorKind) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.Kind == kind
}

// wireMessage mirrors Message with pointers so absent fields can be told apart
// from zero values.
type wireMessage struct {
	Type      *string   `json:"type"`
	Highlight *bool     `json:"highlight"`
	Message   *string   `json:"message"`
	Away      *bool     `json:"away"`
	Channel   *string   `json:"channel"`
	Server    *string   `json:"server"`
	Date      *string   `json:"date"`
	Tags      *[]string `json:"tags"`
}

// Decode parses one delivery payload. It either returns the full message or
// fails; type, message, channel and tags are required.
func Decode(raw []byte) (Message, error) {
	if !utf8.Valid(raw) {
		return Message{}, &DecodeError{Kind: DecodeEncoding, Err: errors.New("payload is not valid UTF-8")}
	}

	var w wireMessage
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&w); err != nil {
		return Message{}, &DecodeError{Kind: DecodeSchema, Err: err}
	}
	if dec.More() {
		return Message{}, &DecodeError{Kind: DecodeSchema, Err: errors.New("trailing data after message object")}
	}

	switch {
	case w.Type == nil:
		return Message{}, missingField("type")
	case w.Message == nil:
		return Message{}, missingField("message")
	case w.Channel == nil:
		return Message{}, missingField("channel")
	case w.Tags == nil:
		return Message{}, missingField("tags")
	}

	return Message{
		Type:      MessageType(*w.Type),
		Highlight: deref(w.Highlight),
		Body:      *w.Message,
		Away:      deref(w.Away),
		Channel:   *w.Channel,
		Server:    deref(w.Server),
		Timestamp: deref(w.Date),
		Tags:      *w.Tags,
	}, nil
}

func missingField(name string) error {
	return &DecodeError{Kind: DecodeSchema, Err: fmt.Errorf("missing required field %q", name)}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
