// Package ocr turns receipt images and documents into plain text.
package ocr

import (
	"context"
	"errors"
)

// ErrUnreadable is returned when the input could not be decoded.
var ErrUnreadable = errors.New("unreadable document")

// Recognizer extracts text from an encoded image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, image []byte) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, image []byte) (string, error) {
	return f(ctx, image)
}
