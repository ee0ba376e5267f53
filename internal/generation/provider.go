// Package generation produces answers through an ordered chain of language
// model providers, degrading to a fixed message when all of them fail.
package generation

import (
	"context"
	"errors"
)

var (
	ErrEmptyResponse    = errors.New("provider returned an empty response")
	ErrImageUnsupported = errors.New("no configured provider accepts image input")
)

// Provider generates text from a prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Image is an inline image sent alongside a prompt.
type Image struct {
	Data     []byte
	MIMEType string
}

// VisionProvider is a Provider that also accepts image input.
type VisionProvider interface {
	Provider
	GenerateFromImage(ctx context.Context, prompt string, img Image) (string, error)
}
