package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// FallbackMessage is returned to users when no provider produced an answer.
const FallbackMessage = "I'm sorry, I couldn't generate an answer right now. Please try again in a little while."

// DefaultTimeout bounds a single provider attempt.
const DefaultTimeout = 60 * time.Second

// Failure records one provider attempt that did not produce text.
type Failure struct {
	Provider string
	Err      error
}

// Outcome is the full result of a chain run.
type Outcome struct {
	Text string
	// Provider is the name of the provider that answered, empty when degraded.
	Provider string
	Failures []Failure
	Degraded bool
}

// Chain tries providers in a fixed priority order and returns the first success.
// It is immutable after construction and safe for concurrent use.
type Chain struct {
	providers []Provider
	vision    []VisionProvider
	timeout   time.Duration
	logger    *slog.Logger
}

// NewChain creates a chain over providers in the given order. The image-capable
// subset is resolved here once.
func NewChain(providers []Provider, timeout time.Duration, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Chain{
		providers: append([]Provider(nil), providers...),
		timeout:   timeout,
		logger:    logger,
	}
	for _, p := range c.providers {
		if vp, ok := p.(VisionProvider); ok {
			c.vision = append(c.vision, vp)
		}
	}
	return c
}

// Providers returns the provider names in priority order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// SupportsImageInput reports whether any provider accepts images.
func (c *Chain) SupportsImageInput() bool {
	return len(c.vision) > 0
}

// Generate returns the first provider's answer, or FallbackMessage when every
// provider fails. It never returns an error.
func (c *Chain) Generate(ctx context.Context, prompt string) string {
	return c.GenerateDetailed(ctx, prompt).Text
}

// GenerateDetailed is Generate with the provider that answered and the failures recorded.
func (c *Chain) GenerateDetailed(ctx context.Context, prompt string) Outcome {
	attempts := make([]attempt, len(c.providers))
	for i, p := range c.providers {
		attempts[i] = attempt{
			name: p.Name(),
			call: func(ctx context.Context) (string, error) { return p.Generate(ctx, prompt) },
		}
	}
	return c.run(ctx, attempts)
}

// GenerateFromImage asks the image-capable providers to answer prompt about img.
// It returns ErrImageUnsupported when no such provider is configured and
// otherwise degrades to FallbackMessage like Generate.
func (c *Chain) GenerateFromImage(ctx context.Context, prompt string, img Image) (Outcome, error) {
	if !c.SupportsImageInput() {
		return Outcome{}, ErrImageUnsupported
	}

	attempts := make([]attempt, len(c.vision))
	for i, p := range c.vision {
		attempts[i] = attempt{
			name: p.Name(),
			call: func(ctx context.Context) (string, error) { return p.GenerateFromImage(ctx, prompt, img) },
		}
	}
	return c.run(ctx, attempts), nil
}

type attempt struct {
	name string
	call func(ctx context.Context) (string, error)
}

func (c *Chain) run(ctx context.Context, attempts []attempt) Outcome {
	var out Outcome

	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("Generation cancelled", "provider", a.name, "error", err)
			out.Failures = append(out.Failures, Failure{Provider: a.name, Err: err})
			break
		}

		start := time.Now()
		text, err := c.try(ctx, a)
		if err != nil {
			c.logger.Warn("Provider failed, trying next",
				"provider", a.name,
				"error", err,
				"duration", time.Since(start))
			out.Failures = append(out.Failures, Failure{Provider: a.name, Err: err})
			continue
		}

		c.logger.Debug("Provider answered",
			"provider", a.name,
			"duration", time.Since(start))
		out.Text = text
		out.Provider = a.name
		return out
	}

	c.logger.Error("All providers failed", "attempts", len(out.Failures))
	out.Text = FallbackMessage
	out.Degraded = true
	return out
}

// try runs one attempt under the per-attempt timeout. A provider that ignores
// its context is abandoned when the timeout fires.
func (c *Chain) try(ctx context.Context, a attempt) (string, error) {
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("provider panicked: %v", r)}
			}
		}()
		text, err := a.call(actx)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		if strings.TrimSpace(r.text) == "" {
			return "", ErrEmptyResponse
		}
		return r.text, nil
	case <-actx.Done():
		return "", fmt.Errorf("attempt timed out after %s: %w", c.timeout, actx.Err())
	}
}
