// Package textgen defines the port to external text-generation services and
// the result type the insights pipeline consumes.
package textgen

import (
	"context"
	"errors"
	"sync"
)

// Status tells the caller which branch of the pipeline to take.
type Status string

const (
	StatusOK          Status = "ok"
	StatusUnavailable Status = "unavailable"
	StatusFailed      Status = "failed"
)

// ErrNotConfigured marks a generator that has no credentials.
var ErrNotConfigured = errors.New("text generation not configured")

// Prompt is a single-shot generation request.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Result is the outcome of one Generate call. Text is only meaningful when
// Status is StatusOK; Err explains the other two states.
type Result struct {
	Status Status
	Text   string
	Err    error
}

func OK(text string) Result {
	return Result{Status: StatusOK, Text: text}
}

func Unavailable(err error) Result {
	if err == nil {
		err = ErrNotConfigured
	}
	return Result{Status: StatusUnavailable, Err: err}
}

func Failed(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}

// Generator produces free text for a prompt. Implementations never panic
// and report every problem through the returned Result.
type Generator interface {
	Generate(ctx context.Context, p Prompt) Result
	Name() string
}

// Disabled is the generator used when no provider is configured.
type Disabled struct{}

func (Disabled) Generate(context.Context, Prompt) Result { return Unavailable(nil) }

func (Disabled) Name() string { return "none" }

// Static returns canned results, useful for tests and local development.
type Static struct {
	Result Result

	mu    sync.Mutex
	calls int
	last  Prompt
}

func (s *Static) Generate(_ context.Context, p Prompt) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = p
	return s.Result
}

// Calls returns how many times Generate ran and the last prompt it saw.
func (s *Static) Calls() (int, Prompt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.last
}

func (s *Static) Name() string { return "static" }
