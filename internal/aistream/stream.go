// Package aistream consumes streamed model output for the AI edit menu. A
// Service creates Streams; a Session accumulates one stream at a time and
// turns the finished text into suggestions.
package aistream

import (
	"context"
	"errors"
	"fmt"
)

// ErrAborted is returned by Execute when the stream was aborted.
var ErrAborted = errors.New("stream aborted")

type Request struct {
	Prompt string `json:"prompt"`
	// Context is optional document text sent along with the prompt.
	Context string `json:"context,omitempty"`
}

type Chunk struct {
	Content string `json:"content"`
}

// Handlers receive stream output. Either may be nil.
type Handlers struct {
	OnChunk func(Chunk)
	OnError func(error)
}

// Stream is one model call. Execute blocks until the stream ends, fails or is
// aborted. Abort is safe to call repeatedly, before Execute and after it
// returns.
type Stream interface {
	Execute(ctx context.Context, h Handlers) error
	Abort()
}

type Service interface {
	CreateStream(req Request) Stream
}

// StreamError keeps the content received before a stream failed.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error after %d chars: %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
