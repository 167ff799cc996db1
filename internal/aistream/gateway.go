package aistream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	maxEventSize        = 64 * 1024
	defaultSystemPrompt = "You edit notes. Reply with the replacement text only, or with a JSON suggestion " +
		`{"textToReplace","textReplacement","reason","textBefore","textAfter"} or an array of them.`
)

type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	System  string
}

// Gateway streams chat completions from an OpenAI compatible endpoint.
type Gateway struct {
	baseURL string
	apiKey  string
	model   string
	system  string
	client  *http.Client
}

func NewGateway(cfg GatewayConfig) *Gateway {
	system := cfg.System
	if system == "" {
		system = defaultSystemPrompt
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Gateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		system:  system,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *Gateway) Configured() bool {
	return g.baseURL != "" && g.model != ""
}

func (g *Gateway) CreateStream(req Request) Stream {
	return &gatewayStream{gateway: g, req: req}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type gatewayStream struct {
	gateway *Gateway
	req     Request

	mu      sync.Mutex
	cancel  context.CancelFunc
	aborted bool
}

func (s *gatewayStream) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *gatewayStream) isAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

func (s *gatewayStream) Execute(ctx context.Context, h Handlers) error {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return ErrAborted
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	var partial strings.Builder
	err := s.run(ctx, func(content string) {
		partial.WriteString(content)
		if h.OnChunk != nil {
			h.OnChunk(Chunk{Content: content})
		}
	})
	if err == nil {
		return nil
	}
	if s.isAborted() {
		return ErrAborted
	}
	streamErr := &StreamError{Partial: partial.String(), Err: err}
	if h.OnError != nil {
		h.OnError(streamErr)
	}
	return streamErr
}

func (s *gatewayStream) run(ctx context.Context, emit func(string)) error {
	g := s.gateway
	messages := []chatMessage{{Role: "system", Content: g.system}}
	if s.req.Context != "" {
		messages = append(messages, chatMessage{Role: "user", Content: "Document:\n" + s.req.Context})
	}
	messages = append(messages, chatMessage{Role: "user", Content: s.req.Prompt})
	body, err := json.Marshal(chatRequest{Model: g.model, Messages: messages, Stream: true})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	reader := newSSEReader(resp.Body)
	for {
		data, err := reader.next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		if bytes.Equal(data, []byte("[DONE]")) {
			return nil
		}
		var chunk streamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			return fmt.Errorf("gateway error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			emit(content)
		}
		if chunk.Choices[0].FinishReason != "" {
			return nil
		}
	}
}

// sseReader yields the data payload of each server-sent event.
type sseReader struct {
	reader *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{reader: bufio.NewReaderSize(r, 4096)}
}

func (s *sseReader) next() ([]byte, error) {
	var data [][]byte
	size := 0
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
			return nil, err
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
			continue
		}
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		payload := bytes.TrimPrefix(line[5:], []byte(" "))
		size += len(payload)
		if size > maxEventSize {
			return nil, fmt.Errorf("event exceeds %d bytes", maxEventSize)
		}
		data = append(data, payload)
	}
}
