package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// streamBufferSize bounds the fragment channel. When it fills up, the
// producer blocks, which in turn stops reading the response body and lets
// TCP backpressure pause the backend.
const streamBufferSize = 16

// OllamaClient implements Generator against the Ollama /api/generate
// endpoint.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaClient creates a client for the given base URL and model.
// timeout is the first-byte deadline for each generation call; the stream
// itself may run longer.
func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaClient{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: timeout,
			},
		},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate runs a single-shot completion and returns the full text. No
// partial output is ever returned: on timeout or transport failure the call
// fails as a whole.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.post(ctx, generateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", classify(err), err)
	}
	return out.Response, nil
}

// GenerateStream runs a streaming completion. Fragments arrive in generation
// order; the terminal fragment has Done set, or Err set when the stream
// failed midway. Cancelling ctx closes the response body and abandons the
// remainder; fragments already delivered stay valid.
func (c *OllamaClient) GenerateStream(ctx context.Context, prompt string) (<-chan Fragment, error) {
	resp, err := c.post(ctx, generateRequest{Model: c.model, Prompt: prompt, Stream: true})
	if err != nil {
		return nil, err
	}

	ch := make(chan Fragment, streamBufferSize)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var chunk generateResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue // skip malformed lines
			}

			if !emit(ctx, ch, Fragment{Text: chunk.Response, Done: chunk.Done}) {
				return // consumer gone
			}
			if chunk.Done {
				return
			}
		}

		// The body ended without a done marker: either the context was
		// cancelled or the backend dropped the stream.
		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			emit(ctx, ch, Fragment{Err: fmt.Errorf("%w: %v", classify(err), err)})
			return
		}
		emit(ctx, ch, Fragment{Err: fmt.Errorf("%w: stream ended without completion", ErrUnavailable)})
	}()

	return ch, nil
}

func (c *OllamaClient) post(ctx context.Context, body generateRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling %s: %v", classify(err), c.baseURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: backend returned status %d", ErrUnavailable, resp.StatusCode)
	}
	return resp, nil
}

// emit delivers a fragment unless the consumer has detached (ctx done and
// nobody reading). Reports whether delivery should continue.
func emit(ctx context.Context, ch chan<- Fragment, f Fragment) bool {
	select {
	case ch <- f:
		return true
	case <-ctx.Done():
		// One last non-blocking attempt so a fast cancel still sees the
		// terminal fragment if it is reading.
		select {
		case ch <- f:
		default:
		}
		return false
	}
}
