package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// OllamaChatRequest represents the request body for the Ollama chat API
type OllamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// OllamaChatChunk is one NDJSON line of a streamed chat response
type OllamaChatChunk struct {
	Model     string      `json:"model"`
	CreatedAt string      `json:"created_at"`
	Message   ChatMessage `json:"message"`
	Done      bool        `json:"done"`
	Error     string      `json:"error,omitempty"`
}

// OllamaGenerateRequest represents the request body for /api/generate
type OllamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// OllamaGenerateResponse represents a non-streamed /api/generate response
type OllamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// OllamaTagsResponse represents the response from Ollama /api/tags endpoint
type OllamaTagsResponse struct {
	Models []OllamaModel `json:"models"`
}

// OllamaModel represents a single model in the Ollama tags response
type OllamaModel struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at"`
	Size       int64  `json:"size"`
	Digest     string `json:"digest"`
}

// OllamaClient speaks the native Ollama API.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
}

// ChatStream posts to /api/chat with streaming on and reads NDJSON chunks.
func (c *OllamaClient) ChatStream(ctx context.Context, model string, messages []ChatMessage, onDelta func(string)) error {
	resp, err := c.post(ctx, "/api/chat", OllamaChatRequest{Model: model, Messages: messages, Stream: true})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk OllamaChatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to unmarshal stream chunk", Cause: err}
		}
		if chunk.Error != "" {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: chunk.Error}
		}
		if chunk.Message.Content != "" {
			onDelta(chunk.Message.Content)
		}
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to read stream", Cause: err}
	}
	return nil
}

// Predict asks /api/generate for a single completion.
func (c *OllamaClient) Predict(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.post(ctx, "/api/generate", OllamaGenerateRequest{Model: model, Prompt: prompt})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var apiResp OllamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to unmarshal response", Cause: err}
	}
	return apiResp.Response, nil
}

// ListModels fetches /api/tags.
func (c *OllamaClient) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, sendError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var tagsResp OllamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to unmarshal response", Cause: err}
	}

	models := make([]Model, len(tagsResp.Models))
	for i, m := range tagsResp.Models {
		models[i] = Model{Name: m.Name, Size: m.Size, ModifiedAt: m.ModifiedAt}
	}
	return models, nil
}

func (c *OllamaClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, &ClientError{Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, &ClientError{Message: "failed to create request", Cause: err}
	}
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, sendError(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}
