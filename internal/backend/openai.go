package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// OpenAIRequest represents the request body for OpenAI-compatible APIs
type OpenAIRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

// OpenAIResponse represents a non-streamed completion
type OpenAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage map[string]interface{} `json:"usage"`
}

// OpenAIStreamChunk is the payload of one SSE "data:" line
type OpenAIStreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Error *OpenAIError `json:"error,omitempty"`
}

// OpenAIError is the error object some servers embed in a stream
type OpenAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// OpenAIModelsResponse represents the response from /v1/models
type OpenAIModelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		Created int64  `json:"created"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

// OpenAIClient speaks the OpenAI-compatible API that Ollama and others expose
// under /v1.
type OpenAIClient struct {
	baseURL    string
	httpClient *http.Client
}

// ChatStream posts a streaming completion and reads SSE data lines until
// [DONE] or a stop finish reason.
func (c *OpenAIClient) ChatStream(ctx context.Context, model string, messages []ChatMessage, onDelta func(string)) error {
	resp, err := c.post(ctx, "/v1/chat/completions", OpenAIRequest{Model: model, Messages: messages, Stream: true})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil
		}

		var chunk OpenAIStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to unmarshal stream chunk", Cause: err}
		}
		if chunk.Error != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: chunk.Error.Type + ": " + chunk.Error.Message}
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				onDelta(choice.Delta.Content)
			}
			if choice.FinishReason == "stop" {
				return nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to read stream", Cause: err}
	}
	return nil
}

// Predict sends prompt as a single user message and returns the reply.
func (c *OpenAIClient) Predict(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.post(ctx, "/v1/chat/completions", OpenAIRequest{
		Model:    model,
		Messages: []ChatMessage{{Role: RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var apiResp OpenAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to unmarshal response", Cause: err}
	}
	if len(apiResp.Choices) == 0 {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "empty response from model server"}
	}
	return apiResp.Choices[0].Message.Content, nil
}

// ListModels fetches /v1/models.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
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

	var modelsResp OpenAIModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to unmarshal response", Cause: err}
	}

	models := make([]Model, len(modelsResp.Data))
	for i, m := range modelsResp.Data {
		models[i] = Model{Name: m.ID}
	}
	return models, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
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
