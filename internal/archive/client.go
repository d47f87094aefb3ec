package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"RagChat/internal/session"
)

// Request bodies of the /api/fs routes.
type (
	ConversationPathRequest struct {
		ConversationPath string `json:"conversationPath"`
	}

	PersistRequest struct {
		ConversationPath string            `json:"conversationPath"`
		Messages         []session.Message `json:"messages"`
		ConvoTitle       string            `json:"convoTitle"`
		Filename         string            `json:"filename"`
	}

	PersistResponse struct {
		OK       bool   `json:"ok"`
		FilePath string `json:"filePath"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}
)

// Client reaches a persistence backend over HTTP.
type Client struct {
	baseURL          string
	conversationPath string
	httpClient       *http.Client
}

// NewClient returns a client for the backend at baseURL. conversationPath
// is sent as the directory hint on list and persist calls.
func NewClient(baseURL, conversationPath string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:          strings.TrimSuffix(baseURL, "/"),
		conversationPath: conversationPath,
		httpClient:       httpClient,
	}
}

func (c *Client) List(ctx context.Context) ([]ConversationRef, error) {
	var refs []ConversationRef
	if err := c.post(ctx, "/api/fs/get-convos", ConversationPathRequest{ConversationPath: c.conversationPath}, &refs); err != nil {
		return nil, err
	}
	if refs == nil {
		refs = []ConversationRef{}
	}
	return refs, nil
}

func (c *Client) Fetch(ctx context.Context, path string) (*Conversation, error) {
	var conv Conversation
	if err := c.post(ctx, "/api/fs/get-convo-by-path", ConversationPathRequest{ConversationPath: path}, &conv); err != nil {
		return nil, err
	}
	conv.Messages = nonNil(conv.Messages)
	return &conv, nil
}

func (c *Client) Persist(ctx context.Context, title, filename string, messages []session.Message) (string, error) {
	var resp PersistResponse
	err := c.post(ctx, "/api/fs/persist-convo", PersistRequest{
		ConversationPath: c.conversationPath,
		Messages:         nonNil(messages),
		ConvoTitle:       title,
		Filename:         filename,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.FilePath, nil
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.post(ctx, "/api/fs/delete-convo-by-path", ConversationPathRequest{ConversationPath: path}, nil)
}

func (c *Client) post(ctx context.Context, route string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrConversationNotFound, errorMessage(respBody))
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidPath, errorMessage(respBody))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("API error: %s - %s", resp.Status, errorMessage(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var e ErrorResponse
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
